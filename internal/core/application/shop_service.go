package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func newTaskID() string {
	return uuid.NewString()
}

// ShopTaskEvent is the data sent along with shop task callbacks.
type ShopTaskEvent struct {
	TaskID     string `json:"taskId"`
	ShopID     string `json:"shopId"`
	Type       string `json:"type"`
	Status     string `json:"taskStatus"`
	Name       string `json:"name,omitempty"`
	Currency   string `json:"currency,omitempty"`
	ShopStatus string `json:"status,omitempty"`
	TxHash     string `json:"txHash,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func newShopTaskEvent(task domain.DelegateTask) ShopTaskEvent {
	event := ShopTaskEvent{
		TaskID: task.ID,
		ShopID: task.ShopID.Hex(),
		Type:   task.Kind.String(),
		Status: task.Status.String(),
		Reason: task.FailReason,
	}
	switch task.Kind {
	case domain.DelegateTaskUpdate:
		event.Name = task.Payload.Name
		event.Currency = task.Payload.Currency
	case domain.DelegateTaskStatusChange:
		event.ShopStatus = task.Payload.ShopStatus.String()
	}
	if task.TxHash != (common.Hash{}) {
		event.TxHash = task.TxHash.Hex()
	}
	return event
}

// ShopService queues shop changes that the shop account, or its delegator,
// must approve before they reach the chain.
type ShopService struct {
	svc *Service
}

func NewShopService(svc *Service) *ShopService {
	return &ShopService{svc}
}

func (s *ShopService) GetTask(ctx context.Context, taskId string) (*domain.DelegateTask, error) {
	task, err := s.svc.repo.DelegateTasks().GetByID(ctx, taskId)
	if err != nil {
		return nil, storeError(err)
	}
	return task, nil
}

func (s *ShopService) CreateUpdateTask(
	ctx context.Context, shopId common.Hash, name, currency string,
) (*domain.DelegateTask, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrValidation.Wrapf("missing shop name")
	}
	return s.createTask(ctx, shopId, domain.DelegateTaskUpdate, domain.DelegateTaskPayload{
		Name:     name,
		Currency: strings.ToLower(currency),
	})
}

func (s *ShopService) CreateStatusTask(
	ctx context.Context, shopId common.Hash, status domain.ShopStatus,
) (*domain.DelegateTask, error) {
	if status != domain.ShopStatusActive && status != domain.ShopStatusInactive {
		return nil, domain.ErrValidation.Wrapf("invalid shop status %d", status)
	}
	return s.createTask(ctx, shopId, domain.DelegateTaskStatusChange, domain.DelegateTaskPayload{
		ShopStatus: status,
	})
}

func (s *ShopService) createTask(
	ctx context.Context, shopId common.Hash, kind domain.DelegateTaskKind, payload domain.DelegateTaskPayload,
) (*domain.DelegateTask, error) {
	if err := s.svc.checkShopID(shopId); err != nil {
		return nil, err
	}
	if _, err := s.svc.getShop(ctx, shopId); err != nil {
		return nil, err
	}

	now := s.svc.now()
	task := domain.DelegateTask{
		ID:        newTaskID(),
		ShopID:    shopId,
		Kind:      kind,
		Status:    domain.DelegateTaskOpened,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.svc.repo.DelegateTasks().Add(ctx, task); err != nil {
		return nil, storeError(err)
	}
	log.Debugf("%s task %s opened for shop %s", kind, task.ID, shopId.Hex())
	return &task, nil
}

func (s *ShopService) ApproveUpdateTask(
	ctx context.Context, taskId string, approval bool, sig []byte,
) (*domain.DelegateTask, error) {
	return s.approveTask(ctx, domain.DelegateTaskUpdate, taskId, approval, sig)
}

func (s *ShopService) ApproveStatusTask(
	ctx context.Context, taskId string, approval bool, sig []byte,
) (*domain.DelegateTask, error) {
	return s.approveTask(ctx, domain.DelegateTaskStatusChange, taskId, approval, sig)
}

// approveTask applies the decision on an open task. A failed transaction puts
// the task back to OPENED until it runs out of attempts.
func (s *ShopService) approveTask(
	ctx context.Context, kind domain.DelegateTaskKind, taskId string, approval bool, sig []byte,
) (*domain.DelegateTask, error) {
	unlock, ok := s.svc.locker.tryLock("task:" + taskId)
	if !ok {
		return nil, domain.ErrAlreadyDecided.Wrapf("task %s is being processed", taskId)
	}
	defer unlock()

	task, err := s.GetTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if task.Kind != kind {
		return nil, domain.ErrTaskNotFound.Wrapf("task %s is not a %s task", taskId, kind)
	}
	if task.Status != domain.DelegateTaskOpened {
		return nil, domain.ErrAlreadyDecided.Wrapf("task %s is %s", taskId, task.Status)
	}

	shop, err := s.svc.getShop(ctx, task.ShopID)
	if err != nil {
		return nil, err
	}
	signer, err := s.svc.verifyShopSigner(
		ctx, sig,
		func(signer common.Address) signature.Message {
			return s.svc.codec.ShopAccountMessage(task.ShopID, signer)
		},
		shop.Account, shop.Delegator,
	)
	if err != nil {
		return nil, err
	}

	tasks := s.svc.repo.DelegateTasks()
	if !approval {
		task.Status = domain.DelegateTaskFailed
		task.FailReason = "denied"
		task.UpdatedAt = s.svc.now()
		if err := tasks.Update(ctx, *task, domain.DelegateTaskOpened); err != nil {
			return nil, storeError(err)
		}
		s.notifyTask(*task, ports.CallbackCodeDenied, "The task was denied by the shop")
		return task, nil
	}

	task.Status = domain.DelegateTaskInProgress
	task.Attempts++
	task.UpdatedAt = s.svc.now()
	if err := tasks.Update(ctx, *task, domain.DelegateTaskOpened); err != nil {
		return nil, storeError(err)
	}

	txHash, txErr := s.send(ctx, *task, signer, sig)
	if txErr != nil {
		task.Status = domain.DelegateTaskOpened
		if task.Attempts >= s.svc.cfg.TaskMaxAttempts {
			task.Status = domain.DelegateTaskFailed
			task.FailReason = txErr.Error()
		}
	} else {
		task.Status = domain.DelegateTaskCompleted
		task.TxHash = txHash
	}
	task.UpdatedAt = s.svc.now()
	if err := tasks.Update(ctx, *task, domain.DelegateTaskInProgress); err != nil {
		return nil, storeError(err)
	}

	if txErr != nil {
		log.WithError(txErr).Warnf("failed to send %s task %s (attempt %d)", kind, taskId, task.Attempts)
		if task.Status == domain.DelegateTaskFailed {
			s.notifyTask(*task, ports.CallbackCodeTxFailed, "The task transaction failed")
		}
		return nil, chainError(txErr)
	}
	s.notifyTask(*task, ports.CallbackCodeSuccess, "Success")
	return task, nil
}

func (s *ShopService) send(
	ctx context.Context, task domain.DelegateTask, signer common.Address, sig []byte,
) (common.Hash, error) {
	switch task.Kind {
	case domain.DelegateTaskUpdate:
		return s.svc.chain.UpdateShop(
			ctx, task.ShopID, task.Payload.Name, task.Payload.Currency, signer, sig,
		)
	case domain.DelegateTaskStatusChange:
		return s.svc.chain.ChangeShopStatus(ctx, task.ShopID, task.Payload.ShopStatus, signer, sig)
	default:
		return common.Hash{}, fmt.Errorf("unsupported task kind %s", task.Kind)
	}
}

func (s *ShopService) notifyTask(task domain.DelegateTask, code int, message string) {
	callbackType := ports.CallbackShopUpdate
	if task.Kind == domain.DelegateTaskStatusChange {
		callbackType = ports.CallbackShopStatus
	}
	s.svc.notify(ports.CallbackEvent{
		Type:    callbackType,
		Code:    code,
		Message: message,
		Data:    newShopTaskEvent(task),
	})
}

// isTaskOpened re-reads the task, for callers holding a possibly stale copy.
func (s *ShopService) isTaskOpened(ctx context.Context, taskId string) (bool, error) {
	task, err := s.svc.repo.DelegateTasks().GetByID(ctx, taskId)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return false, nil
		}
		return false, err
	}
	return task.Status == domain.DelegateTaskOpened, nil
}
