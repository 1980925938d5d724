package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	delegateDir = "delegate"
)

type delegateRepository struct {
	store *badgerhold.Store
}

func NewDelegateRepository(
	baseDir string, logger badger.Logger,
) (domain.DelegateRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, delegateDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open delegate store: %s", err)
	}
	return &delegateRepository{store}, nil
}

type delegateTaskData struct {
	ID         string
	ShopID     string
	Kind       int
	Status     int
	Name       string
	Currency   string
	ShopStatus int
	PaymentID  string
	Attempts   int
	FailReason string
	TxHash     string
	CreatedAt  int64
	UpdatedAt  int64
}

func (d delegateTaskData) toDelegateTask() domain.DelegateTask {
	return domain.DelegateTask{
		ID:     d.ID,
		ShopID: common.HexToHash(d.ShopID),
		Kind:   domain.DelegateTaskKind(d.Kind),
		Status: domain.DelegateTaskStatus(d.Status),
		Payload: domain.DelegateTaskPayload{
			Name:       d.Name,
			Currency:   d.Currency,
			ShopStatus: domain.ShopStatus(d.ShopStatus),
			PaymentID:  common.HexToHash(d.PaymentID),
		},
		Attempts:   d.Attempts,
		FailReason: d.FailReason,
		TxHash:     common.HexToHash(d.TxHash),
		CreatedAt:  milliToTime(d.CreatedAt),
		UpdatedAt:  milliToTime(d.UpdatedAt),
	}
}

func toDelegateTaskData(task domain.DelegateTask) delegateTaskData {
	return delegateTaskData{
		ID:         task.ID,
		ShopID:     hashKey(task.ShopID),
		Kind:       int(task.Kind),
		Status:     int(task.Status),
		Name:       task.Payload.Name,
		Currency:   task.Payload.Currency,
		ShopStatus: int(task.Payload.ShopStatus),
		PaymentID:  hashKey(task.Payload.PaymentID),
		Attempts:   task.Attempts,
		FailReason: task.FailReason,
		TxHash:     hashKey(task.TxHash),
		CreatedAt:  timeToMilli(task.CreatedAt),
		UpdatedAt:  timeToMilli(task.UpdatedAt),
	}
}

func (r *delegateRepository) Add(ctx context.Context, task domain.DelegateTask) error {
	if err := r.store.Insert(task.ID, toDelegateTaskData(task)); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("delegate task %s: %w", task.ID, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (r *delegateRepository) GetByID(ctx context.Context, id string) (*domain.DelegateTask, error) {
	var data delegateTaskData
	if err := r.store.Get(id, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTaskNotFound.Wrapf("%s", id)
		}
		return nil, err
	}
	task := data.toDelegateTask()
	return &task, nil
}

func (r *delegateRepository) GetAll(
	ctx context.Context, kind domain.DelegateTaskKind, status domain.DelegateTaskStatus,
) ([]domain.DelegateTask, error) {
	var list []delegateTaskData
	query := badgerhold.Where("Kind").Eq(int(kind)).And("Status").Eq(int(status))
	if err := r.store.Find(&list, query); err != nil {
		return nil, fmt.Errorf("failed to get delegate tasks: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt < list[j].CreatedAt
	})
	tasks := make([]domain.DelegateTask, 0, len(list))
	for _, d := range list {
		tasks = append(tasks, d.toDelegateTask())
	}
	return tasks, nil
}

func (r *delegateRepository) GetByPayment(
	ctx context.Context, paymentId common.Hash,
) (*domain.DelegateTask, error) {
	var list []delegateTaskData
	query := badgerhold.Where("Kind").Eq(int(domain.DelegateTaskCancelPayment)).
		And("PaymentID").Eq(hashKey(paymentId)).
		And("Status").In(int(domain.DelegateTaskOpened), int(domain.DelegateTaskInProgress))
	if err := r.store.Find(&list, query); err != nil {
		return nil, fmt.Errorf("failed to get cancel task: %w", err)
	}
	if len(list) <= 0 {
		return nil, domain.ErrTaskNotFound.Wrapf("no cancel task for payment %s", paymentId.Hex())
	}
	task := list[0].toDelegateTask()
	return &task, nil
}

func (r *delegateRepository) Update(
	ctx context.Context, task domain.DelegateTask, expected domain.DelegateTaskStatus,
) error {
	data := toDelegateTaskData(task)
	err := update(r.store, func(tx *badger.Txn) error {
		var stored delegateTaskData
		if err := r.store.TxGet(tx, task.ID, &stored); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrTaskNotFound.Wrapf("%s", task.ID)
			}
			return err
		}
		if stored.Status != int(expected) {
			return domain.ErrStatusConflict
		}
		return r.store.TxUpdate(tx, task.ID, data)
	})
	if errors.Is(err, errConflict) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *delegateRepository) Close() {
	// nolint:all
	r.store.Close()
}
