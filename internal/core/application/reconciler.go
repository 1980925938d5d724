package application

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	sweepCancel = "cancel"
	sweepUpdate = "update"
	sweepStatus = "status"
)

var errNoDelegator = errors.New("no usable delegator")

// storeStatusReader reads the payment status straight from the repository.
type storeStatusReader struct {
	svc *Service
}

func NewStoreStatusReader(svc *Service) ports.PaymentStatusReader {
	return &storeStatusReader{svc}
}

func (r *storeStatusReader) GetPaymentStatus(ctx context.Context, paymentId common.Hash) (domain.PaymentStatus, error) {
	payment, err := r.svc.repo.Payments().Get(ctx, paymentId)
	if err != nil {
		return domain.PaymentStatusNull, err
	}
	return payment.Status, nil
}

// DelegateReconciler signs, with the delegator keys held by the relay, the
// approvals shops left pending, and posts them to the relay API like any
// other client would.
type DelegateReconciler struct {
	svc       *Service
	relay     ports.RelayClient
	status    ports.PaymentStatusReader
	scheduler ports.SchedulerService
}

func NewDelegateReconciler(
	svc *Service, relay ports.RelayClient, status ports.PaymentStatusReader, scheduler ports.SchedulerService,
) *DelegateReconciler {
	if status == nil {
		status = NewStoreStatusReader(svc)
	}
	return &DelegateReconciler{svc, relay, status, scheduler}
}

func (r *DelegateReconciler) Start(expression string) error {
	if err := r.scheduler.Schedule(expression, func() {
		r.Tick(r.svc.ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule delegate reconciler: %w", err)
	}
	r.scheduler.Start()
	log.Infof("delegate reconciler scheduled at %s", expression)
	return nil
}

func (r *DelegateReconciler) Stop() {
	r.scheduler.Stop()
}

// Tick runs the cancel, update and status sweeps in order. Failures are
// logged per item and never abort a sweep.
func (r *DelegateReconciler) Tick(ctx context.Context) {
	r.sweepCancels(ctx)
	r.sweepTasks(ctx, domain.DelegateTaskUpdate, sweepUpdate)
	r.sweepTasks(ctx, domain.DelegateTaskStatusChange, sweepStatus)
}

func (r *DelegateReconciler) sweepCancels(ctx context.Context) {
	payments, err := r.svc.repo.Payments().GetByStatus(
		ctx,
		domain.PaymentOpenedCancel,
		domain.PaymentApprovedCancelFailedTx,
		domain.PaymentApprovedCancelRevertedTx,
	)
	if err != nil {
		log.WithError(err).Warn("failed to get payments to cancel")
		return
	}

	now := r.svc.now()
	for _, payment := range payments {
		if payment.Status == domain.PaymentOpenedCancel &&
			now.Before(payment.CancelOpenedAt.Add(r.svc.cfg.ForcedCloseTimeout)) {
			continue
		}
		err := r.approveCancel(ctx, payment)
		if errors.Is(err, errNoDelegator) {
			continue
		}
		r.svc.metrics.SweepItem(sweepCancel, err)
		if err != nil {
			log.WithError(err).WithField("paymentId", payment.PaymentID.Hex()).Warn(
				"failed to approve cancel with delegator",
			)
		}
	}
}

func (r *DelegateReconciler) approveCancel(ctx context.Context, payment domain.Payment) error {
	onchain, err := r.svc.chain.LoyaltyPaymentOf(ctx, payment.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to read payment from ledger: %w", err)
	}
	switch onchain.Status {
	case domain.ChainPaymentOpenedCancel, domain.ChainPaymentClosedCancel, domain.ChainPaymentFailedCancel:
		// the cancel already reached the ledger
		return nil
	}

	delegator, key, err := r.delegatorKey(ctx, payment.ShopID)
	if err != nil {
		return err
	}

	nonce, err := r.svc.chain.NonceOf(ctx, delegator)
	if err != nil {
		return fmt.Errorf("failed to get delegator nonce: %w", err)
	}
	msg := r.svc.codec.CancelPaymentMessage(delegator, payment.PaymentID, payment.PurchaseID)
	sig, err := signature.Sign(msg, nonce, key)
	if err != nil {
		return fmt.Errorf("failed to sign cancel: %w", err)
	}

	status, err := r.status.GetPaymentStatus(ctx, payment.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to get payment status: %w", err)
	}
	switch status {
	case domain.PaymentOpenedCancel, domain.PaymentApprovedCancelFailedTx, domain.PaymentApprovedCancelRevertedTx:
	default:
		return nil
	}

	log.Infof("approving cancel of payment %s with delegator %s", payment.PaymentID.Hex(), delegator.Hex())
	return r.relay.ApproveCancelPayment(ctx, payment.PaymentID, true, sig)
}

func (r *DelegateReconciler) sweepTasks(ctx context.Context, kind domain.DelegateTaskKind, sweep string) {
	tasks, err := r.svc.repo.DelegateTasks().GetAll(ctx, kind, domain.DelegateTaskOpened)
	if err != nil {
		log.WithError(err).Warnf("failed to get %s tasks", kind)
		return
	}

	shops := NewShopService(r.svc)
	for _, task := range tasks {
		err := r.approveTask(ctx, shops, task)
		if errors.Is(err, errNoDelegator) {
			continue
		}
		r.svc.metrics.SweepItem(sweep, err)
		if err != nil {
			log.WithError(err).WithField("taskId", task.ID).Warnf("failed to approve %s task with delegator", kind)
		}
	}
}

func (r *DelegateReconciler) approveTask(ctx context.Context, shops *ShopService, task domain.DelegateTask) error {
	delegator, key, err := r.delegatorKey(ctx, task.ShopID)
	if err != nil {
		return err
	}

	nonce, err := r.svc.chain.ShopNonceOf(ctx, delegator)
	if err != nil {
		return fmt.Errorf("failed to get delegator nonce: %w", err)
	}
	sig, err := signature.Sign(r.svc.codec.ShopAccountMessage(task.ShopID, delegator), nonce, key)
	if err != nil {
		return fmt.Errorf("failed to sign task: %w", err)
	}

	opened, err := shops.isTaskOpened(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	if !opened {
		return nil
	}

	log.Infof("approving %s task %s with delegator %s", task.Kind, task.ID, delegator.Hex())
	if task.Kind == domain.DelegateTaskStatusChange {
		return r.relay.ApproveShopStatus(ctx, task.ID, true, sig)
	}
	return r.relay.ApproveShopUpdate(ctx, task.ID, true, sig)
}

// delegatorKey returns the key of the shop delegator, or errNoDelegator when
// the shop has none or the relay does not hold the one set on chain.
func (r *DelegateReconciler) delegatorKey(
	ctx context.Context, shopId common.Hash,
) (common.Address, *ecdsa.PrivateKey, error) {
	shop, err := r.svc.chain.ShopOf(ctx, shopId)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to get shop: %w", err)
	}
	if !shop.HasDelegator() {
		return common.Address{}, nil, errNoDelegator
	}

	stored, err := r.svc.repo.Delegators().Get(ctx, shop.Account)
	if err != nil {
		if errors.Is(err, domain.ErrDelegatorMismatch) {
			return common.Address{}, nil, errNoDelegator
		}
		return common.Address{}, nil, err
	}
	if stored.Address != shop.Delegator {
		log.Debugf("delegator of shop %s is not held by the relay", shopId.Hex())
		return common.Address{}, nil, errNoDelegator
	}

	key, err := r.svc.keys.Decrypt(stored.EncryptedKey)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to decrypt delegator key: %w", err)
	}
	return stored.Address, key, nil
}
