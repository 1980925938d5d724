package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const (
	sweepReceipts = "receipts"
	sweepReplies  = "replies"
	sweepTimeouts = "timeouts"
	sweepResubmit = "resubmit"
)

// PaymentWatcher drives payments that wait on time or on the chain rather
// than on a client: receipts, callbacks, reminders and timeouts.
type PaymentWatcher struct {
	svc       *Service
	payments  *PaymentService
	scheduler ports.SchedulerService
}

func NewPaymentWatcher(svc *Service, scheduler ports.SchedulerService) *PaymentWatcher {
	return &PaymentWatcher{svc, NewPaymentService(svc), scheduler}
}

func (w *PaymentWatcher) Start(expression string) error {
	if err := w.scheduler.Schedule(expression, func() {
		w.Tick(w.svc.ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule payment watcher: %w", err)
	}
	w.scheduler.Start()
	log.Infof("payment watcher scheduled at %s", expression)
	return nil
}

func (w *PaymentWatcher) Stop() {
	w.scheduler.Stop()
}

func (w *PaymentWatcher) Tick(ctx context.Context) {
	w.checkReceipts(ctx)
	w.sendReplies(ctx)
	w.resubmitFailures(ctx)
	w.expireOpened(ctx)
	w.expireReplied(ctx)
}

// withLock runs fn unless a client call is already working on the payment.
func (w *PaymentWatcher) withLock(payment domain.Payment, sweep string, fn func() error) {
	unlock, ok := w.svc.locker.tryLock(payment.PaymentID.Hex())
	if !ok {
		return
	}
	defer unlock()

	err := fn()
	if errors.Is(err, domain.ErrStatusConflict) {
		return
	}
	w.svc.metrics.SweepItem(sweep, err)
	if err != nil {
		log.WithError(err).WithField("paymentId", payment.PaymentID.Hex()).Warnf("%s sweep failed", sweep)
	}
}

func (w *PaymentWatcher) byStatus(ctx context.Context, statuses ...domain.PaymentStatus) []domain.Payment {
	payments, err := w.svc.repo.Payments().GetByStatus(ctx, statuses...)
	if err != nil {
		log.WithError(err).Warn("failed to get payments")
		return nil
	}
	return payments
}

func (w *PaymentWatcher) checkReceipts(ctx context.Context) {
	payments := w.byStatus(ctx, domain.PaymentApprovedNewSentTx, domain.PaymentApprovedCancelSentTx)
	for _, payment := range payments {
		w.withLock(payment, sweepReceipts, func() error {
			_, err := w.payments.checkTransaction(ctx, payment)
			return err
		})
	}
}

func (w *PaymentWatcher) sendReplies(ctx context.Context) {
	payments := w.byStatus(ctx, domain.PaymentApprovedNewConfirmed, domain.PaymentApprovedCancelConfirmed)
	for _, payment := range payments {
		w.withLock(payment, sweepReplies, func() error {
			return w.payments.reply(ctx, payment)
		})
	}
}

// resubmitFailures re-sends failed new legs whose stored signature is still
// bound to the current nonce. The others wait for a fresh approval.
func (w *PaymentWatcher) resubmitFailures(ctx context.Context) {
	payments := w.byStatus(ctx, domain.PaymentApprovedNewFailedTx, domain.PaymentApprovedNewRevertedTx)
	now := w.svc.now()
	for _, payment := range payments {
		if !now.Before(payment.ApprovedAt.Add(w.svc.cfg.PaymentTimeout)) {
			w.withLock(payment, sweepTimeouts, func() error {
				return w.fail(ctx, payment, domain.PaymentFailedNew)
			})
			continue
		}
		if len(payment.Signature) == 0 {
			continue
		}
		_, err := w.payments.ResubmitNewPayment(ctx, payment.PaymentID)
		switch {
		case err == nil:
			w.svc.metrics.SweepItem(sweepResubmit, nil)
		case errors.Is(err, domain.ErrStaleNonce), errors.Is(err, domain.ErrInvalidSignature),
			errors.Is(err, domain.ErrAlreadyDecided):
		default:
			w.svc.metrics.SweepItem(sweepResubmit, err)
			log.WithError(err).WithField("paymentId", payment.PaymentID.Hex()).Warn("failed to resubmit payment")
		}
	}
}

// expireOpened fails payments never approved within the payment timeout and
// reminds, once, those still waiting past the approval window.
func (w *PaymentWatcher) expireOpened(ctx context.Context) {
	payments := w.byStatus(ctx, domain.PaymentOpenedNew)
	now := w.svc.now()
	for _, payment := range payments {
		switch {
		case !now.Before(payment.ExpiresAt):
			w.withLock(payment, sweepTimeouts, func() error {
				return w.fail(ctx, payment, domain.PaymentFailedNew)
			})
		case !payment.Reminded && !now.Before(payment.CreatedAt.Add(w.svc.cfg.ApprovalTimeout)):
			w.withLock(payment, sweepTimeouts, func() error {
				return w.remind(ctx, payment)
			})
		}
	}
}

// expireReplied cancels on chain the payments the shop never closed.
func (w *PaymentWatcher) expireReplied(ctx context.Context) {
	payments := w.byStatus(ctx, domain.PaymentReplyCompletedNew)
	now := w.svc.now()
	for _, payment := range payments {
		if now.Before(payment.ApprovedAt.Add(w.svc.cfg.PaymentTimeout)) {
			continue
		}
		w.withLock(payment, sweepTimeouts, func() error {
			txHash, err := w.svc.chain.CloseNewLoyaltyPayment(ctx, payment.PaymentID, payment.Secret, false)
			if err != nil {
				return fmt.Errorf("failed to force close payment: %w", err)
			}
			payment.TxHash = txHash
			return w.fail(ctx, payment, domain.PaymentFailedNew)
		})
	}
}

func (w *PaymentWatcher) fail(ctx context.Context, payment domain.Payment, next domain.PaymentStatus) error {
	if err := w.payments.transition(ctx, &payment, next); err != nil {
		return err
	}
	log.WithField("paymentId", payment.PaymentID.Hex()).Infof("payment timed out, now %s", payment.Status)
	w.svc.notify(ports.CallbackEvent{
		Type:    ports.CallbackPayNew,
		Code:    ports.CallbackCodeTimeout,
		Message: "The payment timed out",
		Data:    newPaymentEvent(payment),
	})
	return nil
}

func (w *PaymentWatcher) remind(ctx context.Context, payment domain.Payment) error {
	expected := payment.Status
	payment.Reminded = true
	payment.UpdatedAt = w.svc.now()
	if err := w.svc.repo.Payments().Update(ctx, payment, expected); err != nil {
		return err
	}
	w.svc.notify(ports.CallbackEvent{
		Type:    ports.CallbackPayNew,
		Code:    ports.CallbackCodeSuccess,
		Message: "The payment is waiting for the approval of the user",
		Data:    newPaymentEvent(payment),
	})
	return nil
}
