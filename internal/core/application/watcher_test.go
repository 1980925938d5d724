package application_test

import (
	"errors"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	t.Run("remind then expire", func(t *testing.T) {
		env := newTestEnv(t)
		watcher := application.NewPaymentWatcher(env.svc, nil)
		payment := env.openPayment("P-0401")

		watcher.Tick(ctx)
		require.Zero(t, env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeSuccess))

		env.clock.Advance(testConfig.ApprovalTimeout)
		watcher.Tick(ctx)
		watcher.Tick(ctx)
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeSuccess) == 1
		}, 5*time.Second, 20*time.Millisecond)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.True(t, got.Reminded)

		env.clock.Advance(testConfig.PaymentTimeout - testConfig.ApprovalTimeout)
		watcher.Tick(ctx)
		got, err = env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentFailedNew, got.Status)
		require.True(t, got.SecretRevealed())
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeTimeout) == 1
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("force close unclosed", func(t *testing.T) {
		env := newTestEnv(t)
		watcher := application.NewPaymentWatcher(env.svc, nil)
		payment := env.openPayment("P-0402")

		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.NoError(t, err)
		env.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedNew)

		env.clock.Advance(testConfig.PaymentTimeout)
		watcher.Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentFailedNew, got.Status)
		require.Equal(t, domain.ChainPaymentFailedPayment, env.chain.Payment(payment.PaymentID).Status)
	})

	t.Run("resubmit failed transaction", func(t *testing.T) {
		env := newTestEnv(t)
		watcher := application.NewPaymentWatcher(env.svc, nil)
		env.chain.Fail("OpenNewLoyaltyPayment", errors.New("connection refused"))
		payment := env.openPayment("P-0403")

		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.ErrorIs(t, err, domain.ErrChain)

		env.chain.Fail("OpenNewLoyaltyPayment", nil)
		env.chain.SetDefaultOutcome(domain.TxPending)
		watcher.Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedNewSentTx, got.Status)

		env.chain.SetOutcome(got.TxHash, domain.TxConfirmed)
		watcher.Tick(ctx)
		env.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedNew)
	})

	t.Run("failed transaction times out", func(t *testing.T) {
		env := newTestEnv(t)
		watcher := application.NewPaymentWatcher(env.svc, nil)
		env.chain.Fail("OpenNewLoyaltyPayment", errors.New("connection refused"))
		payment := env.openPayment("P-0404")

		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.ErrorIs(t, err, domain.ErrChain)

		env.clock.Advance(testConfig.PaymentTimeout)
		watcher.Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentFailedNew, got.Status)
	})
}
