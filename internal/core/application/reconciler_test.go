package application_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newReconciler(env *testEnv) *application.DelegateReconciler {
	return application.NewDelegateReconciler(env.svc, env.relay, env.relay, nil)
}

func TestReconcilerCancel(t *testing.T) {
	t.Run("approve with delegator", func(t *testing.T) {
		env := newTestEnv(t)
		env.setupDelegator()
		payment := env.closedPayment("P-0301")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		env.chain.SetDefaultOutcome(domain.TxPending)
		reconciler := newReconciler(env)

		// the shop is left time to decide first
		reconciler.Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentOpenedCancel, got.Status)

		env.clock.Advance(testConfig.ForcedCloseTimeout)
		reconciler.Tick(ctx)
		got, err = env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelSentTx, got.Status)
		require.Equal(t, domain.ChainPaymentOpenedCancel, env.chain.Payment(payment.PaymentID).Status)
		require.Equal(t, 1, env.chain.Calls("OpenCancelLoyaltyPayment"))

		// nothing left to approve
		reconciler.Tick(ctx)
		require.Equal(t, 1, env.chain.Calls("OpenCancelLoyaltyPayment"))
	})

	t.Run("no delegator", func(t *testing.T) {
		env := newTestEnv(t)
		payment := env.closedPayment("P-0302")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		env.clock.Advance(testConfig.ForcedCloseTimeout)

		newReconciler(env).Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentOpenedCancel, got.Status)
		require.Zero(t, env.chain.Calls("OpenCancelLoyaltyPayment"))
	})

	t.Run("retry failed cancel", func(t *testing.T) {
		env := newTestEnv(t)
		env.setupDelegator()
		payment := env.closedPayment("P-0303")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		env.chain.SetDefaultOutcome(domain.TxPending)
		env.chain.Fail("OpenCancelLoyaltyPayment", errors.New("gas too low"))
		env.clock.Advance(testConfig.ForcedCloseTimeout)

		reconciler := newReconciler(env)
		reconciler.Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelFailedTx, got.Status)

		env.chain.Fail("OpenCancelLoyaltyPayment", nil)
		reconciler.Tick(ctx)
		got, err = env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelSentTx, got.Status)
	})

	t.Run("cancel already on ledger", func(t *testing.T) {
		env := newTestEnv(t)
		env.setupDelegator()
		failed := env.closedPayment("P-0304")
		opened := env.closedPayment("P-0305")

		env.chain.SetDefaultOutcome(domain.TxPending)
		for _, payment := range []*domain.Payment{failed, opened} {
			_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
			require.NoError(t, err)
		}
		env.chain.Fail("OpenCancelLoyaltyPayment", errors.New("nonce too low"))
		_, err := env.payments.ApproveCancelPayment(ctx, failed.PaymentID, true, env.cancelSig(failed))
		require.ErrorIs(t, err, domain.ErrChain)
		env.chain.Fail("OpenCancelLoyaltyPayment", nil)

		// the shop owner cancels both straight on the ledger
		for _, payment := range []*domain.Payment{failed, opened} {
			_, err := env.chain.OpenCancelLoyaltyPayment(
				ctx, payment.PaymentID, common.Hash{}, env.owner.address, env.cancelSig(payment),
			)
			require.NoError(t, err)
		}
		calls := env.chain.Calls("OpenCancelLoyaltyPayment")
		env.clock.Advance(testConfig.ForcedCloseTimeout)

		newReconciler(env).Tick(ctx)
		require.Equal(t, calls, env.chain.Calls("OpenCancelLoyaltyPayment"))
		got, err := env.payments.GetPayment(ctx, failed.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelFailedTx, got.Status)
		got, err = env.payments.GetPayment(ctx, opened.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentOpenedCancel, got.Status)
	})

	t.Run("broken item does not stop the sweep", func(t *testing.T) {
		env := newTestEnv(t)
		env.setupDelegator()
		payment := env.closedPayment("P-0306")

		// swept first, its shop is unknown to the ledger
		orphan := domain.Payment{
			PaymentID:  common.HexToHash("0x0306000000000000000000000000000000000000000000000000000000000001"),
			PurchaseID: "P-0307",
			Account:    env.user.address,
			ShopID:     common.HexToHash("0xdead"),
			Currency:   "krw",
			Amount:     big.NewInt(10),
			Status:     domain.PaymentApprovedCancelFailedTx,
			CreatedAt:  payment.CreatedAt.Add(-time.Hour),
			UpdatedAt:  payment.CreatedAt.Add(-time.Hour),
		}
		require.NoError(t, env.repo.Payments().Add(ctx, orphan))

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		env.chain.SetDefaultOutcome(domain.TxPending)
		env.clock.Advance(testConfig.ForcedCloseTimeout)

		newReconciler(env).Tick(ctx)
		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelSentTx, got.Status)
		got, err = env.payments.GetPayment(ctx, orphan.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelFailedTx, got.Status)
	})
}

func TestReconcilerTasks(t *testing.T) {
	env := newTestEnv(t)
	env.setupDelegator()

	update, err := env.shops.CreateUpdateTask(ctx, testShopId, " Coffee Bar ", "USD")
	require.NoError(t, err)
	status, err := env.shops.CreateStatusTask(ctx, testShopId2, domain.ShopStatusInactive)
	require.NoError(t, err)

	newReconciler(env).Tick(ctx)

	update, err = env.shops.GetTask(ctx, update.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DelegateTaskCompleted, update.Status)
	status, err = env.shops.GetTask(ctx, status.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DelegateTaskCompleted, status.Status)

	shop, err := env.chain.ShopOf(ctx, testShopId)
	require.NoError(t, err)
	require.Equal(t, "Coffee Bar", shop.Name)
	require.Equal(t, "usd", shop.Currency)
	shop, err = env.chain.ShopOf(ctx, testShopId2)
	require.NoError(t, err)
	require.Equal(t, domain.ShopStatusInactive, shop.Status)

	require.Eventually(t, func() bool {
		return env.notifier.count(ports.CallbackShopUpdate, ports.CallbackCodeSuccess) == 1 &&
			env.notifier.count(ports.CallbackShopStatus, ports.CallbackCodeSuccess) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
