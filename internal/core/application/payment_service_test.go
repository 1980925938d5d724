package application_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/internal/infrastructure/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPaymentInfo(t *testing.T) {
	env := newTestEnv(t)

	info, err := env.payments.GetPaymentInfo(ctx, env.user.address, big.NewInt(10), "KRW")
	require.NoError(t, err)
	require.Equal(t, env.user.address, info.Account)
	require.Equal(t, "krw", info.Currency)
	require.Equal(t, 0.1, info.FeeRate)
	require.Equal(t, int64(10), info.PaidPoint.Int64())
	require.Equal(t, int64(1), info.FeePoint.Int64())
	require.Equal(t, int64(11), info.TotalPoint.Int64())

	tmp := env.temporaryAccount()
	info, err = env.payments.GetPaymentInfo(ctx, tmp, big.NewInt(10), "krw")
	require.NoError(t, err)
	require.Equal(t, env.user.address, info.Account)

	_, err = env.payments.GetPaymentInfo(ctx, env.user.address, big.NewInt(0), "krw")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewPayment(t *testing.T) {
	t.Run("close", func(t *testing.T) {
		env := newTestEnv(t)

		payment := env.openPayment("P-0001")
		require.Equal(t, domain.PaymentOpenedNew, payment.Status)
		require.Equal(t, env.user.address, payment.Account)
		require.Equal(t, "krw", payment.Currency)
		require.Equal(t, payment.Amount, payment.PaidPoint)
		require.Equal(t, int64(1), payment.FeePoint.Int64())
		require.Equal(t, int64(11), payment.TotalPoint.Int64())

		approved, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedNewSentTx, approved.Status)
		require.NotEqual(t, common.Hash{}, approved.TxHash)

		env.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedNew)
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeSuccess) == 1
		}, 5*time.Second, 20*time.Millisecond)

		closed, err := env.payments.CloseNewPayment(ctx, payment.PaymentID, common.Hash{}, true)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentClosedNew, closed.Status)
		require.True(t, closed.SecretRevealed())
		require.Equal(t, domain.ChainPaymentClosedPayment, env.chain.Payment(payment.PaymentID).Status)

		_, err = env.payments.CloseNewPayment(ctx, payment.PaymentID, common.Hash{}, true)
		require.ErrorIs(t, err, domain.ErrAlreadyDecided)
	})

	t.Run("deny", func(t *testing.T) {
		env := newTestEnv(t)

		payment := env.openPayment("P-0002")
		denied, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, false, env.approvalSig(payment))
		require.NoError(t, err)
		require.Equal(t, domain.PaymentDeniedNew, denied.Status)
		require.Zero(t, env.chain.Calls("OpenNewLoyaltyPayment"))
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeDenied) == 1
		}, 5*time.Second, 20*time.Millisecond)

		_, err = env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.ErrorIs(t, err, domain.ErrAlreadyDecided)

		// a denied purchase can be paid again
		reopened := env.openPayment("P-0002")
		require.NotEqual(t, payment.PaymentID, reopened.PaymentID)
	})

	t.Run("duplicate purchase", func(t *testing.T) {
		env := newTestEnv(t)

		env.openPayment("P-0003")
		_, err := env.payments.OpenNewPayment(ctx, application.OpenPaymentRequest{
			PurchaseID: "P-0003",
			Amount:     big.NewInt(10),
			Currency:   "krw",
			ShopID:     testShopId,
			Account:    env.temporaryAccount(),
		})
		require.ErrorIs(t, err, domain.ErrDuplicateRequest)
	})

	t.Run("concurrent opens", func(t *testing.T) {
		env := newTestEnv(t)
		services := []*application.PaymentService{env.slowPayments(), env.slowPayments()}

		aliases := make([]common.Address, 4)
		for i := range aliases {
			aliases[i] = env.temporaryAccount()
		}

		var wg sync.WaitGroup
		errs := make([]error, len(aliases))
		for i, alias := range aliases {
			wg.Add(1)
			go func(i int, alias common.Address) {
				defer wg.Done()
				_, errs[i] = services[i%len(services)].OpenNewPayment(ctx, application.OpenPaymentRequest{
					PurchaseID: "P-0010",
					Amount:     big.NewInt(10),
					Currency:   "krw",
					ShopID:     testShopId,
					Account:    alias,
				})
			}(i, alias)
		}
		wg.Wait()

		succeeded := 0
		for i, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, domain.ErrDuplicateRequest)
			// a rejected open leaves its alias usable
			_, err = env.accounts.ResolveTemporaryAccount(ctx, aliases[i])
			require.NoError(t, err)
		}
		require.Equal(t, 1, succeeded)

		stored, err := env.repo.Payments().GetByPurchase(ctx, "P-0010")
		require.NoError(t, err)
		require.Len(t, stored, 1)
	})

	t.Run("alias race", func(t *testing.T) {
		env := newTestEnv(t)
		services := []*application.PaymentService{env.slowPayments(), env.slowPayments()}
		alias := env.temporaryAccount()

		purchases := []string{"P-0011", "P-0012"}
		var wg sync.WaitGroup
		errs := make([]error, len(purchases))
		for i, purchaseId := range purchases {
			wg.Add(1)
			go func(i int, purchaseId string) {
				defer wg.Done()
				_, errs[i] = services[i].OpenNewPayment(ctx, application.OpenPaymentRequest{
					PurchaseID: purchaseId,
					Amount:     big.NewInt(10),
					Currency:   "krw",
					ShopID:     testShopId,
					Account:    alias,
				})
			}(i, purchaseId)
		}
		wg.Wait()

		opened := 0
		for i, err := range errs {
			stored, repoErr := env.repo.Payments().GetByPurchase(ctx, purchases[i])
			require.NoError(t, repoErr)
			if err == nil {
				opened++
				require.Len(t, stored, 1)
				continue
			}
			require.ErrorIs(t, err, domain.ErrInvalidAccount)
			// the payment of the losing open is dropped
			require.Empty(t, stored)
		}
		require.Equal(t, 1, opened)
	})

	t.Run("concurrent approvals", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.SetDefaultOutcome(domain.TxPending)

		payment := env.openPayment("P-0004")
		sig := env.approvalSig(payment)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, sig)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, domain.ErrAlreadyDecided)
		}
		require.Equal(t, 1, succeeded)
		require.Equal(t, 1, env.chain.Calls("OpenNewLoyaltyPayment"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		env := newTestEnv(t)

		payment := env.openPayment("P-0005")
		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.NoError(t, err)
		env.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedNew)

		_, err = env.payments.CloseNewPayment(ctx, payment.PaymentID, common.HexToHash("0xbad"), true)
		require.ErrorIs(t, err, domain.ErrSecretMismatch)
		require.Zero(t, env.chain.Calls("CloseNewLoyaltyPayment"))
	})

	t.Run("stale nonce", func(t *testing.T) {
		env := newTestEnv(t)

		payment := env.openPayment("P-0006")
		sig := env.approvalSig(payment)
		env.chain.BumpNonce(env.user.address)

		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, sig)
		require.ErrorIs(t, err, domain.ErrStaleNonce)

		other := newWallet(t)
		msg := env.codec().NewPaymentMessage(
			payment.Account, payment.PaymentID, payment.PurchaseID,
			payment.Amount, payment.Currency, payment.ShopID,
		)
		_, err = env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.sign(msg, other))
		require.ErrorIs(t, err, domain.ErrInvalidSignature)

		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentOpenedNew, got.Status)
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t)

		payment := env.openPayment("P-0007")
		sig := env.approvalSig(payment)
		env.clock.Advance(testConfig.PaymentTimeout)

		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, sig)
		require.ErrorIs(t, err, domain.ErrExpired)
	})

	t.Run("failed transaction", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.Fail("OpenNewLoyaltyPayment", errors.New("nonce too low"))

		payment := env.openPayment("P-0008")
		sig := env.approvalSig(payment)
		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, sig)
		require.ErrorIs(t, err, domain.ErrChain)

		got, err := env.payments.GetPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedNewFailedTx, got.Status)

		_, err = env.payments.ApproveNewPayment(ctx, payment.PaymentID, false, sig)
		require.ErrorIs(t, err, domain.ErrAlreadyDecided)

		env.chain.Fail("OpenNewLoyaltyPayment", nil)
		approved, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, sig)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedNewSentTx, approved.Status)
	})

	t.Run("reverted transaction", func(t *testing.T) {
		env := newTestEnv(t)
		env.chain.SetDefaultOutcome(domain.TxReverted)

		payment := env.openPayment("P-0009")
		_, err := env.payments.ApproveNewPayment(ctx, payment.PaymentID, true, env.approvalSig(payment))
		require.NoError(t, err)

		env.waitStatus(payment.PaymentID, domain.PaymentApprovedNewRevertedTx)
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayNew, ports.CallbackCodeTxFailed) == 1
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func TestCancelPayment(t *testing.T) {
	t.Run("approve by shop account", func(t *testing.T) {
		env := newTestEnv(t)
		payment := env.closedPayment("P-0101")

		cancel, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentOpenedCancel, cancel.Status)
		require.NotEqual(t, payment.SecretLock, cancel.SecretLock)

		task, err := env.repo.DelegateTasks().GetByPayment(ctx, payment.PaymentID)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskCancelPayment, task.Kind)

		_, err = env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.ErrorIs(t, err, domain.ErrAlreadyDecided)

		msg := env.codec().CancelPaymentMessage(env.owner.address, payment.PaymentID, payment.PurchaseID)
		approved, err := env.payments.ApproveCancelPayment(ctx, payment.PaymentID, true, env.sign(msg, env.owner))
		require.NoError(t, err)
		require.Equal(t, domain.PaymentApprovedCancelSentTx, approved.Status)

		env.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedCancel)
		closed, err := env.payments.CloseCancelPayment(ctx, payment.PaymentID, common.Hash{}, true)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentClosedCancel, closed.Status)
		require.Equal(t, domain.ChainPaymentClosedCancel, env.chain.Payment(payment.PaymentID).Status)

		task, err = env.repo.DelegateTasks().GetByID(ctx, task.ID)
		require.NoError(t, err)
		require.Equal(t, domain.DelegateTaskCompleted, task.Status)

		// a cancelled purchase can be paid again
		env.openPayment("P-0101")
	})

	t.Run("deny", func(t *testing.T) {
		env := newTestEnv(t)
		payment := env.closedPayment("P-0102")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)

		msg := env.codec().CancelPaymentMessage(env.owner.address, payment.PaymentID, payment.PurchaseID)
		denied, err := env.payments.ApproveCancelPayment(ctx, payment.PaymentID, false, env.sign(msg, env.owner))
		require.NoError(t, err)
		require.Equal(t, domain.PaymentDeniedCancel, denied.Status)
		require.Zero(t, env.chain.Calls("OpenCancelLoyaltyPayment"))
		require.Eventually(t, func() bool {
			return env.notifier.count(ports.CallbackPayCancel, ports.CallbackCodeDenied) == 1
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("not closed", func(t *testing.T) {
		env := newTestEnv(t)
		payment := env.openPayment("P-0103")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("signer is not the shop", func(t *testing.T) {
		env := newTestEnv(t)
		payment := env.closedPayment("P-0104")

		_, err := env.payments.OpenCancelPayment(ctx, payment.PaymentID)
		require.NoError(t, err)

		msg := env.codec().CancelPaymentMessage(env.user.address, payment.PaymentID, payment.PurchaseID)
		_, err = env.payments.ApproveCancelPayment(ctx, payment.PaymentID, true, env.sign(msg, env.user))
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	})
}

func TestGetPaymentNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.payments.GetPayment(ctx, common.HexToHash("0x01"))
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

// slowOracle widens the window between the purchase lookup and the insert.
type slowOracle struct {
	ports.RateOracle
}

func (o slowOracle) ConvertCurrency(ctx context.Context, amount *big.Int, from, to string) (*big.Int, error) {
	time.Sleep(20 * time.Millisecond)
	return o.RateOracle.ConvertCurrency(ctx, amount, from, to)
}

// slowPayments returns a payment service with its own locks over the
// environment store and chain.
func (e *testEnv) slowPayments() *application.PaymentService {
	cfg := testConfig
	cfg.Clock = e.clock.Now
	keys, err := keystore.NewService("relay-secret", true)
	require.NoError(e.t, err)

	svc, err := application.NewService(
		application.BuildInfo{Version: "test"}, cfg, e.repo, e.chain, slowOracle{e.chain},
		e.notifier, keys, nil,
	)
	require.NoError(e.t, err)
	e.t.Cleanup(svc.Stop)
	return application.NewPaymentService(svc)
}
