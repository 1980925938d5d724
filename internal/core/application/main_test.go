package application_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/application"
	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/internal/infrastructure/db"
	"github.com/acc-network/relay/internal/infrastructure/keystore"
	"github.com/acc-network/relay/internal/test/mockchain"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	ctx = context.Background()

	testShopId    = common.HexToHash("0x0001000000000000000000000000000000000000000000000000000000000001")
	testShopId2   = common.HexToHash("0x0001000000000000000000000000000000000000000000000000000000000002")
	testManagerId = common.HexToHash("0x00010000000000000000000000000000000000000000000000000000000000ff")

	testConfig = application.Config{
		PaymentTimeout:      45 * time.Second,
		ApprovalTimeout:     30 * time.Second,
		ForcedCloseTimeout:  10 * time.Second,
		TemporaryAccountTTL: time.Minute,
		TaskMaxAttempts:     2,
		StaleNonceWindow:    signature.DefaultStaleWindow,
	}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []ports.CallbackEvent
}

func (r *recorder) Notify(_ context.Context, event ports.CallbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) count(callbackType ports.CallbackType, code int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == callbackType && e.Code == code {
			n++
		}
	}
	return n
}

// directRelay posts approvals straight to the services, as the HTTP API would.
type directRelay struct {
	payments *application.PaymentService
	shops    *application.ShopService
}

func (r directRelay) GetPaymentStatus(ctx context.Context, paymentId common.Hash) (domain.PaymentStatus, error) {
	payment, err := r.payments.GetPayment(ctx, paymentId)
	if err != nil {
		return domain.PaymentStatusNull, err
	}
	return payment.Status, nil
}

func (r directRelay) ApproveCancelPayment(
	ctx context.Context, paymentId common.Hash, approval bool, sig []byte,
) error {
	_, err := r.payments.ApproveCancelPayment(ctx, paymentId, approval, sig)
	return err
}

func (r directRelay) ApproveShopUpdate(ctx context.Context, taskId string, approval bool, sig []byte) error {
	_, err := r.shops.ApproveUpdateTask(ctx, taskId, approval, sig)
	return err
}

func (r directRelay) ApproveShopStatus(ctx context.Context, taskId string, approval bool, sig []byte) error {
	_, err := r.shops.ApproveStatusTask(ctx, taskId, approval, sig)
	return err
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newWallet(t *testing.T) wallet {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key, ethcrypto.PubkeyToAddress(key.PublicKey)}
}

type testEnv struct {
	t        *testing.T
	chain    *mockchain.Chain
	repo     ports.RepoManager
	notifier *recorder
	clock    *clock
	svc      *application.Service
	payments *application.PaymentService
	accounts *application.AccountService
	shops    *application.ShopService
	relay    directRelay

	user  wallet
	owner wallet
}

func newTestEnv(t *testing.T) *testEnv {
	chain := mockchain.New()
	chain.SetFeeRate(1000)
	chain.SetRate("krw", 1)

	repo, err := db.NewService(db.ServiceConfig{DbType: "badger", DbConfig: []any{"", nil}})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	keys, err := keystore.NewService("relay-secret", true)
	require.NoError(t, err)

	clk := &clock{now: time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testConfig
	cfg.Clock = clk.Now

	notifier := &recorder{}
	svc, err := application.NewService(
		application.BuildInfo{Version: "test"}, cfg, repo, chain, chain, notifier, keys, nil,
	)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	env := &testEnv{
		t:        t,
		chain:    chain,
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		svc:      svc,
		payments: application.NewPaymentService(svc),
		accounts: application.NewAccountService(svc),
		shops:    application.NewShopService(svc),
		user:     newWallet(t),
		owner:    newWallet(t),
	}
	env.relay = directRelay{env.payments, env.shops}

	for _, shopId := range []common.Hash{testShopId, testShopId2, testManagerId} {
		chain.AddShop(domain.Shop{
			ShopID:   shopId,
			Name:     "shop",
			Currency: "krw",
			Account:  env.owner.address,
			Status:   domain.ShopStatusActive,
		})
	}
	return env
}

func (e *testEnv) sign(msg signature.Message, w wallet) []byte {
	nonce, err := e.chain.NonceOf(ctx, w.address)
	require.NoError(e.t, err)
	sig, err := signature.Sign(msg, nonce, w.key)
	require.NoError(e.t, err)
	return sig
}

func (e *testEnv) signShop(msg signature.Message, w wallet) []byte {
	nonce, err := e.chain.ShopNonceOf(ctx, w.address)
	require.NoError(e.t, err)
	sig, err := signature.Sign(msg, nonce, w.key)
	require.NoError(e.t, err)
	return sig
}

func (e *testEnv) codec() *signature.Codec {
	return e.svc.Codec()
}

func (e *testEnv) temporaryAccount() common.Address {
	tmp, err := e.accounts.IssueTemporaryAccount(
		ctx, e.user.address, e.sign(e.codec().AccountMessage(e.user.address), e.user),
	)
	require.NoError(e.t, err)
	// the next alias needs a fresh signature
	e.chain.BumpNonce(e.user.address)
	return tmp.TemporaryAccount
}

func (e *testEnv) openPayment(purchaseId string) *domain.Payment {
	payment, err := e.payments.OpenNewPayment(ctx, application.OpenPaymentRequest{
		PurchaseID: purchaseId,
		Amount:     big.NewInt(10),
		Currency:   "KRW",
		ShopID:     testShopId,
		Account:    e.temporaryAccount(),
	})
	require.NoError(e.t, err)
	return payment
}

func (e *testEnv) approvalSig(payment *domain.Payment) []byte {
	msg := e.codec().NewPaymentMessage(
		payment.Account, payment.PaymentID, payment.PurchaseID,
		payment.Amount, payment.Currency, payment.ShopID,
	)
	return e.sign(msg, e.user)
}

func (e *testEnv) cancelSig(payment *domain.Payment) []byte {
	msg := e.codec().CancelPaymentMessage(e.owner.address, payment.PaymentID, payment.PurchaseID)
	return e.sign(msg, e.owner)
}

func (e *testEnv) waitStatus(paymentId common.Hash, status domain.PaymentStatus) {
	require.Eventually(e.t, func() bool {
		payment, err := e.payments.GetPayment(ctx, paymentId)
		return err == nil && payment.Status == status
	}, 5*time.Second, 20*time.Millisecond)
}

// closedPayment runs a payment through the whole new leg.
func (e *testEnv) closedPayment(purchaseId string) *domain.Payment {
	payment := e.openPayment(purchaseId)
	_, err := e.payments.ApproveNewPayment(ctx, payment.PaymentID, true, e.approvalSig(payment))
	require.NoError(e.t, err)
	e.waitStatus(payment.PaymentID, domain.PaymentReplyCompletedNew)

	closed, err := e.payments.CloseNewPayment(ctx, payment.PaymentID, common.Hash{}, true)
	require.NoError(e.t, err)
	return closed
}

// setupDelegator makes the relay hold the delegator of every test shop.
func (e *testEnv) setupDelegator() common.Address {
	delegator, err := e.accounts.CreateDelegator(
		ctx, testShopId, e.owner.address,
		e.signShop(e.codec().ShopAccountMessage(testShopId, e.owner.address), e.owner),
	)
	require.NoError(e.t, err)

	for _, shopId := range []common.Hash{testShopId, testShopId2} {
		msg := e.codec().ChangeDelegatorMessage(shopId, e.owner.address, delegator)
		_, err = e.accounts.SaveDelegator(ctx, shopId, e.owner.address, delegator, e.signShop(msg, e.owner))
		require.NoError(e.t, err)
	}
	return delegator
}
