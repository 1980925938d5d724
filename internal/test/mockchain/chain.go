// Package mockchain is an in-memory ledger used by tests. It checks the same
// signatures the contracts do and moves nonces forward on every accepted
// transaction.
package mockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/pkg/signature"
	"github.com/ethereum/go-ethereum/common"
)

var (
	DefaultChainID = big.NewInt(24680)
	TokenAddress   = common.HexToAddress("0x00000000000000000000000000000000000001a1")
	BridgeAddress  = common.HexToAddress("0x00000000000000000000000000000000000001b2")
)

type agentKey struct {
	kind    domain.AgentKind
	account common.Address
}

type Chain struct {
	mu sync.Mutex

	codec      *signature.Codec
	feeRate    uint32
	rates      map[string]*big.Int
	nonces     map[common.Address]*big.Int
	shopNonces map[common.Address]*big.Int
	shops      map[common.Hash]domain.Shop
	payments   map[common.Hash]domain.ChainPayment
	agents     map[agentKey]common.Address
	managers   map[common.Hash]common.Hash

	outcomes       map[common.Hash]domain.TxOutcome
	defaultOutcome domain.TxOutcome
	failures       map[string]error
	calls          map[string]int
	txCount        int64
}

var (
	_ ports.ChainClient = (*Chain)(nil)
	_ ports.RateOracle  = (*Chain)(nil)
)

// New returns a ledger with a fee rate of 0 and every currency worth one
// point per unit.
func New() *Chain {
	return &Chain{
		codec:          signature.NewCodec(DefaultChainID, 0),
		rates:          map[string]*big.Int{},
		nonces:         map[common.Address]*big.Int{},
		shopNonces:     map[common.Address]*big.Int{},
		shops:          map[common.Hash]domain.Shop{},
		payments:       map[common.Hash]domain.ChainPayment{},
		agents:         map[agentKey]common.Address{},
		managers:       map[common.Hash]common.Hash{},
		outcomes:       map[common.Hash]domain.TxOutcome{},
		defaultOutcome: domain.TxConfirmed,
		failures:       map[string]error{},
		calls:          map[string]int{},
	}
}

// SetFeeRate sets the payment fee in basis points.
func (c *Chain) SetFeeRate(bp uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeRate = bp
}

// SetRate sets how many points a unit of currency is worth.
func (c *Chain) SetRate(currency string, points int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[strings.ToLower(currency)] = big.NewInt(points)
}

func (c *Chain) AddShop(shop domain.Shop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shops[shop.ShopID] = shop
}

// Fail makes every later call of method return err until cleared with a nil
// error.
func (c *Chain) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// SetDefaultOutcome sets the receipt of transactions sent from now on.
func (c *Chain) SetDefaultOutcome(outcome domain.TxOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultOutcome = outcome
}

func (c *Chain) SetOutcome(txHash common.Hash, outcome domain.TxOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[txHash] = outcome
}

// Calls returns how many transactions of method were attempted.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Chain) Payment(paymentId common.Hash) domain.ChainPayment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payments[paymentId]
}

// BumpNonce moves the ledger nonce of account forward, as any unrelated
// transaction would.
func (c *Chain) BumpNonce(account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[account] = new(big.Int).Add(c.nonceOf(c.nonces, account), big.NewInt(1))
}

func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(DefaultChainID)
}

func (c *Chain) TokenAddress() common.Address {
	return TokenAddress
}

func (c *Chain) BridgeAddress() common.Address {
	return BridgeAddress
}

func (c *Chain) Close() {}

func (c *Chain) nonceOf(nonces map[common.Address]*big.Int, account common.Address) *big.Int {
	if n, ok := nonces[account]; ok {
		return new(big.Int).Set(n)
	}
	return big.NewInt(0)
}

func (c *Chain) NonceOf(_ context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonceOf(c.nonces, account), nil
}

func (c *Chain) ShopNonceOf(_ context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonceOf(c.shopNonces, account), nil
}

func (c *Chain) PaymentFeeRate(context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feeRate, nil
}

func (c *Chain) ConvertCurrency(_ context.Context, amount *big.Int, from, to string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fromRate, err := c.rate(from)
	if err != nil {
		return nil, err
	}
	toRate, err := c.rate(to)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(amount, fromRate)
	return out.Div(out, toRate), nil
}

func (c *Chain) rate(currency string) (*big.Int, error) {
	currency = strings.ToLower(currency)
	if currency == "point" {
		return big.NewInt(1), nil
	}
	if r, ok := c.rates[currency]; ok {
		return r, nil
	}
	if len(c.rates) == 0 {
		return big.NewInt(1), nil
	}
	return nil, fmt.Errorf("unknown currency %s", currency)
}

// send records an attempt of method and returns its tx hash, or the injected
// failure. The caller holds the lock.
func (c *Chain) send(method string) (common.Hash, error) {
	c.calls[method]++
	if err := c.failures[method]; err != nil {
		return common.Hash{}, err
	}
	c.txCount++
	txHash := common.BigToHash(big.NewInt(0x7700000 + c.txCount))
	c.outcomes[txHash] = c.defaultOutcome
	return txHash, nil
}

// consume checks that signer signed msg at its current nonce and moves the
// nonce forward. The caller holds the lock.
func (c *Chain) consume(
	nonces map[common.Address]*big.Int, msg signature.Message, sig []byte, signer common.Address,
) error {
	nonce := c.nonceOf(nonces, signer)
	if err := c.codec.Verify(msg, sig, signer, nonce); err != nil {
		return err
	}
	nonces[signer] = nonce.Add(nonce, big.NewInt(1))
	return nil
}

func (c *Chain) TxOutcome(_ context.Context, txHash common.Hash) (domain.TxOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failures["TxOutcome"]; err != nil {
		return domain.TxPending, err
	}
	outcome, ok := c.outcomes[txHash]
	if !ok {
		return domain.TxPending, nil
	}
	return outcome, nil
}

func (c *Chain) LoyaltyPaymentOf(_ context.Context, paymentId common.Hash) (*domain.ChainPayment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payment, ok := c.payments[paymentId]
	if !ok {
		return &domain.ChainPayment{PaymentID: paymentId, Status: domain.ChainPaymentInvalid}, nil
	}
	return &payment, nil
}

func (c *Chain) OpenNewLoyaltyPayment(_ context.Context, req domain.NewPaymentRequest) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("OpenNewLoyaltyPayment")
	if err != nil {
		return common.Hash{}, err
	}
	if p, ok := c.payments[req.PaymentID]; ok && p.Status != domain.ChainPaymentInvalid {
		return common.Hash{}, fmt.Errorf("payment %s already exists", req.PaymentID.Hex())
	}
	msg := c.codec.NewPaymentMessage(
		req.Account, req.PaymentID, req.PurchaseID, req.Amount, req.Currency, req.ShopID,
	)
	if err := c.consume(c.nonces, msg, req.Signature, req.Account); err != nil {
		return common.Hash{}, err
	}
	c.payments[req.PaymentID] = domain.ChainPayment{
		PaymentID:  req.PaymentID,
		PurchaseID: req.PurchaseID,
		Account:    req.Account,
		ShopID:     req.ShopID,
		Status:     domain.ChainPaymentOpenedPayment,
	}
	return txHash, nil
}

func (c *Chain) move(
	method string, paymentId common.Hash, from, closed, failed domain.ChainPaymentStatus, confirm bool,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send(method)
	if err != nil {
		return common.Hash{}, err
	}
	payment, ok := c.payments[paymentId]
	if !ok || payment.Status != from {
		return common.Hash{}, fmt.Errorf("payment %s is not open", paymentId.Hex())
	}
	payment.Status = closed
	if !confirm {
		payment.Status = failed
	}
	c.payments[paymentId] = payment
	return txHash, nil
}

func (c *Chain) CloseNewLoyaltyPayment(
	_ context.Context, paymentId, _ common.Hash, confirm bool,
) (common.Hash, error) {
	return c.move(
		"CloseNewLoyaltyPayment", paymentId, domain.ChainPaymentOpenedPayment,
		domain.ChainPaymentClosedPayment, domain.ChainPaymentFailedPayment, confirm,
	)
}

func (c *Chain) CloseCancelLoyaltyPayment(
	_ context.Context, paymentId, _ common.Hash, confirm bool,
) (common.Hash, error) {
	return c.move(
		"CloseCancelLoyaltyPayment", paymentId, domain.ChainPaymentOpenedCancel,
		domain.ChainPaymentClosedCancel, domain.ChainPaymentFailedCancel, confirm,
	)
}

func (c *Chain) OpenCancelLoyaltyPayment(
	_ context.Context, paymentId, _ common.Hash, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("OpenCancelLoyaltyPayment")
	if err != nil {
		return common.Hash{}, err
	}
	payment, ok := c.payments[paymentId]
	if !ok || payment.Status != domain.ChainPaymentClosedPayment {
		return common.Hash{}, fmt.Errorf("payment %s cannot be cancelled", paymentId.Hex())
	}
	shop := c.shops[payment.ShopID]
	if signer != shop.Account && signer != shop.Delegator {
		return common.Hash{}, fmt.Errorf("%s cannot cancel payments of shop %s", signer.Hex(), shop.ShopID.Hex())
	}
	msg := c.codec.CancelPaymentMessage(signer, paymentId, payment.PurchaseID)
	if err := c.consume(c.nonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	payment.Status = domain.ChainPaymentOpenedCancel
	c.payments[paymentId] = payment
	return txHash, nil
}

func (c *Chain) RegisterAgent(
	_ context.Context, kind domain.AgentKind, account, agent common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("RegisterAgent")
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.consume(c.nonces, c.codec.RegisterAgentMessage(account, agent), sig, account); err != nil {
		return common.Hash{}, err
	}
	c.agents[agentKey{kind, account}] = agent
	return txHash, nil
}

func (c *Chain) AgentOf(_ context.Context, kind domain.AgentKind, account common.Address) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failures["AgentOf"]; err != nil {
		return common.Address{}, err
	}
	return c.agents[agentKey{kind, account}], nil
}

func (c *Chain) ShopOf(_ context.Context, shopId common.Hash) (*domain.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shop, ok := c.shops[shopId]
	if !ok {
		return nil, domain.ErrShopNotFound.Wrapf("shop %s", shopId.Hex())
	}
	return &shop, nil
}

// shopSigner returns the shop after checking signer may act on it. The caller
// holds the lock.
func (c *Chain) shopSigner(shopId common.Hash, signer common.Address) (domain.Shop, error) {
	shop, ok := c.shops[shopId]
	if !ok {
		return domain.Shop{}, fmt.Errorf("unknown shop %s", shopId.Hex())
	}
	if signer != shop.Account && (!shop.HasDelegator() || signer != shop.Delegator) {
		return domain.Shop{}, fmt.Errorf("%s cannot act on shop %s", signer.Hex(), shopId.Hex())
	}
	return shop, nil
}

func (c *Chain) UpdateShop(
	_ context.Context, shopId common.Hash, name, currency string, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("UpdateShop")
	if err != nil {
		return common.Hash{}, err
	}
	shop, err := c.shopSigner(shopId, signer)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.consume(c.shopNonces, c.codec.ShopAccountMessage(shopId, signer), sig, signer); err != nil {
		return common.Hash{}, err
	}
	shop.Name, shop.Currency = name, currency
	c.shops[shopId] = shop
	return txHash, nil
}

func (c *Chain) ChangeShopStatus(
	_ context.Context, shopId common.Hash, status domain.ShopStatus, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("ChangeShopStatus")
	if err != nil {
		return common.Hash{}, err
	}
	shop, err := c.shopSigner(shopId, signer)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.consume(c.shopNonces, c.codec.ShopAccountMessage(shopId, signer), sig, signer); err != nil {
		return common.Hash{}, err
	}
	shop.Status = status
	c.shops[shopId] = shop
	return txHash, nil
}

func (c *Chain) ChangeDelegator(
	_ context.Context, shopId common.Hash, delegator, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("ChangeDelegator")
	if err != nil {
		return common.Hash{}, err
	}
	shop, ok := c.shops[shopId]
	if !ok || shop.Account != signer {
		return common.Hash{}, fmt.Errorf("%s does not own shop %s", signer.Hex(), shopId.Hex())
	}
	msg := c.codec.ChangeDelegatorMessage(shopId, signer, delegator)
	if err := c.consume(c.shopNonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	shop.Delegator = delegator
	c.shops[shopId] = shop
	return txHash, nil
}

func (c *Chain) SetSettlementManager(
	_ context.Context, shopId, managerId common.Hash, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("SetSettlementManager")
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := c.shopSigner(shopId, signer); err != nil {
		return common.Hash{}, err
	}
	msg := c.codec.SetSettlementManagerMessage(shopId, managerId)
	if err := c.consume(c.shopNonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	c.managers[shopId] = managerId
	return txHash, nil
}

func (c *Chain) RemoveSettlementManager(
	_ context.Context, shopId common.Hash, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("RemoveSettlementManager")
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := c.shopSigner(shopId, signer); err != nil {
		return common.Hash{}, err
	}
	msg := c.codec.RemoveSettlementManagerMessage(shopId)
	if err := c.consume(c.shopNonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	delete(c.managers, shopId)
	return txHash, nil
}

func (c *Chain) Refund(
	_ context.Context, shopId common.Hash, amount *big.Int, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("Refund")
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.consume(c.shopNonces, c.codec.ShopRefundMessage(shopId, amount), sig, signer); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (c *Chain) CollectSettlement(
	_ context.Context, managerId common.Hash, clients []common.Hash, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("CollectSettlement")
	if err != nil {
		return common.Hash{}, err
	}
	for _, client := range clients {
		if c.managers[client] != managerId {
			return common.Hash{}, fmt.Errorf("shop %s is not a client of %s", client.Hex(), managerId.Hex())
		}
	}
	msg := c.codec.CollectSettlementMessage(managerId, clients)
	if err := c.consume(c.shopNonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (c *Chain) WithdrawViaBridge(
	_ context.Context, account common.Address, amount *big.Int, expiry int64, signer common.Address, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("WithdrawViaBridge")
	if err != nil {
		return common.Hash{}, err
	}
	if signer != account && c.agents[agentKey{domain.AgentWithdrawal, account}] != signer {
		return common.Hash{}, fmt.Errorf("%s cannot withdraw for %s", signer.Hex(), account.Hex())
	}
	msg := c.codec.TransferMessage(TokenAddress, account, BridgeAddress, amount, expiry)
	if err := c.consume(c.nonces, msg, sig, signer); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

func (c *Chain) DepositViaBridge(
	_ context.Context, account common.Address, amount *big.Int, expiry int64, sig []byte,
) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txHash, err := c.send("DepositViaBridge")
	if err != nil {
		return common.Hash{}, err
	}
	msg := c.codec.TransferMessage(TokenAddress, account, BridgeAddress, amount, expiry)
	if err := c.consume(c.nonces, msg, sig, account); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}
