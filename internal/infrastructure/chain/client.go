package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/acc-network/relay/internal/core/ports"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

const revertedMessage = "execution reverted"

type Config struct {
	RPCURL string
	// ChainID is asked to the node when zero.
	ChainID    int64
	PrivateKey string

	LedgerAddress   common.Address
	ShopAddress     common.Address
	ConsumerAddress common.Address
	CurrencyAddress common.Address
	BridgeAddress   common.Address
	TokenAddress    common.Address
}

func (c Config) validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("missing relay private key")
	}
	for name, addr := range map[string]common.Address{
		"ledger":   c.LedgerAddress,
		"shop":     c.ShopAddress,
		"consumer": c.ConsumerAddress,
		"currency": c.CurrencyAddress,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("missing %s contract address", name)
		}
	}
	return nil
}

// Backend is the part of an ethereum node the client relies on.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

type service struct {
	backend Backend
	chainID *big.Int
	signer  *bind.TransactOpts
	token   common.Address
	bridge  common.Address

	ledger   *bind.BoundContract
	consumer *bind.BoundContract
	shop     *bind.BoundContract
	currency *bind.BoundContract
	bridges  *bind.BoundContract

	// txs are sent one at a time so that pending nonces never collide
	txMu sync.Mutex
}

// NewService dials the node and returns a client acting both as chain client
// and rate oracle.
func NewService(ctx context.Context, cfg Config) (ports.ChainClient, ports.RateOracle, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("missing chain rpc url")
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to chain: %w", err)
	}
	svc, err := newService(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return svc, svc, nil
}

func newService(ctx context.Context, backend Backend, cfg Config) (*service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid relay private key: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = backend.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
	}
	signer, err := newTransactor(key, chainID)
	if err != nil {
		return nil, err
	}

	log.Infof("chain client connected (chain id %s, relay %s)", chainID, signer.From.Hex())
	return &service{
		backend:  backend,
		chainID:  chainID,
		signer:   signer,
		token:    cfg.TokenAddress,
		bridge:   cfg.BridgeAddress,
		ledger:   bind.NewBoundContract(cfg.LedgerAddress, ledgerContractABI, backend, backend, backend),
		consumer: bind.NewBoundContract(cfg.ConsumerAddress, consumerContractABI, backend, backend, backend),
		shop:     bind.NewBoundContract(cfg.ShopAddress, shopContractABI, backend, backend, backend),
		currency: bind.NewBoundContract(cfg.CurrencyAddress, currencyContractABI, backend, backend, backend),
		bridges:  bind.NewBoundContract(cfg.BridgeAddress, bridgeContractABI, backend, backend, backend),
	}, nil
}

func newTransactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, nil
}

func (s *service) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

func (s *service) TokenAddress() common.Address {
	return s.token
}

func (s *service) BridgeAddress() common.Address {
	return s.bridge
}

func (s *service) Close() {
	s.backend.Close()
}

func (s *service) call(
	ctx context.Context, contract *bind.BoundContract, method string, args ...any,
) ([]any, error) {
	var out []any
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

func (s *service) transact(
	ctx context.Context, contract *bind.BoundContract, method string, args ...any,
) (common.Hash, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	opts := *s.signer
	opts.Context = ctx
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		if strings.Contains(err.Error(), revertedMessage) {
			return common.Hash{}, domain.ErrChainReverted.Wrapf("%s: %s", method, err)
		}
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}
	log.Debugf("sent %s in tx %s", method, tx.Hash().Hex())
	return tx.Hash(), nil
}

func (s *service) NonceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := s.call(ctx, s.ledger, "nonceOf", account)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (s *service) ShopNonceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := s.call(ctx, s.shop, "nonceOf", account)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (s *service) PaymentFeeRate(ctx context.Context) (uint32, error) {
	out, err := s.call(ctx, s.ledger, "getPaymentFee")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint32)).(*uint32), nil
}

func (s *service) ConvertCurrency(ctx context.Context, amount *big.Int, from, to string) (*big.Int, error) {
	out, err := s.call(ctx, s.currency, "convertCurrency", amount, from, to)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (s *service) LoyaltyPaymentOf(ctx context.Context, paymentId common.Hash) (*domain.ChainPayment, error) {
	out, err := s.call(ctx, s.consumer, "loyaltyPaymentOf", paymentId)
	if err != nil {
		return nil, err
	}
	return &domain.ChainPayment{
		PaymentID:  *abi.ConvertType(out[0], new([32]byte)).(*[32]byte),
		PurchaseID: *abi.ConvertType(out[1], new(string)).(*string),
		Account:    *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		ShopID:     *abi.ConvertType(out[3], new([32]byte)).(*[32]byte),
		Status:     domain.ChainPaymentStatus(*abi.ConvertType(out[4], new(uint8)).(*uint8)),
		PaidPoint:  *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		FeePoint:   *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
	}, nil
}

func (s *service) ShopOf(ctx context.Context, shopId common.Hash) (*domain.Shop, error) {
	out, err := s.call(ctx, s.shop, "shopOf", shopId)
	if err != nil {
		return nil, err
	}
	shop := &domain.Shop{
		ShopID:    *abi.ConvertType(out[0], new([32]byte)).(*[32]byte),
		Name:      *abi.ConvertType(out[1], new(string)).(*string),
		Currency:  *abi.ConvertType(out[2], new(string)).(*string),
		Account:   *abi.ConvertType(out[3], new(common.Address)).(*common.Address),
		Delegator: *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
		Status:    domain.ShopStatus(*abi.ConvertType(out[5], new(uint8)).(*uint8)),
	}
	if shop.Status == domain.ShopStatusInvalid {
		return nil, domain.ErrShopNotFound.Wrapf("shop %s", shopId.Hex())
	}
	return shop, nil
}

func (s *service) AgentOf(ctx context.Context, kind domain.AgentKind, account common.Address) (common.Address, error) {
	method := "withdrawalAgentOf"
	if kind == domain.AgentRefund {
		method = "refundAgentOf"
	}
	out, err := s.call(ctx, s.ledger, method, account)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// TxOutcome reports a transaction unknown to the node as pending.
func (s *service) TxOutcome(ctx context.Context, txHash common.Hash) (domain.TxOutcome, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.TxPending, nil
		}
		return domain.TxPending, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.TxReverted, nil
	}
	return domain.TxConfirmed, nil
}

func (s *service) OpenNewLoyaltyPayment(ctx context.Context, req domain.NewPaymentRequest) (common.Hash, error) {
	return s.transact(ctx, s.consumer, "openNewLoyaltyPayment",
		req.PaymentID, req.PurchaseID, req.Amount, req.Currency, req.ShopID,
		req.Account, req.Signature, req.SecretLock,
	)
}

func (s *service) CloseNewLoyaltyPayment(
	ctx context.Context, paymentId, secret common.Hash, confirm bool,
) (common.Hash, error) {
	return s.transact(ctx, s.consumer, "closeNewLoyaltyPayment", paymentId, secret, confirm)
}

func (s *service) OpenCancelLoyaltyPayment(
	ctx context.Context, paymentId, secretLock common.Hash, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.consumer, "openCancelLoyaltyPayment", paymentId, secretLock, signer, signature)
}

func (s *service) CloseCancelLoyaltyPayment(
	ctx context.Context, paymentId, secret common.Hash, confirm bool,
) (common.Hash, error) {
	return s.transact(ctx, s.consumer, "closeCancelLoyaltyPayment", paymentId, secret, confirm)
}

func (s *service) RegisterAgent(
	ctx context.Context, kind domain.AgentKind, account, agent common.Address, signature []byte,
) (common.Hash, error) {
	method := "registerWithdrawalAgent"
	if kind == domain.AgentRefund {
		method = "registerRefundAgent"
	}
	return s.transact(ctx, s.ledger, method, account, agent, signature)
}

func (s *service) UpdateShop(
	ctx context.Context, shopId common.Hash, name, currency string, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "update", shopId, name, currency, signer, signature)
}

func (s *service) ChangeShopStatus(
	ctx context.Context, shopId common.Hash, status domain.ShopStatus, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "changeStatus", shopId, uint8(status), signer, signature)
}

func (s *service) ChangeDelegator(
	ctx context.Context, shopId common.Hash, delegator, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "changeDelegator", shopId, delegator, signer, signature)
}

func (s *service) SetSettlementManager(
	ctx context.Context, shopId, managerId common.Hash, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "setSettlementManager", shopId, managerId, signer, signature)
}

func (s *service) RemoveSettlementManager(
	ctx context.Context, shopId common.Hash, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "removeSettlementManager", shopId, signer, signature)
}

func (s *service) Refund(
	ctx context.Context, shopId common.Hash, amount *big.Int, signer common.Address, signature []byte,
) (common.Hash, error) {
	return s.transact(ctx, s.shop, "refund", shopId, amount, signer, signature)
}

func (s *service) CollectSettlement(
	ctx context.Context, managerId common.Hash, clients []common.Hash, signer common.Address, signature []byte,
) (common.Hash, error) {
	ids := make([][32]byte, 0, len(clients))
	for _, id := range clients {
		ids = append(ids, id)
	}
	return s.transact(ctx, s.shop, "collectSettlement", managerId, ids, signer, signature)
}

func (s *service) WithdrawViaBridge(
	ctx context.Context, account common.Address, amount *big.Int, expiry int64, signer common.Address, signature []byte,
) (common.Hash, error) {
	if s.bridge == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("bridge is not configured")
	}
	return s.transact(ctx, s.bridges, "withdrawViaBridge", account, amount, big.NewInt(expiry), signer, signature)
}

func (s *service) DepositViaBridge(
	ctx context.Context, account common.Address, amount *big.Int, expiry int64, signature []byte,
) (common.Hash, error) {
	if s.bridge == (common.Address{}) {
		return common.Hash{}, fmt.Errorf("bridge is not configured")
	}
	return s.transact(ctx, s.bridges, "depositViaBridge", account, amount, big.NewInt(expiry), signature)
}
