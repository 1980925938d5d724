package ports

import (
	"context"
	"math/big"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

// LedgerClient reads account nonces and drives payments on the ledger.
type LedgerClient interface {
	ChainID() *big.Int
	NonceOf(ctx context.Context, account common.Address) (*big.Int, error)
	PaymentFeeRate(ctx context.Context) (uint32, error)
	LoyaltyPaymentOf(ctx context.Context, paymentId common.Hash) (*domain.ChainPayment, error)
	OpenNewLoyaltyPayment(ctx context.Context, req domain.NewPaymentRequest) (common.Hash, error)
	CloseNewLoyaltyPayment(ctx context.Context, paymentId, secret common.Hash, confirm bool) (common.Hash, error)
	OpenCancelLoyaltyPayment(
		ctx context.Context, paymentId, secretLock common.Hash, signer common.Address, signature []byte,
	) (common.Hash, error)
	CloseCancelLoyaltyPayment(ctx context.Context, paymentId, secret common.Hash, confirm bool) (common.Hash, error)
	RegisterAgent(
		ctx context.Context, kind domain.AgentKind, account, agent common.Address, signature []byte,
	) (common.Hash, error)
	AgentOf(ctx context.Context, kind domain.AgentKind, account common.Address) (common.Address, error)
	// TxOutcome reports whether the transaction has been mined and how.
	TxOutcome(ctx context.Context, txHash common.Hash) (domain.TxOutcome, error)
}

// ShopClient manages shops, their delegators and settlement links.
type ShopClient interface {
	ShopNonceOf(ctx context.Context, account common.Address) (*big.Int, error)
	ShopOf(ctx context.Context, shopId common.Hash) (*domain.Shop, error)
	UpdateShop(
		ctx context.Context, shopId common.Hash, name, currency string, signer common.Address, signature []byte,
	) (common.Hash, error)
	ChangeShopStatus(
		ctx context.Context, shopId common.Hash, status domain.ShopStatus, signer common.Address, signature []byte,
	) (common.Hash, error)
	ChangeDelegator(
		ctx context.Context, shopId common.Hash, delegator, signer common.Address, signature []byte,
	) (common.Hash, error)
	SetSettlementManager(
		ctx context.Context, shopId, managerId common.Hash, signer common.Address, signature []byte,
	) (common.Hash, error)
	RemoveSettlementManager(
		ctx context.Context, shopId common.Hash, signer common.Address, signature []byte,
	) (common.Hash, error)
	Refund(
		ctx context.Context, shopId common.Hash, amount *big.Int, signer common.Address, signature []byte,
	) (common.Hash, error)
	CollectSettlement(
		ctx context.Context, managerId common.Hash, clients []common.Hash, signer common.Address, signature []byte,
	) (common.Hash, error)
}

// BridgeClient moves tokens between the ledger and the main chain.
type BridgeClient interface {
	TokenAddress() common.Address
	BridgeAddress() common.Address
	WithdrawViaBridge(
		ctx context.Context, account common.Address, amount *big.Int, expiry int64, signer common.Address, signature []byte,
	) (common.Hash, error)
	DepositViaBridge(
		ctx context.Context, account common.Address, amount *big.Int, expiry int64, signature []byte,
	) (common.Hash, error)
}

type ChainClient interface {
	LedgerClient
	ShopClient
	BridgeClient
	Close()
}

// RateOracle converts amounts between currencies, "point" included.
type RateOracle interface {
	ConvertCurrency(ctx context.Context, amount *big.Int, from, to string) (*big.Int, error)
}
