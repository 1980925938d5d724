package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Shop is the ledger view of a shop.
type Shop struct {
	ShopID    common.Hash
	Name      string
	Currency  string
	Account   common.Address
	Delegator common.Address
	Status    ShopStatus
}

func (s Shop) HasDelegator() bool {
	return s.Delegator != (common.Address{})
}

type ChainPaymentStatus int

const (
	ChainPaymentInvalid ChainPaymentStatus = iota
	ChainPaymentOpenedPayment
	ChainPaymentClosedPayment
	ChainPaymentFailedPayment
	ChainPaymentOpenedCancel
	ChainPaymentClosedCancel
	ChainPaymentFailedCancel
)

// ChainPayment is the ledger view of a payment.
type ChainPayment struct {
	PaymentID  common.Hash
	PurchaseID string
	Account    common.Address
	ShopID     common.Hash
	Status     ChainPaymentStatus
	PaidPoint  *big.Int
	FeePoint   *big.Int
}

// NewPaymentRequest carries the arguments of an open payment transaction.
type NewPaymentRequest struct {
	PaymentID  common.Hash
	PurchaseID string
	Amount     *big.Int
	Currency   string
	ShopID     common.Hash
	Account    common.Address
	Signature  []byte
	SecretLock common.Hash
}

type TxOutcome int

const (
	TxPending TxOutcome = iota
	TxConfirmed
	TxReverted
)

func (o TxOutcome) String() string {
	switch o {
	case TxConfirmed:
		return "confirmed"
	case TxReverted:
		return "reverted"
	default:
		return "pending"
	}
}
