package domain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type PaymentStatus int

const (
	PaymentStatusNull PaymentStatus = 0

	PaymentOpenedNew             PaymentStatus = 11
	PaymentApprovedNewFailedTx   PaymentStatus = 12
	PaymentApprovedNewRevertedTx PaymentStatus = 13
	PaymentApprovedNewSentTx     PaymentStatus = 14
	PaymentApprovedNewConfirmed  PaymentStatus = 15
	PaymentDeniedNew             PaymentStatus = 16
	PaymentReplyCompletedNew     PaymentStatus = 17
	PaymentClosedNew             PaymentStatus = 18
	PaymentFailedNew             PaymentStatus = 19

	PaymentOpenedCancel             PaymentStatus = 51
	PaymentApprovedCancelFailedTx   PaymentStatus = 52
	PaymentApprovedCancelRevertedTx PaymentStatus = 53
	PaymentApprovedCancelSentTx     PaymentStatus = 54
	PaymentApprovedCancelConfirmed  PaymentStatus = 55
	PaymentDeniedCancel             PaymentStatus = 56
	PaymentReplyCompletedCancel     PaymentStatus = 57
	PaymentClosedCancel             PaymentStatus = 58
	PaymentFailedCancel             PaymentStatus = 59
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentStatusNull:               "NULL",
	PaymentOpenedNew:                "OPENED_NEW",
	PaymentApprovedNewFailedTx:      "APPROVED_NEW_FAILED_TX",
	PaymentApprovedNewRevertedTx:    "APPROVED_NEW_REVERTED_TX",
	PaymentApprovedNewSentTx:        "APPROVED_NEW_SENT_TX",
	PaymentApprovedNewConfirmed:     "APPROVED_NEW_CONFIRMED_TX",
	PaymentDeniedNew:                "DENIED_NEW",
	PaymentReplyCompletedNew:        "REPLY_COMPLETED_NEW",
	PaymentClosedNew:                "CLOSED_NEW",
	PaymentFailedNew:                "FAILED_NEW",
	PaymentOpenedCancel:             "OPENED_CANCEL",
	PaymentApprovedCancelFailedTx:   "APPROVED_CANCEL_FAILED_TX",
	PaymentApprovedCancelRevertedTx: "APPROVED_CANCEL_REVERTED_TX",
	PaymentApprovedCancelSentTx:     "APPROVED_CANCEL_SENT_TX",
	PaymentApprovedCancelConfirmed:  "APPROVED_CANCEL_CONFIRMED_TX",
	PaymentDeniedCancel:             "DENIED_CANCEL",
	PaymentReplyCompletedCancel:     "REPLY_COMPLETED_CANCEL",
	PaymentClosedCancel:             "CLOSED_CANCEL",
	PaymentFailedCancel:             "FAILED_CANCEL",
}

// paymentTransitions lists, for every status, the statuses it may move to.
// Failure sub-states loop back to SENT_TX only through re-submission, or end
// in FAILED_NEW once the payment times out.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentOpenedNew: {
		PaymentApprovedNewSentTx, PaymentApprovedNewFailedTx, PaymentDeniedNew, PaymentFailedNew,
	},
	PaymentApprovedNewFailedTx: {
		PaymentApprovedNewSentTx, PaymentApprovedNewFailedTx, PaymentFailedNew,
	},
	PaymentApprovedNewRevertedTx: {
		PaymentApprovedNewSentTx, PaymentApprovedNewFailedTx, PaymentFailedNew,
	},
	PaymentApprovedNewSentTx: {
		PaymentApprovedNewConfirmed, PaymentApprovedNewRevertedTx, PaymentApprovedNewFailedTx,
	},
	PaymentApprovedNewConfirmed: {PaymentReplyCompletedNew},
	PaymentReplyCompletedNew:    {PaymentClosedNew, PaymentFailedNew},
	PaymentClosedNew:            {PaymentOpenedCancel},

	PaymentOpenedCancel: {
		PaymentApprovedCancelSentTx, PaymentApprovedCancelFailedTx, PaymentDeniedCancel,
	},
	PaymentApprovedCancelFailedTx:   {PaymentApprovedCancelSentTx, PaymentApprovedCancelFailedTx},
	PaymentApprovedCancelRevertedTx: {PaymentApprovedCancelSentTx, PaymentApprovedCancelFailedTx},
	PaymentApprovedCancelSentTx: {
		PaymentApprovedCancelConfirmed, PaymentApprovedCancelRevertedTx, PaymentApprovedCancelFailedTx,
	},
	PaymentApprovedCancelConfirmed: {PaymentReplyCompletedCancel},
	PaymentReplyCompletedCancel:    {PaymentClosedCancel, PaymentFailedCancel},
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// PaymentStatusFromString parses the upper snake case name of a status.
func PaymentStatusFromString(s string) (PaymentStatus, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for status, n := range paymentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return PaymentStatusNull, fmt.Errorf("invalid payment status: %s", s)
}

func (s PaymentStatus) IsCancel() bool {
	return s >= PaymentOpenedCancel
}

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentDeniedNew, PaymentFailedNew, PaymentDeniedCancel, PaymentClosedCancel, PaymentFailedCancel:
		return true
	}
	return false
}

// IsAwaitingApproval is true while the owner has not yet decided.
func (s PaymentStatus) IsAwaitingApproval() bool {
	return s == PaymentOpenedNew || s == PaymentOpenedCancel
}

// IsResubmittable is true for the failure sub-states of either leg.
func (s PaymentStatus) IsResubmittable() bool {
	switch s {
	case PaymentApprovedNewFailedTx, PaymentApprovedNewRevertedTx,
		PaymentApprovedCancelFailedTx, PaymentApprovedCancelRevertedTx:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment is a hash-locked escrow record mirrored from the ledger.
type Payment struct {
	PaymentID  common.Hash
	PurchaseID string
	Account    common.Address
	ShopID     common.Hash
	Currency   string
	Amount     *big.Int

	PaidPoint  *big.Int
	FeePoint   *big.Int
	TotalPoint *big.Int

	// Secret is kept by the relay from open and only exposed once closed.
	Secret     common.Hash
	SecretLock common.Hash

	Status    PaymentStatus
	Signature []byte // last owner approval, used for re-submission
	TxHash    common.Hash

	Reminded       bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
	ApprovedAt     time.Time
	CancelOpenedAt time.Time
}

// Transition moves the payment forward or returns ErrInvalidState.
func (p *Payment) Transition(next PaymentStatus, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidState.Wrapf("cannot move payment from %s to %s", p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// VerifySecret reports whether secret opens the stored lock.
func (p Payment) VerifySecret(secret common.Hash) bool {
	return SecretLockOf(secret) == p.SecretLock
}

// SecretRevealed is true once the hash-lock has been released on chain.
func (p Payment) SecretRevealed() bool {
	switch p.Status {
	case PaymentClosedNew, PaymentFailedNew, PaymentClosedCancel, PaymentFailedCancel:
		return true
	}
	return false
}

// BlocksPurchase is true when another open for the same purchase must be
// rejected.
func (p Payment) BlocksPurchase() bool {
	switch p.Status {
	case PaymentDeniedNew, PaymentFailedNew, PaymentClosedCancel:
		return false
	}
	return true
}

func SecretLockOf(secret common.Hash) common.Hash {
	return crypto.Keccak256Hash(secret[:])
}

// PaymentRepository stores the payments opened through the relay.
type PaymentRepository interface {
	// Add rejects a payment whose purchase already has one that blocks it,
	// with ErrDuplicateRequest.
	Add(ctx context.Context, payment Payment) error
	Get(ctx context.Context, paymentId common.Hash) (*Payment, error)
	GetByPurchase(ctx context.Context, purchaseId string) ([]Payment, error)
	GetByStatus(ctx context.Context, statuses ...PaymentStatus) ([]Payment, error)
	// Update persists payment only if the stored status still equals expected,
	// otherwise it returns ErrStatusConflict.
	Update(ctx context.Context, payment Payment, expected PaymentStatus) error
	Delete(ctx context.Context, paymentId common.Hash) error
	Close()
}
