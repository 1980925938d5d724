package ports

import (
	"context"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

// RelayClient calls the relay public API the same way an external client
// does. The reconciler uses it to post approvals signed by delegators.
type RelayClient interface {
	GetPaymentStatus(ctx context.Context, paymentId common.Hash) (domain.PaymentStatus, error)
	ApproveCancelPayment(ctx context.Context, paymentId common.Hash, approval bool, signature []byte) error
	ApproveShopUpdate(ctx context.Context, taskId string, approval bool, signature []byte) error
	ApproveShopStatus(ctx context.Context, taskId string, approval bool, signature []byte) error
}

// PaymentStatusReader is the view the reconciler uses to re-check a payment
// before acting on it.
type PaymentStatusReader interface {
	GetPaymentStatus(ctx context.Context, paymentId common.Hash) (domain.PaymentStatus, error)
}
