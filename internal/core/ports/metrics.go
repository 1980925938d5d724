package ports

import "github.com/acc-network/relay/internal/core/domain"

// Metrics records relay level counters.
type Metrics interface {
	PaymentTransition(status domain.PaymentStatus)
	SweepItem(sweep string, err error)
}
