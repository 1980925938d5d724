package domain_test

import (
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPaymentTransitions(t *testing.T) {
	allowed := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentOpenedNew, domain.PaymentApprovedNewSentTx},
		{domain.PaymentOpenedNew, domain.PaymentDeniedNew},
		{domain.PaymentOpenedNew, domain.PaymentFailedNew},
		{domain.PaymentApprovedNewFailedTx, domain.PaymentApprovedNewSentTx},
		{domain.PaymentApprovedNewRevertedTx, domain.PaymentFailedNew},
		{domain.PaymentApprovedNewSentTx, domain.PaymentApprovedNewConfirmed},
		{domain.PaymentApprovedNewConfirmed, domain.PaymentReplyCompletedNew},
		{domain.PaymentReplyCompletedNew, domain.PaymentClosedNew},
		{domain.PaymentClosedNew, domain.PaymentOpenedCancel},
		{domain.PaymentOpenedCancel, domain.PaymentDeniedCancel},
		{domain.PaymentApprovedCancelRevertedTx, domain.PaymentApprovedCancelSentTx},
		{domain.PaymentReplyCompletedCancel, domain.PaymentClosedCancel},
	}
	for _, tt := range allowed {
		require.True(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	rejected := []struct {
		from, to domain.PaymentStatus
	}{
		{domain.PaymentOpenedNew, domain.PaymentClosedNew},
		{domain.PaymentDeniedNew, domain.PaymentApprovedNewSentTx},
		{domain.PaymentApprovedNewSentTx, domain.PaymentOpenedNew},
		{domain.PaymentReplyCompletedNew, domain.PaymentOpenedCancel},
		{domain.PaymentClosedCancel, domain.PaymentOpenedCancel},
		{domain.PaymentFailedNew, domain.PaymentOpenedCancel},
		{domain.PaymentOpenedCancel, domain.PaymentFailedNew},
	}
	for _, tt := range rejected {
		require.False(t, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, status := range []domain.PaymentStatus{
		domain.PaymentDeniedNew, domain.PaymentFailedNew,
		domain.PaymentDeniedCancel, domain.PaymentClosedCancel, domain.PaymentFailedCancel,
	} {
		require.True(t, status.IsTerminal(), status.String())
		for to := range allStatuses() {
			require.False(t, status.CanTransitionTo(to), "%s -> %s", status, to)
		}
	}
}

func allStatuses() map[domain.PaymentStatus]struct{} {
	statuses := map[domain.PaymentStatus]struct{}{}
	for s := domain.PaymentOpenedNew; s <= domain.PaymentFailedCancel; s++ {
		if s.String() != "UNKNOWN" {
			statuses[s] = struct{}{}
		}
	}
	return statuses
}

func TestPaymentTransition(t *testing.T) {
	now := time.Now()
	payment := domain.Payment{Status: domain.PaymentOpenedNew}

	err := payment.Transition(domain.PaymentClosedNew, now)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	require.Equal(t, domain.PaymentOpenedNew, payment.Status)

	require.NoError(t, payment.Transition(domain.PaymentApprovedNewSentTx, now))
	require.Equal(t, domain.PaymentApprovedNewSentTx, payment.Status)
	require.Equal(t, now, payment.UpdatedAt)
}

func TestPaymentSecret(t *testing.T) {
	secret := common.HexToHash("0x1234")
	payment := domain.Payment{
		Status:     domain.PaymentReplyCompletedNew,
		Secret:     secret,
		SecretLock: domain.SecretLockOf(secret),
	}
	require.True(t, payment.VerifySecret(secret))
	require.False(t, payment.VerifySecret(common.HexToHash("0x4321")))
	require.False(t, payment.SecretRevealed())

	payment.Status = domain.PaymentClosedNew
	require.True(t, payment.SecretRevealed())
}

func TestPaymentStatusNames(t *testing.T) {
	for status := range allStatuses() {
		parsed, err := domain.PaymentStatusFromString(status.String())
		require.NoError(t, err)
		require.Equal(t, status, parsed)
	}
	_, err := domain.PaymentStatusFromString("closed")
	require.Error(t, err)

	parsed, err := domain.PaymentStatusFromString("closed_new")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentClosedNew, parsed)
}

func TestBlocksPurchase(t *testing.T) {
	for status, blocks := range map[domain.PaymentStatus]bool{
		domain.PaymentOpenedNew:            true,
		domain.PaymentApprovedNewFailedTx:  true,
		domain.PaymentClosedNew:            true,
		domain.PaymentOpenedCancel:         true,
		domain.PaymentDeniedNew:            false,
		domain.PaymentFailedNew:            false,
		domain.PaymentClosedCancel:         false,
		domain.PaymentReplyCompletedCancel: true,
	} {
		require.Equal(t, blocks, domain.Payment{Status: status}.BlocksPurchase(), status.String())
	}
}
