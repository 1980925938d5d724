package ports

import "github.com/acc-network/relay/internal/core/domain"

type RepoManager interface {
	Payments() domain.PaymentRepository
	DelegateTasks() domain.DelegateRepository
	TemporaryAccounts() domain.TemporaryAccountRepository
	Settlements() domain.SettlementRepository
	Agents() domain.AgentRepository
	Delegators() domain.DelegatorRepository
	Close()
}
