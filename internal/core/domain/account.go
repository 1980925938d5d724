package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TemporaryAccount is a one time alias of a real account handed to a
// point of sale device.
type TemporaryAccount struct {
	TemporaryAccount common.Address
	RealAccount      common.Address
	Nonce            *big.Int
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Consumed         bool
}

func (t TemporaryAccount) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TemporaryAccountRepository interface {
	Add(ctx context.Context, account TemporaryAccount) error
	Get(ctx context.Context, temporaryAccount common.Address) (*TemporaryAccount, error)
	// Consume flags the alias as used, failing with ErrStatusConflict if it
	// already was.
	Consume(ctx context.Context, temporaryAccount common.Address) error
	Close()
}

// SettlementRepository mirrors the manager/client hierarchy of shops. A
// single link per shop keeps both directions consistent.
type SettlementRepository interface {
	SetManager(ctx context.Context, shopId, managerId common.Hash) error
	RemoveManager(ctx context.Context, shopId common.Hash) error
	// GetManager returns the zero hash when the shop has no manager.
	GetManager(ctx context.Context, shopId common.Hash) (common.Hash, error)
	GetClients(ctx context.Context, managerId common.Hash) ([]common.Hash, error)
	Close()
}

type AgentKind int

const (
	AgentWithdrawal AgentKind = iota
	AgentRefund
)

func (k AgentKind) String() string {
	if k == AgentRefund {
		return "refund"
	}
	return "withdrawal"
}

func AgentKindFromString(s string) (AgentKind, bool) {
	switch s {
	case "withdrawal":
		return AgentWithdrawal, true
	case "refund":
		return AgentRefund, true
	}
	return AgentWithdrawal, false
}

// Agent is an address allowed to sign one capability for an account.
type Agent struct {
	Kind      AgentKind
	Account   common.Address
	Agent     common.Address
	TxHash    common.Hash
	UpdatedAt time.Time
}

type AgentRepository interface {
	// Save inserts or replaces the agent of (kind, account).
	Save(ctx context.Context, agent Agent) error
	Get(ctx context.Context, kind AgentKind, account common.Address) (*Agent, error)
	Close()
}

// Delegator is a key held by the relay on behalf of a shop owner account.
type Delegator struct {
	Account      common.Address
	Address      common.Address
	EncryptedKey []byte
	CreatedAt    time.Time
}

type DelegatorRepository interface {
	// Save inserts or replaces the delegator of the account.
	Save(ctx context.Context, delegator Delegator) error
	Get(ctx context.Context, account common.Address) (*Delegator, error)
	Close()
}
