package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

type agentRepository struct {
	db *sql.DB
}

func NewAgentRepository(db *sql.DB) (domain.AgentRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open agent repository: db is nil")
	}
	return &agentRepository{db}, nil
}

func (r *agentRepository) Save(ctx context.Context, agent domain.Agent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO agent (kind, account, agent, tx_hash, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, account) DO UPDATE SET
		agent = excluded.agent, tx_hash = excluded.tx_hash, updated_at = excluded.updated_at`,
		int64(agent.Kind), agent.Account.Hex(), agent.Agent.Hex(), agent.TxHash.Hex(),
		timeToMilli(agent.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (r *agentRepository) Get(
	ctx context.Context, kind domain.AgentKind, account common.Address,
) (*domain.Agent, error) {
	var (
		agent, txHash string
		updatedAt     int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT agent, tx_hash, updated_at FROM agent WHERE kind = ? AND account = ?`,
		int64(kind), account.Hex(),
	).Scan(&agent, &txHash, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAgentNotRegistered.Wrapf("%s agent of %s", kind, account.Hex())
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &domain.Agent{
		Kind:      kind,
		Account:   account,
		Agent:     common.HexToAddress(agent),
		TxHash:    common.HexToHash(txHash),
		UpdatedAt: milliToTime(updatedAt),
	}, nil
}

func (r *agentRepository) Close() {
	// nolint:all
	r.db.Close()
}

type delegatorRepository struct {
	db *sql.DB
}

func NewDelegatorRepository(db *sql.DB) (domain.DelegatorRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open delegator repository: db is nil")
	}
	return &delegatorRepository{db}, nil
}

func (r *delegatorRepository) Save(ctx context.Context, delegator domain.Delegator) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delegator (account, address, encrypted_key, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (account) DO UPDATE SET
		address = excluded.address, encrypted_key = excluded.encrypted_key, created_at = excluded.created_at`,
		delegator.Account.Hex(), delegator.Address.Hex(), delegator.EncryptedKey,
		timeToMilli(delegator.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save delegator: %w", err)
	}
	return nil
}

func (r *delegatorRepository) Get(ctx context.Context, account common.Address) (*domain.Delegator, error) {
	var (
		address   string
		key       []byte
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT address, encrypted_key, created_at FROM delegator WHERE account = ?`, account.Hex(),
	).Scan(&address, &key, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDelegatorMismatch.Wrapf("no delegator held for %s", account.Hex())
		}
		return nil, fmt.Errorf("failed to get delegator: %w", err)
	}
	return &domain.Delegator{
		Account:      account,
		Address:      common.HexToAddress(address),
		EncryptedKey: key,
		CreatedAt:    milliToTime(createdAt),
	}, nil
}

func (r *delegatorRepository) Close() {
	// nolint:all
	r.db.Close()
}
