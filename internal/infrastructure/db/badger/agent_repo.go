package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	agentDir     = "agent"
	delegatorDir = "delegator"
)

type agentRepository struct {
	store *badgerhold.Store
}

func NewAgentRepository(baseDir string, logger badger.Logger) (domain.AgentRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, agentDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent store: %s", err)
	}
	return &agentRepository{store}, nil
}

type agentData struct {
	Kind      int
	Account   string
	Agent     string
	TxHash    string
	UpdatedAt int64
}

func agentKey(kind domain.AgentKind, account common.Address) string {
	return fmt.Sprintf("%s:%s", kind, account.Hex())
}

func (r *agentRepository) Save(ctx context.Context, agent domain.Agent) error {
	return r.store.Upsert(agentKey(agent.Kind, agent.Account), agentData{
		Kind:      int(agent.Kind),
		Account:   addressKey(agent.Account),
		Agent:     addressKey(agent.Agent),
		TxHash:    hashKey(agent.TxHash),
		UpdatedAt: timeToMilli(agent.UpdatedAt),
	})
}

func (r *agentRepository) Get(
	ctx context.Context, kind domain.AgentKind, account common.Address,
) (*domain.Agent, error) {
	var data agentData
	if err := r.store.Get(agentKey(kind, account), &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrAgentNotRegistered.Wrapf("%s agent of %s", kind, account.Hex())
		}
		return nil, err
	}
	return &domain.Agent{
		Kind:      domain.AgentKind(data.Kind),
		Account:   common.HexToAddress(data.Account),
		Agent:     common.HexToAddress(data.Agent),
		TxHash:    common.HexToHash(data.TxHash),
		UpdatedAt: milliToTime(data.UpdatedAt),
	}, nil
}

func (r *agentRepository) Close() {
	// nolint:all
	r.store.Close()
}

type delegatorRepository struct {
	store *badgerhold.Store
}

func NewDelegatorRepository(baseDir string, logger badger.Logger) (domain.DelegatorRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, delegatorDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open delegator store: %s", err)
	}
	return &delegatorRepository{store}, nil
}

type delegatorData struct {
	Account      string
	Address      string
	EncryptedKey []byte
	CreatedAt    int64
}

func (r *delegatorRepository) Save(ctx context.Context, delegator domain.Delegator) error {
	return r.store.Upsert(addressKey(delegator.Account), delegatorData{
		Account:      addressKey(delegator.Account),
		Address:      addressKey(delegator.Address),
		EncryptedKey: delegator.EncryptedKey,
		CreatedAt:    timeToMilli(delegator.CreatedAt),
	})
}

func (r *delegatorRepository) Get(ctx context.Context, account common.Address) (*domain.Delegator, error) {
	var data delegatorData
	if err := r.store.Get(addressKey(account), &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrDelegatorMismatch.Wrapf("no delegator held for %s", account.Hex())
		}
		return nil, err
	}
	return &domain.Delegator{
		Account:      common.HexToAddress(data.Account),
		Address:      common.HexToAddress(data.Address),
		EncryptedKey: data.EncryptedKey,
		CreatedAt:    milliToTime(data.CreatedAt),
	}, nil
}

func (r *delegatorRepository) Close() {
	// nolint:all
	r.store.Close()
}
