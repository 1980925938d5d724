package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	temporaryAccountDir = "temporary_account"
)

type temporaryAccountRepository struct {
	store *badgerhold.Store
	lock  sync.Mutex
}

func NewTemporaryAccountRepository(
	baseDir string, logger badger.Logger,
) (domain.TemporaryAccountRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, temporaryAccountDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary account store: %s", err)
	}
	return &temporaryAccountRepository{store: store}, nil
}

type temporaryAccountData struct {
	TemporaryAccount string
	RealAccount      string
	Nonce            string
	CreatedAt        int64
	ExpiresAt        int64
	Consumed         bool
}

func (r *temporaryAccountRepository) Add(ctx context.Context, account domain.TemporaryAccount) error {
	data := temporaryAccountData{
		TemporaryAccount: addressKey(account.TemporaryAccount),
		RealAccount:      addressKey(account.RealAccount),
		Nonce:            bigToString(account.Nonce),
		CreatedAt:        timeToMilli(account.CreatedAt),
		ExpiresAt:        timeToMilli(account.ExpiresAt),
		Consumed:         account.Consumed,
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		// One temporary account per signed (real account, nonce) pair.
		var issued []temporaryAccountData
		if err := r.store.TxFind(tx, &issued, badgerhold.
			Where("RealAccount").Eq(data.RealAccount).And("Nonce").Eq(data.Nonce),
		); err != nil {
			return fmt.Errorf("failed to get temporary accounts: %w", err)
		}
		if len(issued) > 0 {
			return fmt.Errorf(
				"nonce %s of %s: %w", data.Nonce, data.RealAccount, domain.ErrAlreadyExists,
			)
		}

		if err := r.store.TxInsert(tx, data.TemporaryAccount, data); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return fmt.Errorf("temporary account %s: %w", data.TemporaryAccount, domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

func (r *temporaryAccountRepository) Get(
	ctx context.Context, temporaryAccount common.Address,
) (*domain.TemporaryAccount, error) {
	var data temporaryAccountData
	if err := r.store.Get(addressKey(temporaryAccount), &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTemporaryAccountNotFound.Wrapf("%s", temporaryAccount.Hex())
		}
		return nil, err
	}
	return &domain.TemporaryAccount{
		TemporaryAccount: common.HexToAddress(data.TemporaryAccount),
		RealAccount:      common.HexToAddress(data.RealAccount),
		Nonce:            stringToBig(data.Nonce),
		CreatedAt:        milliToTime(data.CreatedAt),
		ExpiresAt:        milliToTime(data.ExpiresAt),
		Consumed:         data.Consumed,
	}, nil
}

func (r *temporaryAccountRepository) Consume(ctx context.Context, temporaryAccount common.Address) error {
	key := addressKey(temporaryAccount)
	err := update(r.store, func(tx *badger.Txn) error {
		var stored temporaryAccountData
		if err := r.store.TxGet(tx, key, &stored); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrTemporaryAccountNotFound.Wrapf("%s", key)
			}
			return err
		}
		if stored.Consumed {
			return domain.ErrStatusConflict
		}
		stored.Consumed = true
		return r.store.TxUpdate(tx, key, stored)
	})
	if errors.Is(err, errConflict) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *temporaryAccountRepository) Close() {
	// nolint:all
	r.store.Close()
}
