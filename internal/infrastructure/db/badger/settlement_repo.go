package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	settlementDir = "settlement"
)

type settlementRepository struct {
	store *badgerhold.Store
}

func NewSettlementRepository(
	baseDir string, logger badger.Logger,
) (domain.SettlementRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, settlementDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settlement store: %s", err)
	}
	return &settlementRepository{store}, nil
}

// settlementLink is keyed by shop, so a shop belongs to one manager only.
type settlementLink struct {
	ShopID    string
	ManagerID string
	Seq       uint64
}

func (r *settlementRepository) SetManager(ctx context.Context, shopId, managerId common.Hash) error {
	seq, err := r.store.Badger().GetSequence([]byte("settlement-seq"), 10)
	if err != nil {
		return err
	}
	defer seq.Release()
	next, err := seq.Next()
	if err != nil {
		return err
	}

	link := settlementLink{ShopID: hashKey(shopId), ManagerID: hashKey(managerId), Seq: next}
	err = update(r.store, func(tx *badger.Txn) error {
		return r.store.TxUpsert(tx, link.ShopID, link)
	})
	if errors.Is(err, errConflict) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *settlementRepository) RemoveManager(ctx context.Context, shopId common.Hash) error {
	err := r.store.Delete(hashKey(shopId), settlementLink{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}
	return nil
}

func (r *settlementRepository) GetManager(ctx context.Context, shopId common.Hash) (common.Hash, error) {
	var link settlementLink
	if err := r.store.Get(hashKey(shopId), &link); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.Hash{}, nil
		}
		return common.Hash{}, err
	}
	return common.HexToHash(link.ManagerID), nil
}

func (r *settlementRepository) GetClients(ctx context.Context, managerId common.Hash) ([]common.Hash, error) {
	var links []settlementLink
	if err := r.store.Find(&links, badgerhold.Where("ManagerID").Eq(hashKey(managerId))); err != nil {
		return nil, fmt.Errorf("failed to get settlement clients: %w", err)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].Seq < links[j].Seq
	})
	clients := make([]common.Hash, 0, len(links))
	for _, l := range links {
		clients = append(clients, common.HexToHash(l.ShopID))
	}
	return clients, nil
}

func (r *settlementRepository) Close() {
	// nolint:all
	r.store.Close()
}
