package badgerdb

import (
	"errors"
	"math/big"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

// createDB opens a badgerhold store in dir, or in memory when dir is empty.
func createDB(dir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dir) <= 0

	opts := badger.DefaultOptions(dir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

// update runs fn in a read-write badger transaction. Conflicting concurrent
// writers surface as badger.ErrConflict.
func update(store *badgerhold.Store, fn func(tx *badger.Txn) error) error {
	err := store.Badger().Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return errConflict
	}
	return err
}

var errConflict = errors.New("concurrent badger transaction")

func bigToString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func stringToBig(s string) *big.Int {
	if len(s) <= 0 {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}

func timeToMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func milliToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func hashKey(h common.Hash) string {
	return h.Hex()
}

func addressKey(a common.Address) string {
	return a.Hex()
}
