package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"
)

const (
	paymentDir = "payment"
)

type paymentRepository struct {
	store *badgerhold.Store
	// lock serializes inserts, the purchase lookup is not part of the
	// transaction conflict set.
	lock sync.Mutex
}

func NewPaymentRepository(baseDir string, logger badger.Logger) (domain.PaymentRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, paymentDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open payment store: %s", err)
	}
	return &paymentRepository{store: store}, nil
}

func (r *paymentRepository) Add(ctx context.Context, payment domain.Payment) error {
	data := toPaymentData(payment)

	r.lock.Lock()
	defer r.lock.Unlock()

	return update(r.store, func(tx *badger.Txn) error {
		var list []paymentData
		if err := r.store.TxFind(
			tx, &list, badgerhold.Where("PurchaseID").Eq(data.PurchaseID),
		); err != nil {
			return fmt.Errorf("failed to get payments of purchase: %w", err)
		}
		for _, d := range list {
			if d.PaymentID == data.PaymentID {
				return fmt.Errorf("payment %s: %w", data.PaymentID, domain.ErrAlreadyExists)
			}
			if d.toPayment().BlocksPurchase() {
				return domain.ErrDuplicateRequest.Wrapf("purchase %s", data.PurchaseID)
			}
		}

		if err := r.store.TxInsert(tx, data.PaymentID, data); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return fmt.Errorf("payment %s: %w", data.PaymentID, domain.ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

func (r *paymentRepository) Get(ctx context.Context, paymentId common.Hash) (*domain.Payment, error) {
	var data paymentData
	if err := r.store.Get(hashKey(paymentId), &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound.Wrapf("%s", paymentId.Hex())
		}
		return nil, err
	}
	payment := data.toPayment()
	return &payment, nil
}

func (r *paymentRepository) GetByPurchase(ctx context.Context, purchaseId string) ([]domain.Payment, error) {
	var list []paymentData
	if err := r.store.Find(&list, badgerhold.Where("PurchaseID").Eq(purchaseId)); err != nil {
		return nil, fmt.Errorf("failed to get payments of purchase: %w", err)
	}
	return toPayments(list), nil
}

func (r *paymentRepository) GetByStatus(
	ctx context.Context, statuses ...domain.PaymentStatus,
) ([]domain.Payment, error) {
	if len(statuses) <= 0 {
		return nil, nil
	}
	values := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, int(s))
	}
	var list []paymentData
	if err := r.store.Find(&list, badgerhold.Where("Status").In(values...)); err != nil {
		return nil, fmt.Errorf("failed to get payments by status: %w", err)
	}
	return toPayments(list), nil
}

func (r *paymentRepository) Update(
	ctx context.Context, payment domain.Payment, expected domain.PaymentStatus,
) error {
	data := toPaymentData(payment)
	err := update(r.store, func(tx *badger.Txn) error {
		var stored paymentData
		if err := r.store.TxGet(tx, data.PaymentID, &stored); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrPaymentNotFound.Wrapf("%s", data.PaymentID)
			}
			return err
		}
		if stored.Status != int(expected) {
			return domain.ErrStatusConflict
		}
		return r.store.TxUpdate(tx, data.PaymentID, data)
	})
	if errors.Is(err, errConflict) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *paymentRepository) Delete(ctx context.Context, paymentId common.Hash) error {
	if err := r.store.Delete(hashKey(paymentId), paymentData{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrPaymentNotFound.Wrapf("%s", paymentId.Hex())
		}
		return err
	}
	return nil
}

func (r *paymentRepository) Close() {
	// nolint:all
	r.store.Close()
}

type paymentData struct {
	PaymentID      string
	PurchaseID     string
	Account        string
	ShopID         string
	Currency       string
	Amount         string
	PaidPoint      string
	FeePoint       string
	TotalPoint     string
	Secret         string
	SecretLock     string
	Status         int
	Signature      []byte
	TxHash         string
	Reminded       bool
	CreatedAt      int64
	ExpiresAt      int64
	UpdatedAt      int64
	ApprovedAt     int64
	CancelOpenedAt int64
}

func toPaymentData(p domain.Payment) paymentData {
	return paymentData{
		PaymentID:      hashKey(p.PaymentID),
		PurchaseID:     p.PurchaseID,
		Account:        addressKey(p.Account),
		ShopID:         hashKey(p.ShopID),
		Currency:       p.Currency,
		Amount:         bigToString(p.Amount),
		PaidPoint:      bigToString(p.PaidPoint),
		FeePoint:       bigToString(p.FeePoint),
		TotalPoint:     bigToString(p.TotalPoint),
		Secret:         hashKey(p.Secret),
		SecretLock:     hashKey(p.SecretLock),
		Status:         int(p.Status),
		Signature:      p.Signature,
		TxHash:         hashKey(p.TxHash),
		Reminded:       p.Reminded,
		CreatedAt:      timeToMilli(p.CreatedAt),
		ExpiresAt:      timeToMilli(p.ExpiresAt),
		UpdatedAt:      timeToMilli(p.UpdatedAt),
		ApprovedAt:     timeToMilli(p.ApprovedAt),
		CancelOpenedAt: timeToMilli(p.CancelOpenedAt),
	}
}

func (d paymentData) toPayment() domain.Payment {
	return domain.Payment{
		PaymentID:      common.HexToHash(d.PaymentID),
		PurchaseID:     d.PurchaseID,
		Account:        common.HexToAddress(d.Account),
		ShopID:         common.HexToHash(d.ShopID),
		Currency:       d.Currency,
		Amount:         stringToBig(d.Amount),
		PaidPoint:      stringToBig(d.PaidPoint),
		FeePoint:       stringToBig(d.FeePoint),
		TotalPoint:     stringToBig(d.TotalPoint),
		Secret:         common.HexToHash(d.Secret),
		SecretLock:     common.HexToHash(d.SecretLock),
		Status:         domain.PaymentStatus(d.Status),
		Signature:      d.Signature,
		TxHash:         common.HexToHash(d.TxHash),
		Reminded:       d.Reminded,
		CreatedAt:      milliToTime(d.CreatedAt),
		ExpiresAt:      milliToTime(d.ExpiresAt),
		UpdatedAt:      milliToTime(d.UpdatedAt),
		ApprovedAt:     milliToTime(d.ApprovedAt),
		CancelOpenedAt: milliToTime(d.CancelOpenedAt),
	}
}

func toPayments(list []paymentData) []domain.Payment {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt < list[j].CreatedAt
	})
	payments := make([]domain.Payment, 0, len(list))
	for _, d := range list {
		payments = append(payments, d.toPayment())
	}
	return payments
}
