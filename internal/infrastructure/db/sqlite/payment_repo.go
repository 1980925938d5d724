package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

const paymentColumns = `payment_id, purchase_id, account, shop_id, currency, amount,
	paid_point, fee_point, total_point, secret, secret_lock, status, signature, tx_hash,
	reminded, created_at, expires_at, updated_at, approved_at, cancel_opened_at`

const (
	insertPayment = `INSERT INTO payment (` + paymentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectPayment = `SELECT ` + paymentColumns + ` FROM payment`

	updatePayment = `UPDATE payment SET
	paid_point = ?, fee_point = ?, total_point = ?, secret = ?, secret_lock = ?,
	status = ?, signature = ?, tx_hash = ?, reminded = ?, expires_at = ?,
	updated_at = ?, approved_at = ?, cancel_opened_at = ?
	WHERE payment_id = ? AND status = ?`
)

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) (domain.PaymentRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open payment repository: db is nil")
	}
	return &paymentRepository{db}, nil
}

func (r *paymentRepository) Add(ctx context.Context, p domain.Payment) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		// Both the key and the open purchase index can reject the row, the
		// key is checked first so the two stay distinguishable.
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM payment WHERE payment_id = ?`, p.PaymentID.Hex(),
		).Scan(&exists)
		if err == nil {
			return fmt.Errorf("payment %s: %w", p.PaymentID.Hex(), domain.ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get payment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertPayment,
			p.PaymentID.Hex(), p.PurchaseID, p.Account.Hex(), p.ShopID.Hex(), p.Currency,
			bigToString(p.Amount), bigToString(p.PaidPoint), bigToString(p.FeePoint),
			bigToString(p.TotalPoint), p.Secret.Hex(), p.SecretLock.Hex(), int64(p.Status),
			p.Signature, p.TxHash.Hex(), boolToInt(p.Reminded), timeToMilli(p.CreatedAt),
			timeToMilli(p.ExpiresAt), timeToMilli(p.UpdatedAt), timeToMilli(p.ApprovedAt),
			timeToMilli(p.CancelOpenedAt),
		); err != nil {
			if isConstraintErr(err) {
				if strings.Contains(err.Error(), "purchase_id") {
					return domain.ErrDuplicateRequest.Wrapf("purchase %s", p.PurchaseID)
				}
				return fmt.Errorf("payment %s: %w", p.PaymentID.Hex(), domain.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		return nil
	})
}

func (r *paymentRepository) Get(ctx context.Context, paymentId common.Hash) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, selectPayment+` WHERE payment_id = ?`, paymentId.Hex())
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound.Wrapf("%s", paymentId.Hex())
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepository) GetByPurchase(ctx context.Context, purchaseId string) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPayment+` WHERE purchase_id = ? ORDER BY created_at, rowid`, purchaseId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments of purchase: %w", err)
	}
	return scanPayments(rows)
}

func (r *paymentRepository) GetByStatus(
	ctx context.Context, statuses ...domain.PaymentStatus,
) ([]domain.Payment, error) {
	if len(statuses) <= 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		placeholders = append(placeholders, "?")
		args = append(args, int64(s))
	}
	query := fmt.Sprintf(
		"%s WHERE status IN (%s) ORDER BY created_at, rowid", selectPayment, strings.Join(placeholders, ", "),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments by status: %w", err)
	}
	return scanPayments(rows)
}

func (r *paymentRepository) Update(
	ctx context.Context, p domain.Payment, expected domain.PaymentStatus,
) error {
	txBody := func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updatePayment,
			bigToString(p.PaidPoint), bigToString(p.FeePoint), bigToString(p.TotalPoint),
			p.Secret.Hex(), p.SecretLock.Hex(), int64(p.Status), p.Signature, p.TxHash.Hex(),
			boolToInt(p.Reminded), timeToMilli(p.ExpiresAt), timeToMilli(p.UpdatedAt),
			timeToMilli(p.ApprovedAt), timeToMilli(p.CancelOpenedAt),
			p.PaymentID.Hex(), int64(expected),
		)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM payment WHERE payment_id = ?`, p.PaymentID.Hex()).
			Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPaymentNotFound.Wrapf("%s", p.PaymentID.Hex())
		}
		if err != nil {
			return err
		}
		return domain.ErrStatusConflict
	}

	return execTx(ctx, r.db, txBody)
}

func (r *paymentRepository) Delete(ctx context.Context, paymentId common.Hash) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment WHERE payment_id = ?`, paymentId.Hex())
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n == 0 {
		return domain.ErrPaymentNotFound.Wrapf("%s", paymentId.Hex())
	}
	return nil
}

func (r *paymentRepository) Close() {
	// nolint:all
	r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		paymentId, purchaseId, account, shopId, currency string
		amount, paidPoint, feePoint, totalPoint          string
		secret, secretLock, txHash                       string
		status, reminded                                 int64
		signature                                        []byte
		createdAt, expiresAt, updatedAt                  int64
		approvedAt, cancelOpenedAt                       int64
	)
	if err := row.Scan(
		&paymentId, &purchaseId, &account, &shopId, &currency, &amount,
		&paidPoint, &feePoint, &totalPoint, &secret, &secretLock, &status, &signature, &txHash,
		&reminded, &createdAt, &expiresAt, &updatedAt, &approvedAt, &cancelOpenedAt,
	); err != nil {
		return nil, err
	}
	return &domain.Payment{
		PaymentID:      common.HexToHash(paymentId),
		PurchaseID:     purchaseId,
		Account:        common.HexToAddress(account),
		ShopID:         common.HexToHash(shopId),
		Currency:       currency,
		Amount:         stringToBig(amount),
		PaidPoint:      stringToBig(paidPoint),
		FeePoint:       stringToBig(feePoint),
		TotalPoint:     stringToBig(totalPoint),
		Secret:         common.HexToHash(secret),
		SecretLock:     common.HexToHash(secretLock),
		Status:         domain.PaymentStatus(status),
		Signature:      signature,
		TxHash:         common.HexToHash(txHash),
		Reminded:       reminded != 0,
		CreatedAt:      milliToTime(createdAt),
		ExpiresAt:      milliToTime(expiresAt),
		UpdatedAt:      milliToTime(updatedAt),
		ApprovedAt:     milliToTime(approvedAt),
		CancelOpenedAt: milliToTime(cancelOpenedAt),
	}, nil
}

func scanPayments(rows *sql.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
