package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

const delegateTaskColumns = `id, shop_id, kind, status, name, currency, shop_status,
	payment_id, attempts, fail_reason, tx_hash, created_at, updated_at`

const (
	insertDelegateTask = `INSERT INTO delegate_task (` + delegateTaskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectDelegateTask = `SELECT ` + delegateTaskColumns + ` FROM delegate_task`

	updateDelegateTask = `UPDATE delegate_task SET
	status = ?, attempts = ?, fail_reason = ?, tx_hash = ?, updated_at = ?
	WHERE id = ? AND status = ?`
)

type delegateRepository struct {
	db *sql.DB
}

func NewDelegateRepository(db *sql.DB) (domain.DelegateRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open delegate repository: db is nil")
	}
	return &delegateRepository{db}, nil
}

func (r *delegateRepository) Add(ctx context.Context, task domain.DelegateTask) error {
	_, err := r.db.ExecContext(ctx, insertDelegateTask,
		task.ID, task.ShopID.Hex(), int64(task.Kind), int64(task.Status),
		task.Payload.Name, task.Payload.Currency, int64(task.Payload.ShopStatus),
		task.Payload.PaymentID.Hex(), task.Attempts, task.FailReason, task.TxHash.Hex(),
		timeToMilli(task.CreatedAt), timeToMilli(task.UpdatedAt),
	)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("delegate task %s: %w", task.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert delegate task: %w", err)
	}
	return nil
}

func (r *delegateRepository) GetByID(ctx context.Context, id string) (*domain.DelegateTask, error) {
	row := r.db.QueryRowContext(ctx, selectDelegateTask+` WHERE id = ?`, id)
	task, err := scanDelegateTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound.Wrapf("%s", id)
		}
		return nil, fmt.Errorf("failed to get delegate task: %w", err)
	}
	return task, nil
}

func (r *delegateRepository) GetAll(
	ctx context.Context, kind domain.DelegateTaskKind, status domain.DelegateTaskStatus,
) ([]domain.DelegateTask, error) {
	rows, err := r.db.QueryContext(ctx,
		selectDelegateTask+` WHERE kind = ? AND status = ? ORDER BY created_at, rowid`,
		int64(kind), int64(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get delegate tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.DelegateTask, 0)
	for rows.Next() {
		task, err := scanDelegateTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegate task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *delegateRepository) GetByPayment(
	ctx context.Context, paymentId common.Hash,
) (*domain.DelegateTask, error) {
	row := r.db.QueryRowContext(ctx,
		selectDelegateTask+` WHERE kind = ? AND payment_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		int64(domain.DelegateTaskCancelPayment), paymentId.Hex(),
		int64(domain.DelegateTaskOpened), int64(domain.DelegateTaskInProgress),
	)
	task, err := scanDelegateTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound.Wrapf("no cancel task for payment %s", paymentId.Hex())
		}
		return nil, fmt.Errorf("failed to get cancel task: %w", err)
	}
	return task, nil
}

func (r *delegateRepository) Update(
	ctx context.Context, task domain.DelegateTask, expected domain.DelegateTaskStatus,
) error {
	txBody := func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateDelegateTask,
			int64(task.Status), task.Attempts, task.FailReason, task.TxHash.Hex(),
			timeToMilli(task.UpdatedAt), task.ID, int64(expected),
		)
		if err != nil {
			return fmt.Errorf("failed to update delegate task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM delegate_task WHERE id = ?`, task.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTaskNotFound.Wrapf("%s", task.ID)
		}
		if err != nil {
			return err
		}
		return domain.ErrStatusConflict
	}

	return execTx(ctx, r.db, txBody)
}

func (r *delegateRepository) Close() {
	// nolint:all
	r.db.Close()
}

func scanDelegateTask(row rowScanner) (*domain.DelegateTask, error) {
	var (
		id, shopId, name, currency, paymentId, failReason, txHash string
		kind, status, shopStatus, attempts, createdAt, updatedAt  int64
	)
	if err := row.Scan(
		&id, &shopId, &kind, &status, &name, &currency, &shopStatus,
		&paymentId, &attempts, &failReason, &txHash, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	return &domain.DelegateTask{
		ID:     id,
		ShopID: common.HexToHash(shopId),
		Kind:   domain.DelegateTaskKind(kind),
		Status: domain.DelegateTaskStatus(status),
		Payload: domain.DelegateTaskPayload{
			Name:       name,
			Currency:   currency,
			ShopStatus: domain.ShopStatus(shopStatus),
			PaymentID:  common.HexToHash(paymentId),
		},
		Attempts:   int(attempts),
		FailReason: failReason,
		TxHash:     common.HexToHash(txHash),
		CreatedAt:  milliToTime(createdAt),
		UpdatedAt:  milliToTime(updatedAt),
	}, nil
}
