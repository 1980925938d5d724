package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/acc-network/relay/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

type temporaryAccountRepository struct {
	db *sql.DB
}

func NewTemporaryAccountRepository(db *sql.DB) (domain.TemporaryAccountRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open temporary account repository: db is nil")
	}
	return &temporaryAccountRepository{db}, nil
}

func (r *temporaryAccountRepository) Add(ctx context.Context, account domain.TemporaryAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO temporary_account (temporary_account, real_account, nonce, created_at, expires_at, consumed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		account.TemporaryAccount.Hex(), account.RealAccount.Hex(), bigToString(account.Nonce),
		timeToMilli(account.CreatedAt), timeToMilli(account.ExpiresAt), boolToInt(account.Consumed),
	)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("temporary account %s: %w", account.TemporaryAccount.Hex(), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert temporary account: %w", err)
	}
	return nil
}

func (r *temporaryAccountRepository) Get(
	ctx context.Context, temporaryAccount common.Address,
) (*domain.TemporaryAccount, error) {
	var (
		tmp, realAccount, nonce      string
		createdAt, expiresAt, spent int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT temporary_account, real_account, nonce, created_at, expires_at, consumed
		FROM temporary_account WHERE temporary_account = ?`, temporaryAccount.Hex(),
	).Scan(&tmp, &realAccount, &nonce, &createdAt, &expiresAt, &spent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTemporaryAccountNotFound.Wrapf("%s", temporaryAccount.Hex())
		}
		return nil, fmt.Errorf("failed to get temporary account: %w", err)
	}
	return &domain.TemporaryAccount{
		TemporaryAccount: common.HexToAddress(tmp),
		RealAccount:      common.HexToAddress(realAccount),
		Nonce:            stringToBig(nonce),
		CreatedAt:        milliToTime(createdAt),
		ExpiresAt:        milliToTime(expiresAt),
		Consumed:         spent != 0,
	}, nil
}

func (r *temporaryAccountRepository) Consume(ctx context.Context, temporaryAccount common.Address) error {
	txBody := func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE temporary_account SET consumed = 1 WHERE temporary_account = ? AND consumed = 0`,
			temporaryAccount.Hex(),
		)
		if err != nil {
			return fmt.Errorf("failed to consume temporary account: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM temporary_account WHERE temporary_account = ?`, temporaryAccount.Hex(),
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTemporaryAccountNotFound.Wrapf("%s", temporaryAccount.Hex())
		}
		if err != nil {
			return err
		}
		return domain.ErrStatusConflict
	}
	return execTx(ctx, r.db, txBody)
}

func (r *temporaryAccountRepository) Close() {
	// nolint:all
	r.db.Close()
}

type settlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) (domain.SettlementRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("cannot open settlement repository: db is nil")
	}
	return &settlementRepository{db}, nil
}

func (r *settlementRepository) SetManager(ctx context.Context, shopId, managerId common.Hash) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settlement_link (shop_id, manager_id, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM settlement_link))
		ON CONFLICT (shop_id) DO UPDATE SET manager_id = excluded.manager_id, seq = excluded.seq`,
		shopId.Hex(), managerId.Hex(),
	)
	if err != nil {
		return fmt.Errorf("failed to set settlement manager: %w", err)
	}
	return nil
}

func (r *settlementRepository) RemoveManager(ctx context.Context, shopId common.Hash) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM settlement_link WHERE shop_id = ?`, shopId.Hex(),
	); err != nil {
		return fmt.Errorf("failed to remove settlement manager: %w", err)
	}
	return nil
}

func (r *settlementRepository) GetManager(ctx context.Context, shopId common.Hash) (common.Hash, error) {
	var managerId string
	err := r.db.QueryRowContext(ctx,
		`SELECT manager_id FROM settlement_link WHERE shop_id = ?`, shopId.Hex(),
	).Scan(&managerId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.Hash{}, nil
		}
		return common.Hash{}, fmt.Errorf("failed to get settlement manager: %w", err)
	}
	return common.HexToHash(managerId), nil
}

func (r *settlementRepository) GetClients(ctx context.Context, managerId common.Hash) ([]common.Hash, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT shop_id FROM settlement_link WHERE manager_id = ? ORDER BY seq`, managerId.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement clients: %w", err)
	}
	defer rows.Close()

	clients := make([]common.Hash, 0)
	for rows.Next() {
		var shopId string
		if err := rows.Scan(&shopId); err != nil {
			return nil, err
		}
		clients = append(clients, common.HexToHash(shopId))
	}
	return clients, rows.Err()
}

func (r *settlementRepository) Close() {
	// nolint:all
	r.db.Close()
}
