package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
)

// BackfillPaymentTotalPoint fills total_point of rows written before the
// column existed. Points exceed int64 so the sum is computed here rather
// than in SQL.
func BackfillPaymentTotalPoint(ctx context.Context, db *sql.DB) error {
	type row struct {
		paymentId string
		total     string
	}

	rows, err := db.QueryContext(ctx,
		`SELECT payment_id, paid_point, fee_point FROM payment WHERE total_point = ''`,
	)
	if err != nil {
		return fmt.Errorf("failed to select payments to backfill: %w", err)
	}

	pending := make([]row, 0)
	for rows.Next() {
		var paymentId, paid, fee string
		if err := rows.Scan(&paymentId, &paid, &fee); err != nil {
			rows.Close()
			return err
		}
		paidPoint, feePoint := stringToBig(paid), stringToBig(fee)
		if paidPoint == nil || feePoint == nil {
			continue
		}
		pending = append(pending, row{paymentId, new(big.Int).Add(paidPoint, feePoint).String()})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	return execTx(ctx, db, func(tx *sql.Tx) error {
		for _, r := range pending {
			if _, err := tx.ExecContext(ctx,
				`UPDATE payment SET total_point = ? WHERE payment_id = ? AND total_point = ''`,
				r.total, r.paymentId,
			); err != nil {
				return fmt.Errorf("failed to backfill payment %s: %w", r.paymentId, err)
			}
		}
		return nil
	})
}
