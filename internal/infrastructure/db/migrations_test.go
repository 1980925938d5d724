package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/acc-network/relay/internal/infrastructure/db"
	sqlitedb "github.com/acc-network/relay/internal/infrastructure/db/sqlite"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMigratedDB(t *testing.T, schemaVersion int64) *sql.DB {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = dbh.Close() })

	_, err = dbh.Exec(`
		CREATE TABLE schema_migrations (version INTEGER NOT NULL PRIMARY KEY, dirty BOOLEAN NOT NULL);
	`)
	require.NoError(t, err)
	_, err = dbh.Exec(`INSERT INTO schema_migrations(version, dirty) VALUES (?, false)`, schemaVersion)
	require.NoError(t, err)
	return dbh
}

func noop(context.Context, *sql.DB) error { return nil }

func TestApplyDataMigrations(t *testing.T) {
	ctx := context.Background()

	t.Run("runs pending migrations once and in order", func(t *testing.T) {
		dbh := openMigratedDB(t, 99999999999999)

		var order []string
		migrations := []db.DataMigration{
			{Version: "20260101000001", Run: func(context.Context, *sql.DB) error {
				order = append(order, "first")
				return nil
			}},
			{Version: "20260101000002", Run: func(context.Context, *sql.DB) error {
				order = append(order, "second")
				return nil
			}},
		}

		require.NoError(t, db.ApplyDataMigrations(ctx, dbh, migrations))
		require.NoError(t, db.ApplyDataMigrations(ctx, dbh, migrations))
		require.Equal(t, []string{"first", "second"}, order)

		var count int
		require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM data_migrations`).Scan(&count))
		require.Equal(t, 2, count)
	})

	t.Run("stops at the first failure and retries it", func(t *testing.T) {
		dbh := openMigratedDB(t, 99999999999999)

		fail := true
		secondCalls := 0
		migrations := []db.DataMigration{
			{Version: "20260101000001", Run: func(context.Context, *sql.DB) error {
				if fail {
					return errors.New("backfill interrupted")
				}
				return nil
			}},
			{Version: "20260101000002", Run: func(context.Context, *sql.DB) error {
				secondCalls++
				return nil
			}},
		}

		err := db.ApplyDataMigrations(ctx, dbh, migrations)
		require.ErrorContains(t, err, "backfill interrupted")
		require.Zero(t, secondCalls)

		fail = false
		require.NoError(t, db.ApplyDataMigrations(ctx, dbh, migrations))
		require.Equal(t, 1, secondCalls)
	})

	t.Run("invalid registry", func(t *testing.T) {
		dbh := openMigratedDB(t, 99999999999999)

		err := db.ApplyDataMigrations(ctx, dbh, []db.DataMigration{
			{Version: "20260101000001", Run: noop},
			{Version: "20260101000001", Run: noop},
		})
		require.ErrorContains(t, err, "duplicate data migration version")

		err = db.ApplyDataMigrations(ctx, dbh, []db.DataMigration{{Version: "v1", Run: noop}})
		require.ErrorContains(t, err, "invalid data migration version")
	})

	t.Run("requires the matching schema version", func(t *testing.T) {
		dbh := openMigratedDB(t, 20260101000000)

		err := db.ApplyDataMigrations(ctx, dbh, []db.DataMigration{{Version: "20260101000001", Run: noop}})
		require.ErrorContains(t, err, "ahead of schema version")
	})
}

func TestBackfillPaymentTotalPoint(t *testing.T) {
	ctx := context.Background()
	dbh := openMigratedDB(t, 99999999999999)

	_, err := dbh.Exec(`
		CREATE TABLE payment (
			payment_id TEXT PRIMARY KEY,
			paid_point TEXT NOT NULL DEFAULT '',
			fee_point TEXT NOT NULL DEFAULT '',
			total_point TEXT NOT NULL DEFAULT ''
		);
		INSERT INTO payment (payment_id, paid_point, fee_point) VALUES
			('0x01', '100000000000000000000000', '5000000000000000000000'),
			('0x02', '', '');
		INSERT INTO payment (payment_id, paid_point, fee_point, total_point) VALUES ('0x03', '1', '1', '7');
	`)
	require.NoError(t, err)

	require.NoError(t, sqlitedb.BackfillPaymentTotalPoint(ctx, dbh))

	totals := map[string]string{}
	rows, err := dbh.Query(`SELECT payment_id, total_point FROM payment`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id, total string
		require.NoError(t, rows.Scan(&id, &total))
		totals[id] = total
	}
	require.NoError(t, rows.Err())

	require.Equal(t, "105000000000000000000000", totals["0x01"])
	require.Equal(t, "", totals["0x02"])
	require.Equal(t, "7", totals["0x03"])
}
