package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// DataMigration rewrites rows after the SQL migration of the same Version
// changed the schema. Run must tolerate being executed twice: it is only
// recorded as done once it returns.
type DataMigration struct {
	Version string
	Run     func(ctx context.Context, db *sql.DB) error
}

func (m DataMigration) version() int64 {
	v, _ := strconv.ParseInt(m.Version, 10, 64)
	return v
}

// ApplyDataMigrations runs, in order, the migrations missing from the
// data_migrations table and stops at the first failure.
func ApplyDataMigrations(ctx context.Context, db *sql.DB, migrations []DataMigration) error {
	if err := validateDataMigrations(migrations); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS data_migrations (
			version    TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("failed to create data_migrations table: %w", err)
	}

	var schemaVersion int64
	if err := db.QueryRowContext(
		ctx, `SELECT version FROM schema_migrations LIMIT 1`,
	).Scan(&schemaVersion); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	applied, err := appliedDataMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if m.version() > schemaVersion {
			return fmt.Errorf(
				"data migration %s is ahead of schema version %d", m.Version, schemaVersion,
			)
		}

		if err := m.Run(ctx, db); err != nil {
			return fmt.Errorf("data migration %s: %w", m.Version, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO data_migrations (version, applied_at) VALUES (?, ?)`,
			m.Version, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to record data migration %s: %w", m.Version, err)
		}
		log.Debugf("applied data migration %s", m.Version)
	}
	return nil
}

func validateDataMigrations(migrations []DataMigration) error {
	seen := make(map[string]struct{}, len(migrations))
	for _, m := range migrations {
		if _, err := strconv.ParseInt(m.Version, 10, 64); err != nil {
			return fmt.Errorf("invalid data migration version %q", m.Version)
		}
		if _, ok := seen[m.Version]; ok {
			return fmt.Errorf("duplicate data migration version %s", m.Version)
		}
		seen[m.Version] = struct{}{}
	}
	return nil
}

func appliedDataMigrations(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM data_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}
