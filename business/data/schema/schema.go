// Package schema contains the database schema, migrations and seeding data.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/plastix-network/plastix/business/sys/database"
)

var (
	//go:embed sql/schema.sql
	schemaDoc string

	//go:embed sql/seed.sql
	seedDoc string
)

// Migrate attempts to bring the schema for db up to date with the migrations
// defined in this package. Each versioned statement block runs once; the
// applied version is tracked in the schema_migrations table.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if err := database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("status check database: %w", err)
	}

	const verTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version      TEXT      NOT NULL,
		date_applied TIMESTAMP NOT NULL DEFAULT now(),
		PRIMARY KEY (version)
	)`
	if _, err := db.ExecContext(ctx, verTable); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, mig := range parseMigrations(schemaDoc) {
		applied, err := isApplied(ctx, db, mig.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", mig.version, err)
		}

		if _, err := tx.ExecContext(ctx, mig.statement); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", mig.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", mig.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", mig.version, err)
		}
	}

	return nil
}

// Seed runs the seed document defined in this package against db. The queries
// are run in a transaction and rolled back if any fail.
func Seed(ctx context.Context, db *sqlx.DB) error {
	if err := database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("status check database: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(seedDoc); err != nil {
		if err := tx.Rollback(); err != nil {
			return err
		}
		return err
	}

	return tx.Commit()
}

// =============================================================================

type migration struct {
	version   string
	statement string
}

// parseMigrations splits the schema document on its version comment markers.
func parseMigrations(doc string) []migration {
	var migs []migration

	for _, block := range strings.Split(doc, "-- Version: ") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.SplitN(block, "\n", 2)
		if len(lines) != 2 {
			continue
		}

		migs = append(migs, migration{
			version:   strings.TrimSpace(lines[0]),
			statement: lines[1],
		})
	}

	return migs
}

func isApplied(ctx context.Context, db *sqlx.DB, version string) (bool, error) {
	const q = `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`

	var count int
	if err := db.QueryRowContext(ctx, q, version).Scan(&count); err != nil {
		return false, fmt.Errorf("checking migration %s: %w", version, err)
	}

	return count > 0, nil
}
