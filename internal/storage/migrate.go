package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"tasbeeh/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const contributionsTable = "contributions"

// Legacy columns from earlier schema versions. They are tolerated, mirrored
// on write, and used as backfill sources, but never required.
const (
	legacyMember    = "member"
	legacyType      = "type"
	legacyAmountPKR = "amount_pkr"
)

// RunMigrations applies the versioned baseline. The baseline only creates
// missing tables, so it leaves legacy tables untouched for Migrate to converge.
func RunMigrations(dsn string) error {
	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Migrate converges the contributions table from any earlier shape to the
// canonical column set in a single transaction. Missing columns are added and
// backfilled from their legacy counterparts; blank identities and categories
// are then rewritten to their defaults. Existing non-blank canonical values
// are never overwritten. Running it again on a converged table changes nothing.
//
// Any failure rolls the whole pass back and is reported as core.ErrMigrationFailed.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := converge(ctx, db); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMigrationFailed, err)
	}
	return nil
}

func converge(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	cols, err := tableColumns(ctx, tx, contributionsTable)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return tx.Commit()
	}

	var added []string
	addColumn := func(name, definition string) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, contributionsTable, name, definition)); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
		added = append(added, name)
		return nil
	}
	exec := func(step, query string) error {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		return nil
	}

	if !cols[colEnteredBy] {
		if err := addColumn(colEnteredBy, "TEXT"); err != nil {
			return err
		}
		if err := exec("backfill entered_by", backfillSQL(colEnteredBy, legacyMember, core.DefaultMember, cols)); err != nil {
			return err
		}
	}

	if !cols[colCategory] {
		if err := addColumn(colCategory, "TEXT"); err != nil {
			return err
		}
		if err := exec("backfill category", backfillSQL(colCategory, legacyType, core.DefaultCategory, cols)); err != nil {
			return err
		}
	}

	if !cols[colCount] {
		// Legacy rows represent a single unit of activity.
		if err := addColumn(colCount, "INTEGER NOT NULL DEFAULT 1"); err != nil {
			return err
		}
	}

	if !cols[colAmount] {
		if err := addColumn(colAmount, "INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
		if cols[legacyAmountPKR] {
			if err := exec("backfill amount", fmt.Sprintf(
				`UPDATE %s SET %s = COALESCE(%s, 0)`, contributionsTable, colAmount, legacyAmountPKR)); err != nil {
				return err
			}
		}
	}

	if err := exec("normalize entered_by", normalizeSQL(colEnteredBy, core.DefaultMember)); err != nil {
		return err
	}
	if err := exec("normalize category", normalizeSQL(colCategory, core.DefaultCategory)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	if len(added) > 0 {
		slog.InfoContext(ctx, "Ledger schema converged",
			"table", contributionsTable,
			"added_columns", added)
	}
	return nil
}

// backfillSQL fills a freshly added column: keep existing, else legacy, else default.
func backfillSQL(column, legacy, def string, cols map[string]bool) string {
	src := column
	if cols[legacy] {
		src += ", " + legacy
	}
	return fmt.Sprintf(`UPDATE %s SET %s = COALESCE(%s, %s)`, contributionsTable, column, src, quote(def))
}

// normalizeSQL rewrites NULL or blank values to the default. Legacy columns
// are not consulted here; they only seed columns that were just added.
func normalizeSQL(column, def string) string {
	return fmt.Sprintf(`UPDATE %s SET %s = COALESCE(NULLIF(TRIM(%s), ''), %s) WHERE %s IS NULL OR TRIM(%s) = ''`,
		contributionsTable, column, column, quote(def), column, column)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
