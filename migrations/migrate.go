package migrations

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed *.sql
var files embed.FS

const migrationsTable = "public.schema_migrations_schedule"

// Up applies every embedded migration not yet recorded, in file name order.
// Each file runs in its own transaction.
func Up(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("db is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return errors.Wrap(err, "list embedded migrations")
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := isApplied(ctx, db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		sqlBytes, err := files.ReadFile(name)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}

		if err := apply(ctx, db, name, string(sqlBytes)); err != nil {
			if !isIgnorableMigrationError(err) {
				return err
			}
			log.Warn("migration objects already exist, marking applied",
				zap.String("migration", name),
				zap.Error(err),
			)
			if err := markApplied(ctx, db, name); err != nil {
				return errors.Wrapf(err, "record migration %s after ignored error", name)
			}
			continue
		}
		log.Info("migration applied", zap.String("migration", name))
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, name, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", name)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "apply migration %s", name)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+migrationsTable+` (filename) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "record migration %s", name)
	}
	return errors.Wrapf(tx.Commit(), "commit migration %s", name)
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	const query = `
CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
	filename text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)
`
	_, err := db.ExecContext(ctx, query)
	return errors.Wrapf(err, "ensure migration table %s", migrationsTable)
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+migrationsTable+` WHERE filename = $1)`,
		name,
	).Scan(&exists)
	return exists, errors.Wrapf(err, "check migration %s", name)
}

func markApplied(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+migrationsTable+` (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`,
		name,
	)
	return err
}

func isIgnorableMigrationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case "42P07", // duplicate_table
		"42710", // duplicate_object
		"42P06": // duplicate_schema
		return true
	default:
		return false
	}
}
