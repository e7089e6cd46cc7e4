package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxRepositories struct {
	Slots      SlotRepository
	Attendance AttendanceRepository
	Outbox     OutboxRepository
}

// TxManager runs fn inside one transaction. fn returning an error, or ctx
// expiring before commit, rolls everything back.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

type PostgresTxManager struct {
	db *sql.DB
}

func NewPostgresTxManager(db *sql.DB) *PostgresTxManager {
	return &PostgresTxManager{db: db}
}

func (m *PostgresTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	repos := TxRepositories{
		Slots:      NewSlotPostgresRepository(tx),
		Attendance: NewAttendancePostgresRepository(tx),
		Outbox:     NewOutboxPostgresRepository(tx),
	}

	if err := fn(ctx, repos); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return errors.Wrapf(rollbackErr, "rollback after %v", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// advisoryLock serializes writers sharing key until the surrounding
// transaction ends.
func advisoryLock(ctx context.Context, execer Execer, key string) error {
	_, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return errors.Wrapf(err, "advisory lock %s", key)
}
