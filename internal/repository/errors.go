package repository

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Constraint names from migrations/001_schedule.sql.
const (
	ConstraintRoomOverlap       = "slots_room_no_overlap"
	ConstraintInstructorOverlap = "slots_instructor_no_overlap"
)

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// ExclusionConstraint returns the violated exclusion constraint name, if any.
func ExclusionConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeExclusionViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsTransient reports failures worth retrying for reads: lost connections,
// serialization and deadlock aborts, admin shutdowns and timeouts.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		}
		return false
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr) || errors.Is(err, sql.ErrConnDone)
}
