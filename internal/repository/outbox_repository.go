package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"service-schedule/internal/domain"
)

// ErrEventUnstamped is returned for events without an id or occurrence time.
var ErrEventUnstamped = errors.New("outbox event needs an id and an occurrence time")

type OutboxRepository interface {
	Insert(ctx context.Context, event domain.TimetableEvent) error
}

type OutboxPostgresRepository struct {
	execer Execer
}

func NewOutboxPostgresRepository(execer Execer) *OutboxPostgresRepository {
	return &OutboxPostgresRepository{execer: execer}
}

const insertOutboxEventQuery = `
INSERT INTO timetable.outbox_events (id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4)
`

// Insert queues event for publishing under the id the caller assigned.
func (r *OutboxPostgresRepository) Insert(ctx context.Context, event domain.TimetableEvent) error {
	if err := CheckEvent(event); err != nil {
		return err
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.Wrapf(err, "encode %s payload", event.EventType)
	}
	if _, err := r.execer.ExecContext(ctx, insertOutboxEventQuery, event.ID, event.EventType, payload, event.OccurredAt); err != nil {
		return errors.Wrapf(err, "insert %s event %s", event.EventType, event.ID)
	}
	return nil
}

// CheckEvent reports whether event carries what the outbox table requires.
func CheckEvent(event domain.TimetableEvent) error {
	if event.ID == uuid.Nil || event.OccurredAt.IsZero() || event.EventType == "" {
		return errors.WithStack(ErrEventUnstamped)
	}
	return nil
}
