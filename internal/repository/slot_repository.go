package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"service-schedule/internal/domain"
)

// SlotFilter narrows List. A nil InstructorID and nil CourseIDs mean all slots;
// a non-nil empty CourseIDs matches nothing.
type SlotFilter struct {
	InstructorID *uuid.UUID
	CourseIDs    []uuid.UUID
}

type SlotRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	List(ctx context.Context, filter SlotFilter) ([]domain.Slot, error)
	ListByRoomDay(ctx context.Context, room string, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error)
	ListByInstructorDay(ctx context.Context, instructorID uuid.UUID, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error)
	Create(ctx context.Context, slot domain.Slot) error
	Update(ctx context.Context, slot domain.Slot) error
	Delete(ctx context.Context, id uuid.UUID) error
	LockDays(ctx context.Context, days ...domain.Weekday) error
}

type SlotPostgresRepository struct {
	execer Execer
}

func NewSlotPostgresRepository(execer Execer) *SlotPostgresRepository {
	return &SlotPostgresRepository{execer: execer}
}

const slotColumns = `id, course_id, instructor_id, day, start_minute, end_minute, room`

func (r *SlotPostgresRepository) Get(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM timetable.slots
WHERE id = $1
`

	row := r.execer.QueryRowContext(ctx, query, id)
	slot, err := scanSlot(row)
	if err != nil {
		return domain.Slot{}, errors.Wrapf(err, "get slot %s", id)
	}
	return slot, nil
}

func (r *SlotPostgresRepository) List(ctx context.Context, filter SlotFilter) ([]domain.Slot, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.InstructorID != nil {
		args = append(args, *filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)))
	}
	if filter.CourseIDs != nil {
		if len(filter.CourseIDs) == 0 {
			return nil, nil
		}
		args = append(args, uuidStrings(filter.CourseIDs))
		conditions = append(conditions, fmt.Sprintf("course_id = ANY($%d::uuid[])", len(args)))
	}

	query := `SELECT ` + slotColumns + ` FROM timetable.slots`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY day ASC, start_minute ASC, room ASC`

	slots, err := r.query(ctx, query, args...)
	return slots, errors.Wrap(err, "list slots")
}

func (r *SlotPostgresRepository) ListByRoomDay(ctx context.Context, room string, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM timetable.slots
WHERE room = $1 AND day = $2 AND ($3::uuid IS NULL OR id <> $3::uuid)
ORDER BY start_minute ASC
`

	slots, err := r.query(ctx, query, room, int(day), nullableUUID(excluding))
	return slots, errors.Wrapf(err, "list slots for room %s on %s", room, day)
}

func (r *SlotPostgresRepository) ListByInstructorDay(ctx context.Context, instructorID uuid.UUID, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM timetable.slots
WHERE instructor_id = $1 AND day = $2 AND ($3::uuid IS NULL OR id <> $3::uuid)
ORDER BY start_minute ASC
`

	slots, err := r.query(ctx, query, instructorID, int(day), nullableUUID(excluding))
	return slots, errors.Wrapf(err, "list slots for instructor %s on %s", instructorID, day)
}

func (r *SlotPostgresRepository) Create(ctx context.Context, slot domain.Slot) error {
	const query = `
INSERT INTO timetable.slots (
	id,
	course_id,
	instructor_id,
	day,
	start_minute,
	end_minute,
	room,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
`

	_, err := r.execer.ExecContext(
		ctx,
		query,
		slot.ID,
		slot.CourseID,
		slot.InstructorID,
		int(slot.Day),
		int(slot.StartTime),
		int(slot.EndTime),
		slot.Room,
	)
	return errors.Wrapf(err, "create slot %s", slot.ID)
}

func (r *SlotPostgresRepository) Update(ctx context.Context, slot domain.Slot) error {
	const query = `
UPDATE timetable.slots
SET course_id = $2,
	instructor_id = $3,
	day = $4,
	start_minute = $5,
	end_minute = $6,
	room = $7,
	updated_at = now()
WHERE id = $1
`

	result, err := r.execer.ExecContext(
		ctx,
		query,
		slot.ID,
		slot.CourseID,
		slot.InstructorID,
		int(slot.Day),
		int(slot.StartTime),
		int(slot.EndTime),
		slot.Room,
	)
	if err != nil {
		return errors.Wrapf(err, "update slot %s", slot.ID)
	}
	return requireAffected(result, "update slot "+slot.ID.String())
}

func (r *SlotPostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.execer.ExecContext(ctx, `DELETE FROM timetable.slots WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete slot %s", id)
	}
	return requireAffected(result, "delete slot "+id.String())
}

// LockDays takes the per-day write lock for each day in ascending order, so
// two writers touching the same pair of days cannot deadlock.
func (r *SlotPostgresRepository) LockDays(ctx context.Context, days ...domain.Weekday) error {
	for _, day := range sortedDistinctDays(days) {
		if err := advisoryLock(ctx, r.execer, "timetable.slots:"+day.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *SlotPostgresRepository) query(ctx context.Context, query string, args ...any) ([]domain.Slot, error) {
	rows, err := r.execer.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (domain.Slot, error) {
	var slot domain.Slot
	var day, start, end int
	if err := row.Scan(
		&slot.ID,
		&slot.CourseID,
		&slot.InstructorID,
		&day,
		&start,
		&end,
		&slot.Room,
	); err != nil {
		return domain.Slot{}, err
	}
	slot.Day = domain.Weekday(day)
	slot.StartTime = domain.TimeOfDay(start)
	slot.EndTime = domain.TimeOfDay(end)
	return slot, nil
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if rows == 0 {
		return errors.Wrap(sql.ErrNoRows, op)
	}
	return nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func sortedDistinctDays(days []domain.Weekday) []domain.Weekday {
	seen := make(map[domain.Weekday]bool, len(days))
	out := make([]domain.Weekday, 0, len(days))
	for _, day := range domain.AllWeekdays {
		for _, d := range days {
			if d == day && !seen[day] {
				seen[day] = true
				out = append(out, day)
			}
		}
	}
	return out
}
