// Package memory is an in-process implementation of the repository
// interfaces for tests. Each transaction works on a copy of the store state
// that replaces the committed state only when fn succeeds.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
)

type state struct {
	slots   map[uuid.UUID]domain.Slot
	records []domain.AttendanceRecord
	events  []domain.TimetableEvent
}

func (s state) clone() state {
	slots := make(map[uuid.UUID]domain.Slot, len(s.slots))
	for id, slot := range s.slots {
		slots[id] = slot
	}
	return state{
		slots:   slots,
		records: append([]domain.AttendanceRecord(nil), s.records...),
		events:  append([]domain.TimetableEvent(nil), s.events...),
	}
}

type Store struct {
	mu       sync.Mutex
	state    state
	failures map[string][]error
}

var _ repository.TxManager = (*Store)(nil)

func New() *Store {
	return &Store{
		state:    state{slots: map[uuid.UUID]domain.Slot{}},
		failures: map[string][]error{},
	}
}

// FailNext makes the next call of op ("ListSlots", "ListAttendance",
// "InsertBatch", ...) return err. Calls queue in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &txState{store: s, state: s.state.clone()}
	repos := repository.TxRepositories{
		Slots:      (*slotRepo)(tx),
		Attendance: (*attendanceRepo)(tx),
		Outbox:     (*outboxRepo)(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Seed stores slots directly, bypassing any checks.
func (s *Store) Seed(slots ...domain.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.state.slots[slot.ID] = slot
	}
}

func (s *Store) SeedRecords(records ...domain.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.records = append(s.state.records, records...)
}

func (s *Store) Slots() []domain.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Slot, 0, len(s.state.slots))
	for _, slot := range s.state.slots {
		out = append(out, slot)
	}
	sortSlots(out)
	return out
}

func (s *Store) Records() []domain.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.AttendanceRecord(nil), s.state.records...)
	sortRecords(out)
	return out
}

func (s *Store) Events() []domain.TimetableEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TimetableEvent(nil), s.state.events...)
}

type txState struct {
	store *Store
	state state
}

// fail pops a queued failure for op. Callers hold store.mu through WithTx.
func (t *txState) fail(op string) error {
	queue := t.store.failures[op]
	if len(queue) == 0 {
		return nil
	}
	t.store.failures[op] = queue[1:]
	return queue[0]
}

type slotRepo txState

func (r *slotRepo) Get(_ context.Context, id uuid.UUID) (domain.Slot, error) {
	if err := (*txState)(r).fail("GetSlot"); err != nil {
		return domain.Slot{}, err
	}
	slot, ok := r.state.slots[id]
	if !ok {
		return domain.Slot{}, errors.Wrapf(sql.ErrNoRows, "get slot %s", id)
	}
	return slot, nil
}

func (r *slotRepo) List(_ context.Context, filter repository.SlotFilter) ([]domain.Slot, error) {
	if err := (*txState)(r).fail("ListSlots"); err != nil {
		return nil, err
	}
	var courses map[uuid.UUID]bool
	if filter.CourseIDs != nil {
		courses = make(map[uuid.UUID]bool, len(filter.CourseIDs))
		for _, id := range filter.CourseIDs {
			courses[id] = true
		}
	}
	var out []domain.Slot
	for _, slot := range r.state.slots {
		if filter.InstructorID != nil && slot.InstructorID != *filter.InstructorID {
			continue
		}
		if courses != nil && !courses[slot.CourseID] {
			continue
		}
		out = append(out, slot)
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepo) ListByRoomDay(_ context.Context, room string, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error) {
	return r.match(func(slot domain.Slot) bool {
		return slot.Room == room && slot.Day == day
	}, excluding), nil
}

func (r *slotRepo) ListByInstructorDay(_ context.Context, instructorID uuid.UUID, day domain.Weekday, excluding *uuid.UUID) ([]domain.Slot, error) {
	return r.match(func(slot domain.Slot) bool {
		return slot.InstructorID == instructorID && slot.Day == day
	}, excluding), nil
}

func (r *slotRepo) match(keep func(domain.Slot) bool, excluding *uuid.UUID) []domain.Slot {
	var out []domain.Slot
	for _, slot := range r.state.slots {
		if excluding != nil && slot.ID == *excluding {
			continue
		}
		if keep(slot) {
			out = append(out, slot)
		}
	}
	sortSlots(out)
	return out
}

func (r *slotRepo) Create(_ context.Context, slot domain.Slot) error {
	if err := (*txState)(r).fail("CreateSlot"); err != nil {
		return err
	}
	if _, exists := r.state.slots[slot.ID]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "slots_pkey"}
	}
	r.state.slots[slot.ID] = slot
	return nil
}

func (r *slotRepo) Update(_ context.Context, slot domain.Slot) error {
	if err := (*txState)(r).fail("UpdateSlot"); err != nil {
		return err
	}
	if _, exists := r.state.slots[slot.ID]; !exists {
		return errors.Wrapf(sql.ErrNoRows, "update slot %s", slot.ID)
	}
	r.state.slots[slot.ID] = slot
	return nil
}

// Delete cascades to attendance records like the foreign key does.
func (r *slotRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, exists := r.state.slots[id]; !exists {
		return errors.Wrapf(sql.ErrNoRows, "delete slot %s", id)
	}
	delete(r.state.slots, id)
	kept := r.state.records[:0]
	for _, record := range r.state.records {
		if record.TimetableID != id {
			kept = append(kept, record)
		}
	}
	r.state.records = kept
	return nil
}

func (r *slotRepo) LockDays(context.Context, ...domain.Weekday) error {
	return nil
}

type attendanceRepo txState

func (r *attendanceRepo) ExistsMarked(_ context.Context, courseID uuid.UUID, date time.Time, markedBy uuid.UUID) (bool, error) {
	for _, record := range r.state.records {
		if record.CourseID == courseID && record.Date.Equal(date) && record.MarkedBy == markedBy {
			return true, nil
		}
	}
	return false, nil
}

func (r *attendanceRepo) InsertBatch(_ context.Context, records []domain.AttendanceRecord) error {
	if err := (*txState)(r).fail("InsertBatch"); err != nil {
		return err
	}
	type key struct {
		student, course, timetable uuid.UUID
		date                       time.Time
	}
	seen := make(map[key]bool, len(r.state.records)+len(records))
	for _, record := range r.state.records {
		seen[key{record.StudentID, record.CourseID, record.TimetableID, record.Date}] = true
	}
	for _, record := range records {
		k := key{record.StudentID, record.CourseID, record.TimetableID, record.Date}
		if seen[k] {
			return &pgconn.PgError{Code: "23505", ConstraintName: "attendance_records_scope_key"}
		}
		seen[k] = true
	}
	r.state.records = append(r.state.records, records...)
	return nil
}

func (r *attendanceRepo) DeleteScope(_ context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) (int64, error) {
	var deleted int64
	kept := r.state.records[:0]
	for _, record := range r.state.records {
		if record.CourseID == courseID && record.Date.Equal(date) && record.TimetableID == timetableID {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	r.state.records = kept
	return deleted, nil
}

func (r *attendanceRepo) ListScope(_ context.Context, courseID uuid.UUID, date time.Time, timetableID uuid.UUID) ([]domain.AttendanceRecord, error) {
	var out []domain.AttendanceRecord
	for _, record := range r.state.records {
		if record.CourseID == courseID && record.Date.Equal(date) && record.TimetableID == timetableID {
			out = append(out, record)
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *attendanceRepo) List(_ context.Context, filter repository.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	if err := (*txState)(r).fail("ListAttendance"); err != nil {
		return nil, err
	}
	var out []domain.AttendanceRecord
	for _, record := range r.state.records {
		if filter.StudentID != nil && record.StudentID != *filter.StudentID {
			continue
		}
		if filter.CourseID != nil && record.CourseID != *filter.CourseID {
			continue
		}
		if filter.MarkedBy != nil && record.MarkedBy != *filter.MarkedBy {
			continue
		}
		if filter.From != nil && record.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.Date.After(*filter.To) {
			continue
		}
		out = append(out, record)
	}
	sortRecords(out)
	return out, nil
}

func (r *attendanceRepo) LockCourseDate(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type outboxRepo txState

func (r *outboxRepo) Insert(_ context.Context, event domain.TimetableEvent) error {
	if err := repository.CheckEvent(event); err != nil {
		return err
	}
	for _, queued := range r.state.events {
		if queued.ID == event.ID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "outbox_events_pkey"}
		}
	}
	r.state.events = append(r.state.events, event)
	return nil
}

func sortSlots(slots []domain.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Room < b.Room
	})
}

func sortRecords(records []domain.AttendanceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.CourseID != b.CourseID {
			return a.CourseID.String() < b.CourseID.String()
		}
		return a.StudentID.String() < b.StudentID.String()
	})
}
