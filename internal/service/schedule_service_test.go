package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
	"service-schedule/internal/repository/memory"
)

func newScheduleService(store *memory.Store, enrollment EnrollmentClient) *ScheduleService {
	breaks := BreakSettings{
		Templates: []domain.BreakTemplate{
			{Name: "Lunch Break", StartTime: hm(13, 0), EndTime: hm(14, 0)},
		},
		DefaultDays: []domain.Weekday{domain.Monday, domain.Tuesday},
	}
	return NewScheduleService(store, enrollment, breaks, testOptions())
}

func TestCreateSlotRoomConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	course := uuid.New()

	a, err := svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", course, uuid.New())))
	require.NoError(t, err)

	_, err = svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Monday, hm(9, 30), hm(10, 30), "R1", course, uuid.New())))
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, AxisRoom, conflict.Axis)
	assert.Equal(t, a.ID, conflict.SlotID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrRoomConflict)

	// Back-to-back windows do not overlap.
	_, err = svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Monday, hm(10, 0), hm(11, 0), "R1", course, uuid.New())))
	require.NoError(t, err)

	assert.Len(t, store.Slots(), 2)
}

func TestCreateSlotInstructorConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	lecturer := uuid.New()

	existing := newSlot(domain.Wednesday, hm(11, 0), hm(12, 0), "R1", uuid.New(), lecturer)
	store.Seed(existing)

	_, err := svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Wednesday, hm(11, 30), hm(12, 30), "R2", uuid.New(), lecturer)))
	assert.ErrorIs(t, err, ErrInstructorConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, existing.ID, conflict.SlotID)

	// Same window on another day is fine.
	_, err = svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Thursday, hm(11, 30), hm(12, 30), "R2", uuid.New(), lecturer)))
	assert.NoError(t, err)
}

func TestCreateSlotReportsRoomBeforeInstructor(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	lecturer := uuid.New()
	store.Seed(newSlot(domain.Friday, hm(8, 0), hm(9, 0), "R1", uuid.New(), lecturer))

	_, err := svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Friday, hm(8, 0), hm(9, 0), "R1", uuid.New(), lecturer)))
	assert.ErrorIs(t, err, ErrRoomConflict)
	assert.NotErrorIs(t, err, ErrInstructorConflict)
}

func TestCreateSlotRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())

	tests := []struct {
		name  string
		input SlotInput
		field string
	}{
		{
			name:  "end before start",
			input: inputFor(newSlot(domain.Monday, hm(10, 0), hm(9, 0), "R1", uuid.New(), uuid.New())),
			field: "end_time",
		},
		{
			name:  "empty window",
			input: inputFor(newSlot(domain.Monday, hm(10, 0), hm(10, 0), "R1", uuid.New(), uuid.New())),
			field: "end_time",
		},
		{
			name:  "no room",
			input: inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "", uuid.New(), uuid.New())),
			field: "room",
		},
		{
			name:  "bad day",
			input: inputFor(newSlot(domain.Weekday(9), hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())),
			field: "day",
		},
		{
			name:  "no course",
			input: inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.Nil, uuid.New())),
			field: "course_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSlot(ctx, admin(), tt.input)
			require.ErrorIs(t, err, ErrInvalidInput)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
	assert.Empty(t, store.Slots())
	assert.Empty(t, store.Events())
}

func TestSlotWriteErrorMapsExclusionConstraints(t *testing.T) {
	plain := errors.New("boom")
	tests := []struct {
		name string
		err  error
		axis ConflictAxis
		want error
	}{
		{
			name: "room",
			err:  errors.Wrap(&pgconn.PgError{Code: "23P01", ConstraintName: repository.ConstraintRoomOverlap}, "insert slot"),
			axis: AxisRoom,
			want: ErrRoomConflict,
		},
		{
			name: "instructor",
			err:  errors.Wrap(&pgconn.PgError{Code: "23P01", ConstraintName: repository.ConstraintInstructorOverlap}, "update slot"),
			axis: AxisInstructor,
			want: ErrInstructorConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := slotWriteError(tt.err)
			var conflict *ConflictError
			require.True(t, errors.As(err, &conflict), "got %v", err)
			assert.Equal(t, tt.axis, conflict.Axis)
			assert.Equal(t, uuid.Nil, conflict.SlotID)
			assert.ErrorIs(t, err, ErrConflict)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Same(t, plain, slotWriteError(plain))
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "slots_pkey"}
	assert.Same(t, unique, slotWriteError(unique))
}

func TestSlotWritesSurfaceConstraintConflicts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())

	store.FailNext("CreateSlot", &pgconn.PgError{Code: "23P01", ConstraintName: repository.ConstraintInstructorOverlap})
	_, err := svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())))
	assert.ErrorIs(t, err, ErrInstructorConflict)
	assert.Empty(t, store.Slots())
	assert.Empty(t, store.Events())

	created, err := svc.CreateSlot(ctx, admin(), inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())))
	require.NoError(t, err)

	store.FailNext("UpdateSlot", &pgconn.PgError{Code: "23P01", ConstraintName: repository.ConstraintRoomOverlap})
	input := inputFor(created)
	input.Room = "R2"
	_, err = svc.UpdateSlot(ctx, admin(), created.ID, input)
	assert.ErrorIs(t, err, ErrRoomConflict)
	stored := store.Slots()
	require.Len(t, stored, 1)
	assert.Equal(t, "R1", stored[0].Room)
}

func TestSlotWritesRequireAdministrator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	lecturer := uuid.New()
	slot := newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), lecturer)
	store.Seed(slot)

	_, err := svc.CreateSlot(ctx, instructor(lecturer), inputFor(slot))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.UpdateSlot(ctx, student(uuid.New()), slot.ID, inputFor(slot))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, svc.DeleteSlot(ctx, instructor(lecturer), slot.ID), ErrUnauthorized)

	assert.Equal(t, []domain.Slot{slot}, store.Slots())
}

func TestUpdateSlotExcludesItself(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	slot := newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())
	other := newSlot(domain.Monday, hm(11, 0), hm(12, 0), "R1", uuid.New(), uuid.New())
	store.Seed(slot, other)

	input := inputFor(slot)
	input.EndTime = hm(10, 45)
	updated, err := svc.UpdateSlot(ctx, admin(), slot.ID, input)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, updated.ID)
	assert.Equal(t, hm(10, 45), updated.EndTime)

	input.EndTime = hm(11, 15)
	_, err = svc.UpdateSlot(ctx, admin(), slot.ID, input)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, other.ID, conflict.SlotID)

	// The failed update left the previous version in place.
	got := store.Slots()
	require.Len(t, got, 2)
	assert.Equal(t, hm(10, 45), got[0].EndTime)
}

func TestUpdateAndDeleteUnknownSlot(t *testing.T) {
	ctx := context.Background()
	svc := newScheduleService(memory.New(), newFakeEnrollment())
	input := inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New()))

	_, err := svc.UpdateSlot(ctx, admin(), uuid.New(), input)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteSlot(ctx, admin(), uuid.New()), ErrNotFound)
}

func TestDeleteSlotRemovesAttendance(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	slot := newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())
	store.Seed(slot)
	store.SeedRecords(domain.AttendanceRecord{
		ID:          uuid.New(),
		StudentID:   uuid.New(),
		CourseID:    slot.CourseID,
		Date:        domain.CivilDate(fixedNow),
		Status:      domain.StatusPresent,
		MarkedBy:    slot.InstructorID,
		TimetableID: slot.ID,
	})

	require.NoError(t, svc.DeleteSlot(ctx, admin(), slot.ID))

	assert.Empty(t, store.Slots())
	assert.Empty(t, store.Records())
	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSlotDeleted, events[0].EventType)
}

func TestSlotWritesEmitEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	actor := admin()

	created, err := svc.CreateSlot(ctx, actor, inputFor(newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())))
	require.NoError(t, err)
	input := inputFor(created)
	input.Room = "R2"
	_, err = svc.UpdateSlot(ctx, actor, created.ID, input)
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSlotCreated, events[0].EventType)
	assert.Equal(t, domain.EventSlotUpdated, events[1].EventType)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, fixedNow, events[1].OccurredAt)
	payload, ok := events[1].Payload.(domain.SlotPayload)
	require.True(t, ok)
	assert.Equal(t, "R2", payload.Room)
	assert.Equal(t, actor.ID.String(), payload.ChangedBy)
}

func TestListScheduleByRole(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	enrollment := newFakeEnrollment()
	svc := newScheduleService(store, enrollment)

	lecturer, pupil := uuid.New(), uuid.New()
	math, physics := uuid.New(), uuid.New()
	mathTue := newSlot(domain.Tuesday, hm(9, 0), hm(10, 0), "R1", math, lecturer)
	mathMon := newSlot(domain.Monday, hm(14, 0), hm(15, 0), "R1", math, lecturer)
	physicsMon := newSlot(domain.Monday, hm(8, 0), hm(9, 0), "R2", physics, uuid.New())
	sunday := newSlot(domain.Sunday, hm(8, 0), hm(9, 0), "R3", physics, lecturer)
	store.Seed(mathTue, mathMon, physicsMon, sunday)
	enrollment.enroll(math, pupil)

	all, err := svc.ListSchedule(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{physicsMon, mathMon, mathTue, sunday}, all)

	own, err := svc.ListSchedule(ctx, instructor(lecturer))
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{mathMon, mathTue, sunday}, own)

	enrolled, err := svc.ListSchedule(ctx, student(pupil))
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{mathMon, mathTue}, enrolled)

	none, err := svc.ListSchedule(ctx, student(uuid.New()))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.ListSchedule(ctx, domain.Viewer{ID: uuid.New(), Role: "guest"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListEntriesInjectsBreaks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	slot := newSlot(domain.Monday, hm(13, 0), hm(14, 0), "R1", uuid.New(), uuid.New())
	store.Seed(slot)

	entries, err := svc.ListEntries(ctx, admin(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, slot, entries[0])
	assert.Equal(t, domain.BreakEntry{Name: "Lunch Break", Day: domain.Monday, StartTime: hm(13, 0), EndTime: hm(14, 0)}, entries[1])
	assert.Equal(t, domain.Tuesday, entries[2].Span().Day)

	entries, err = svc.ListEntries(ctx, admin(), []domain.Weekday{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ScheduleEntry{slot}, entries)

	cells, err := svc.Grid(ctx, admin(), []domain.Weekday{domain.Monday})
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, slot, cells[0].Entry)
}

func TestListScheduleRetriesTransientReads(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())
	slot := newSlot(domain.Monday, hm(9, 0), hm(10, 0), "R1", uuid.New(), uuid.New())
	store.Seed(slot)

	store.FailNext("ListSlots", &pgconn.PgError{Code: "40001"})
	store.FailNext("ListSlots", &pgconn.PgError{Code: "08006"})
	got, err := svc.ListSchedule(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, []domain.Slot{slot}, got)

	store.FailNext("ListSlots", errors.New("syntax error"))
	_, err = svc.ListSchedule(ctx, admin())
	assert.EqualError(t, err, "syntax error")
}

func TestListScheduleGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newScheduleService(store, newFakeEnrollment())

	for i := 0; i < 3; i++ {
		store.FailNext("ListSlots", &pgconn.PgError{Code: "40P01"})
	}
	_, err := svc.ListSchedule(ctx, admin())
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40P01", pgErr.Code)

	_, err = svc.ListSchedule(ctx, admin())
	assert.NoError(t, err)
}
