package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository/memory"
)

var fixedNow = time.Date(2024, time.May, 8, 10, 30, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		ReadRetry: RetryPolicy{Attempts: 3},
		Location:  time.UTC,
		Clock:     func() time.Time { return fixedNow },
	}
}

type fakeEnrollment struct {
	rosters map[uuid.UUID][]uuid.UUID
	err     error
}

func newFakeEnrollment() *fakeEnrollment {
	return &fakeEnrollment{rosters: map[uuid.UUID][]uuid.UUID{}}
}

func (f *fakeEnrollment) enroll(courseID uuid.UUID, students ...uuid.UUID) {
	f.rosters[courseID] = append(f.rosters[courseID], students...)
}

func (f *fakeEnrollment) CourseStudents(_ context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]uuid.UUID(nil), f.rosters[courseID]...), nil
}

func (f *fakeEnrollment) StudentCourses(_ context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []uuid.UUID
	for courseID, students := range f.rosters {
		for _, id := range students {
			if id == studentID {
				out = append(out, courseID)
				break
			}
		}
	}
	return out, nil
}

func admin() domain.Viewer {
	return domain.Viewer{ID: uuid.New(), Role: domain.RoleAdministrator}
}

func instructor(id uuid.UUID) domain.Viewer {
	return domain.Viewer{ID: id, Role: domain.RoleInstructor}
}

func student(id uuid.UUID) domain.Viewer {
	return domain.Viewer{ID: id, Role: domain.RoleStudent}
}

func hm(hour, minute int) domain.TimeOfDay {
	return domain.NewTimeOfDay(hour, minute)
}

func newSlot(day domain.Weekday, start, end domain.TimeOfDay, room string, courseID, instructorID uuid.UUID) domain.Slot {
	return domain.Slot{
		ID:           uuid.New(),
		CourseID:     courseID,
		InstructorID: instructorID,
		Day:          day,
		StartTime:    start,
		EndTime:      end,
		Room:         room,
	}
}

func inputFor(slot domain.Slot) SlotInput {
	return SlotInput{
		CourseID:     slot.CourseID,
		InstructorID: slot.InstructorID,
		Day:          slot.Day,
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
		Room:         slot.Room,
	}
}

type ledgerRow struct {
	StudentID uuid.UUID
	Status    domain.AttendanceStatus
}

// ledger strips record ids so runs can be compared.
func ledger(store *memory.Store) []ledgerRow {
	records := store.Records()
	out := make([]ledgerRow, 0, len(records))
	for _, record := range records {
		out = append(out, ledgerRow{StudentID: record.StudentID, Status: record.Status})
	}
	return out
}
