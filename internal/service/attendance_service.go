package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
)

const (
	protocolQuick    = "quick"
	protocolDetailed = "detailed"
)

type StatusInput struct {
	StudentID uuid.UUID               `json:"student_id" validate:"required"`
	Status    domain.AttendanceStatus `json:"status" validate:"required,oneof=present absent"`
}

type DetailedMarkInput struct {
	OccurrenceID uuid.UUID     `json:"occurrence_id" validate:"required"`
	CourseID     uuid.UUID     `json:"course_id" validate:"required"`
	Date         time.Time     `json:"date" validate:"required"`
	Statuses     []StatusInput `json:"statuses" validate:"dive"`
}

// AttendanceService implements the two marking protocols. They differ on
// purpose: quick-mark refuses to touch a day already marked, detailed-mark
// replaces its whole scope.
type AttendanceService struct {
	txManager  repository.TxManager
	enrollment EnrollmentClient
	opts       Options
}

func NewAttendanceService(txManager repository.TxManager, enrollment EnrollmentClient, opts Options) *AttendanceService {
	return &AttendanceService{
		txManager:  txManager,
		enrollment: enrollment,
		opts:       opts.withDefaults(),
	}
}

// MarkWholeClassToday records every enrolled student of the occurrence's
// course as present for today. It is one-shot: once actor has marked the
// course today any further call fails with ErrAlreadyMarked.
func (s *AttendanceService) MarkWholeClassToday(ctx context.Context, actor domain.Viewer, occurrenceID uuid.UUID) (int, error) {
	count, err := s.markWholeClassToday(ctx, actor, occurrenceID)
	s.record(protocolQuick, occurrenceID, err)
	return count, err
}

func (s *AttendanceService) markWholeClassToday(ctx context.Context, actor domain.Viewer, occurrenceID uuid.UUID) (int, error) {
	if !actor.IsInstructor() {
		return 0, ErrUnauthorized
	}
	today := s.opts.today()

	var slot domain.Slot
	err := s.opts.readTx(ctx, s.txManager, "quick_mark_precheck", func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		slot, err = ownedSlot(ctx, repos, actor, occurrenceID)
		if err != nil {
			return err
		}
		marked, err := repos.Attendance.ExistsMarked(ctx, slot.CourseID, today, actor.ID)
		if err != nil {
			return err
		}
		if marked {
			return ErrAlreadyMarked
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	roster, err := s.enrollment.CourseStudents(ctx, slot.CourseID)
	if err != nil {
		return 0, err
	}
	if len(roster) == 0 {
		return 0, ErrEmptyRoster
	}

	records := make([]domain.AttendanceRecord, 0, len(roster))
	for _, studentID := range roster {
		records = append(records, domain.AttendanceRecord{
			ID:          newID(),
			StudentID:   studentID,
			CourseID:    slot.CourseID,
			Date:        today,
			Status:      domain.StatusPresent,
			MarkedBy:    actor.ID,
			TimetableID: occurrenceID,
		})
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		current, err := ownedSlot(ctx, repos, actor, occurrenceID)
		if err != nil {
			return err
		}
		if current.CourseID != slot.CourseID {
			return ErrUnauthorized
		}
		if err := repos.Attendance.LockCourseDate(ctx, slot.CourseID, today); err != nil {
			return err
		}
		marked, err := repos.Attendance.ExistsMarked(ctx, slot.CourseID, today, actor.ID)
		if err != nil {
			return err
		}
		if marked {
			return ErrAlreadyMarked
		}
		if err := repos.Attendance.InsertBatch(ctx, records); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrAlreadyMarked
			}
			return err
		}
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventAttendanceQuickMarked,
			Payload: domain.AttendanceMarkedPayload{
				TimetableID: occurrenceID.String(),
				CourseID:    slot.CourseID.String(),
				Date:        today.Format(domain.DateLayout),
				MarkedBy:    actor.ID.String(),
				Count:       len(records),
			},
		}))
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// MarkDetailed replaces every record of (course, date, occurrence) with one
// record per status. Re-running it with the same input leaves the ledger as
// the first run did; it is the only way to correct marked attendance.
func (s *AttendanceService) MarkDetailed(ctx context.Context, actor domain.Viewer, input DetailedMarkInput) (int, error) {
	count, err := s.markDetailed(ctx, actor, input)
	s.record(protocolDetailed, input.OccurrenceID, err)
	return count, err
}

func (s *AttendanceService) markDetailed(ctx context.Context, actor domain.Viewer, input DetailedMarkInput) (int, error) {
	if !actor.IsInstructor() {
		return 0, ErrUnauthorized
	}
	if err := validateStruct(input); err != nil {
		return 0, err
	}
	if err := distinctStudents(input.Statuses); err != nil {
		return 0, err
	}
	date := domain.CivilDate(input.Date)

	err := s.opts.readTx(ctx, s.txManager, "detailed_mark_precheck", func(ctx context.Context, repos repository.TxRepositories) error {
		_, err := ownedCourseSlot(ctx, repos, actor, input.OccurrenceID, input.CourseID)
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(input.Statuses) > 0 {
		roster, err := s.enrollment.CourseStudents(ctx, input.CourseID)
		if err != nil {
			return 0, err
		}
		if err := onRoster(input.Statuses, roster); err != nil {
			return 0, err
		}
	}

	records := make([]domain.AttendanceRecord, 0, len(input.Statuses))
	for _, status := range input.Statuses {
		records = append(records, domain.AttendanceRecord{
			ID:          newID(),
			StudentID:   status.StudentID,
			CourseID:    input.CourseID,
			Date:        date,
			Status:      status.Status,
			MarkedBy:    actor.ID,
			TimetableID: input.OccurrenceID,
		})
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		if _, err := ownedCourseSlot(ctx, repos, actor, input.OccurrenceID, input.CourseID); err != nil {
			return err
		}
		if err := repos.Attendance.LockCourseDate(ctx, input.CourseID, date); err != nil {
			return err
		}
		replaced, err := repos.Attendance.DeleteScope(ctx, input.CourseID, date, input.OccurrenceID)
		if err != nil {
			return err
		}
		if err := repos.Attendance.InsertBatch(ctx, records); err != nil {
			return err
		}
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventAttendanceDetailedMarked,
			Payload: domain.AttendanceMarkedPayload{
				TimetableID: input.OccurrenceID.String(),
				CourseID:    input.CourseID.String(),
				Date:        date.Format(domain.DateLayout),
				MarkedBy:    actor.ID.String(),
				Count:       len(records),
				Replaced:    replaced,
			},
		}))
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ScopeRecords returns the ledger rows of one (course, date, occurrence) scope
// for its instructor.
func (s *AttendanceService) ScopeRecords(ctx context.Context, actor domain.Viewer, occurrenceID, courseID uuid.UUID, date time.Time) ([]domain.AttendanceRecord, error) {
	if !actor.IsInstructor() && !actor.IsAdministrator() {
		return nil, ErrUnauthorized
	}
	var records []domain.AttendanceRecord
	err := s.opts.readTx(ctx, s.txManager, "scope_records", func(ctx context.Context, repos repository.TxRepositories) error {
		slot, err := repos.Slots.Get(ctx, occurrenceID)
		if err != nil {
			return notFound(err)
		}
		if slot.CourseID != courseID || (actor.IsInstructor() && slot.InstructorID != actor.ID) {
			return ErrUnauthorized
		}
		records, err = repos.Attendance.ListScope(ctx, courseID, domain.CivilDate(date), occurrenceID)
		return err
	})
	if records == nil && err == nil {
		records = []domain.AttendanceRecord{}
	}
	return records, err
}

func (s *AttendanceService) record(protocol string, occurrenceID uuid.UUID, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyMarked):
		outcome = "already_marked"
	case errors.Is(err, ErrEmptyRoster):
		outcome = "empty_roster"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotFound):
		outcome = "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid"
	default:
		outcome = "error"
		s.opts.Logger.Error("attendance mark failed",
			zap.String("protocol", protocol),
			zap.Stringer("occurrence_id", occurrenceID),
			zap.Error(err),
		)
	}
	s.opts.Metrics.AttendanceMarks.WithLabelValues(protocol, outcome).Inc()
}

// ownedSlot loads the occurrence and requires actor to be its instructor.
func ownedSlot(ctx context.Context, repos repository.TxRepositories, actor domain.Viewer, occurrenceID uuid.UUID) (domain.Slot, error) {
	slot, err := repos.Slots.Get(ctx, occurrenceID)
	if err != nil {
		return domain.Slot{}, notFound(err)
	}
	if slot.InstructorID != actor.ID {
		return domain.Slot{}, ErrUnauthorized
	}
	return slot, nil
}

func ownedCourseSlot(ctx context.Context, repos repository.TxRepositories, actor domain.Viewer, occurrenceID, courseID uuid.UUID) (domain.Slot, error) {
	slot, err := ownedSlot(ctx, repos, actor, occurrenceID)
	if err != nil {
		return domain.Slot{}, err
	}
	if slot.CourseID != courseID {
		return domain.Slot{}, ErrUnauthorized
	}
	return slot, nil
}

func distinctStudents(statuses []StatusInput) error {
	seen := make(map[uuid.UUID]bool, len(statuses))
	var fields []FieldError
	for i, status := range statuses {
		if seen[status.StudentID] {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("statuses[%d].student_id", i),
				Message: "is listed more than once",
			})
		}
		seen[status.StudentID] = true
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

func onRoster(statuses []StatusInput, roster []uuid.UUID) error {
	enrolled := make(map[uuid.UUID]bool, len(roster))
	for _, id := range roster {
		enrolled[id] = true
	}
	var fields []FieldError
	for i, status := range statuses {
		if !enrolled[status.StudentID] {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("statuses[%d].student_id", i),
				Message: "is not enrolled in the course",
			})
		}
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}
