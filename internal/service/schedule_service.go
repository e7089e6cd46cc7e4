package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
	"service-schedule/internal/schedule"
)

// SlotInput is the writable part of a Slot.
type SlotInput struct {
	CourseID     uuid.UUID        `json:"course_id" validate:"required"`
	InstructorID uuid.UUID        `json:"instructor_id" validate:"required"`
	Day          domain.Weekday   `json:"day" validate:"min=1,max=7"`
	StartTime    domain.TimeOfDay `json:"start_time" validate:"min=0,max=1440"`
	EndTime      domain.TimeOfDay `json:"end_time" validate:"min=0,max=1440,gtfield=StartTime"`
	Room         string           `json:"room" validate:"required,max=64"`
}

// BreakSettings configures break injection for display queries.
type BreakSettings struct {
	Templates []domain.BreakTemplate
	// DefaultDays are used when a caller does not name the days it displays.
	DefaultDays []domain.Weekday
}

type ScheduleService struct {
	txManager  repository.TxManager
	enrollment EnrollmentClient
	checker    ConflictChecker
	breaks     BreakSettings
	opts       Options
}

func NewScheduleService(txManager repository.TxManager, enrollment EnrollmentClient, breaks BreakSettings, opts Options) *ScheduleService {
	return &ScheduleService{
		txManager:  txManager,
		enrollment: enrollment,
		breaks:     breaks,
		opts:       opts.withDefaults(),
	}
}

func (s *ScheduleService) CreateSlot(ctx context.Context, viewer domain.Viewer, input SlotInput) (domain.Slot, error) {
	if !viewer.IsAdministrator() {
		return domain.Slot{}, ErrUnauthorized
	}
	if err := validateStruct(input); err != nil {
		return domain.Slot{}, err
	}

	slot := slotFromInput(newID(), input)
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		if err := repos.Slots.LockDays(ctx, slot.Day); err != nil {
			return err
		}
		if err := s.checker.Validate(ctx, repos.Slots, slot, nil); err != nil {
			return err
		}
		if err := repos.Slots.Create(ctx, slot); err != nil {
			return slotWriteError(err)
		}
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventSlotCreated,
			Payload:   domain.NewSlotPayload(slot, viewer.ID.String()),
		}))
	})
	s.recordWrite("create", slot, err)
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// UpdateSlot replaces every field of slot id. The conflict scan skips the slot
// itself so an unchanged or shrunk window always validates.
func (s *ScheduleService) UpdateSlot(ctx context.Context, viewer domain.Viewer, id uuid.UUID, input SlotInput) (domain.Slot, error) {
	if !viewer.IsAdministrator() {
		return domain.Slot{}, ErrUnauthorized
	}
	if err := validateStruct(input); err != nil {
		return domain.Slot{}, err
	}

	slot := slotFromInput(id, input)
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		current, err := repos.Slots.Get(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := repos.Slots.LockDays(ctx, current.Day, slot.Day); err != nil {
			return err
		}
		if err := s.checker.Validate(ctx, repos.Slots, slot, &id); err != nil {
			return err
		}
		if err := repos.Slots.Update(ctx, slot); err != nil {
			return notFound(slotWriteError(err))
		}
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventSlotUpdated,
			Payload:   domain.NewSlotPayload(slot, viewer.ID.String()),
		}))
	})
	s.recordWrite("update", slot, err)
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// DeleteSlot removes slot id. Attendance recorded against it goes with it.
func (s *ScheduleService) DeleteSlot(ctx context.Context, viewer domain.Viewer, id uuid.UUID) error {
	if !viewer.IsAdministrator() {
		return ErrUnauthorized
	}

	var deleted domain.Slot
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		current, err := repos.Slots.Get(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := repos.Slots.LockDays(ctx, current.Day); err != nil {
			return err
		}
		if err := repos.Slots.Delete(ctx, id); err != nil {
			return notFound(err)
		}
		deleted = current
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventSlotDeleted,
			Payload:   domain.NewSlotPayload(current, viewer.ID.String()),
		}))
	})
	s.recordWrite("delete", deleted, err)
	return err
}

// ListSchedule returns the slots visible to viewer in (day, start time) order:
// everything for administrators, their own slots for instructors, and the
// slots of enrolled courses for students.
func (s *ScheduleService) ListSchedule(ctx context.Context, viewer domain.Viewer) ([]domain.Slot, error) {
	filter, err := s.scope(ctx, viewer)
	if err != nil {
		return nil, err
	}

	var slots []domain.Slot
	err = s.opts.readTx(ctx, s.txManager, "list_schedule", func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		slots, err = repos.Slots.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	schedule.SortSlots(slots)
	if slots == nil {
		slots = []domain.Slot{}
	}
	return slots, nil
}

// ListEntries is ListSchedule with break entries merged in for days. A nil
// days uses the configured display days.
func (s *ScheduleService) ListEntries(ctx context.Context, viewer domain.Viewer, days []domain.Weekday) ([]domain.ScheduleEntry, error) {
	slots, err := s.ListSchedule(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = s.breaks.DefaultDays
	}
	return schedule.InjectBreaks(slots, days, s.breaks.Templates), nil
}

// Grid projects ListEntries onto hour cells.
func (s *ScheduleService) Grid(ctx context.Context, viewer domain.Viewer, days []domain.Weekday) ([]schedule.GridCell, error) {
	entries, err := s.ListEntries(ctx, viewer, days)
	if err != nil {
		return nil, err
	}
	return schedule.Grid(entries), nil
}

func (s *ScheduleService) scope(ctx context.Context, viewer domain.Viewer) (repository.SlotFilter, error) {
	switch viewer.Role {
	case domain.RoleAdministrator:
		return repository.SlotFilter{}, nil
	case domain.RoleInstructor:
		id := viewer.ID
		return repository.SlotFilter{InstructorID: &id}, nil
	case domain.RoleStudent:
		courses, err := s.enrollment.StudentCourses(ctx, viewer.ID)
		if err != nil {
			return repository.SlotFilter{}, err
		}
		if courses == nil {
			courses = []uuid.UUID{}
		}
		return repository.SlotFilter{CourseIDs: courses}, nil
	default:
		return repository.SlotFilter{}, ErrUnauthorized
	}
}

func (s *ScheduleService) recordWrite(op string, slot domain.Slot, err error) {
	outcome := "ok"
	var conflict *ConflictError
	switch {
	case err == nil:
	case errors.As(err, &conflict):
		outcome = string(conflict.Axis) + "_conflict"
		s.opts.Logger.Info("slot write rejected",
			zap.String("operation", op),
			zap.String("axis", string(conflict.Axis)),
			zap.Stringer("conflicting_slot_id", conflict.SlotID),
			zap.Stringer("day", slot.Day),
			zap.String("room", slot.Room),
		)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized):
		outcome = "rejected"
	default:
		outcome = "error"
		s.opts.Logger.Error("slot write failed", zap.String("operation", op), zap.Error(err))
	}
	s.opts.Metrics.SlotWrites.WithLabelValues(op, outcome).Inc()
}

func slotFromInput(id uuid.UUID, input SlotInput) domain.Slot {
	return domain.Slot{
		ID:           id,
		CourseID:     input.CourseID,
		InstructorID: input.InstructorID,
		Day:          input.Day,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Room:         input.Room,
	}
}

// slotWriteError maps the overlap exclusion constraints onto ConflictError.
func slotWriteError(err error) error {
	name, ok := repository.ExclusionConstraint(err)
	if !ok {
		return err
	}
	switch name {
	case repository.ConstraintInstructorOverlap:
		return &ConflictError{Axis: AxisInstructor}
	default:
		return &ConflictError{Axis: AxisRoom}
	}
}

func notFound(err error) error {
	if repository.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
