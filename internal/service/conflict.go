package service

import (
	"context"

	"github.com/google/uuid"

	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
)

// ConflictChecker validates a candidate slot against the committed schedule.
// It only reads; callers hold the day locks and perform the write in the same
// transaction.
type ConflictChecker struct{}

// Validate returns nil or a *ConflictError for the first colliding axis, room
// before instructor. excluding skips the slot being updated.
func (ConflictChecker) Validate(ctx context.Context, slots repository.SlotRepository, candidate domain.Slot, excluding *uuid.UUID) error {
	byRoom, err := slots.ListByRoomDay(ctx, candidate.Room, candidate.Day, excluding)
	if err != nil {
		return err
	}
	if existing, ok := firstOverlap(candidate, byRoom); ok {
		return &ConflictError{Axis: AxisRoom, SlotID: existing.ID}
	}

	byInstructor, err := slots.ListByInstructorDay(ctx, candidate.InstructorID, candidate.Day, excluding)
	if err != nil {
		return err
	}
	if existing, ok := firstOverlap(candidate, byInstructor); ok {
		return &ConflictError{Axis: AxisInstructor, SlotID: existing.ID}
	}

	return nil
}

func firstOverlap(candidate domain.Slot, existing []domain.Slot) (domain.Slot, bool) {
	for _, slot := range existing {
		if candidate.Overlaps(slot) {
			return slot, true
		}
	}
	return domain.Slot{}, false
}
