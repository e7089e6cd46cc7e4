package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyMarked = errors.New("attendance already marked today")
	ErrEmptyRoster   = errors.New("course roster is empty")

	ErrRoomConflict       = errors.New("room conflict")
	ErrInstructorConflict = errors.New("instructor conflict")
)

type ConflictAxis string

const (
	AxisRoom       ConflictAxis = "room"
	AxisInstructor ConflictAxis = "instructor"
)

// ConflictError names the axis and the existing slot a candidate collided
// with. SlotID is uuid.Nil when only the database constraint caught it.
type ConflictError struct {
	Axis   ConflictAxis
	SlotID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.SlotID == uuid.Nil {
		return fmt.Sprintf("%s conflict", e.Axis)
	}
	return fmt.Sprintf("%s conflict with slot %s", e.Axis, e.SlotID)
}

func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return true
	case ErrRoomConflict:
		return e.Axis == AxisRoom
	case ErrInstructorConflict:
		return e.Axis == AxisInstructor
	default:
		return false
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
