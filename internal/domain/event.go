package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSlotCreated              = "SlotCreated"
	EventSlotUpdated              = "SlotUpdated"
	EventSlotDeleted              = "SlotDeleted"
	EventAttendanceQuickMarked    = "AttendanceQuickMarked"
	EventAttendanceDetailedMarked = "AttendanceDetailedMarked"
	EventLowAttendanceDetected    = "LowAttendanceDetected"
)

type TimetableEvent struct {
	ID         uuid.UUID
	EventType  string
	Payload    any
	OccurredAt time.Time
}

type SlotPayload struct {
	SlotID       string `json:"slot_id"`
	CourseID     string `json:"course_id"`
	InstructorID string `json:"instructor_id"`
	Day          string `json:"day"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Room         string `json:"room"`
	ChangedBy    string `json:"changed_by"`
}

type AttendanceMarkedPayload struct {
	TimetableID string `json:"timetable_id"`
	CourseID    string `json:"course_id"`
	Date        string `json:"date"`
	MarkedBy    string `json:"marked_by"`
	Count       int    `json:"count"`
	Replaced    int64  `json:"replaced,omitempty"`
}

type LowAttendancePair struct {
	StudentID  string  `json:"student_id"`
	CourseID   string  `json:"course_id"`
	Percentage float64 `json:"percentage"`
}

type LowAttendanceDetectedPayload struct {
	ScannedAt string              `json:"scanned_at"`
	Pairs     []LowAttendancePair `json:"pairs"`
}

func NewSlotPayload(slot Slot, changedBy string) SlotPayload {
	return SlotPayload{
		SlotID:       slot.ID.String(),
		CourseID:     slot.CourseID.String(),
		InstructorID: slot.InstructorID.String(),
		Day:          slot.Day.String(),
		StartTime:    slot.StartTime.String(),
		EndTime:      slot.EndTime.String(),
		Room:         slot.Room,
		ChangedBy:    changedBy,
	}
}
