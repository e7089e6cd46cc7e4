package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// AttendanceRecord is unique on (StudentID, CourseID, Date, TimetableID).
// Date is a civil date, see CivilDate.
type AttendanceRecord struct {
	ID          uuid.UUID
	StudentID   uuid.UUID
	CourseID    uuid.UUID
	Date        time.Time
	Status      AttendanceStatus
	MarkedBy    uuid.UUID
	TimetableID uuid.UUID
}

type StudentStatus struct {
	StudentID uuid.UUID
	Status    AttendanceStatus
}

// CivilDate drops the clock and zone of t, keeping the calendar date as seen in
// t's location. The result is midnight UTC so dates compare with ==.
func CivilDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

const DateLayout = "2006-01-02"

func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return CivilDate(parsed), nil
}
