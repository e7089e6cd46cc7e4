package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Weekday numbers days Monday=1 through Sunday=7. The numbering is the primary
// sort key for every schedule listing.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// AllWeekdays lists the week in canonical order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

func ParseWeekday(value string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for i := Monday; i <= Sunday; i++ {
		if weekdayNames[i] == name || weekdayNames[i][:3] == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", value)
}

// WeekdayOf returns the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		return Sunday
	}
	return Weekday(weekday)
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseWeekday(name)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time with minute granularity, stored as minutes
// since midnight. Valid values are 00:00 through 24:00.
type TimeOfDay int

const (
	MinutesPerDay           = 24 * 60
	timeOfDayLayout         = "15:04"
	maxTimeOfDay  TimeOfDay = MinutesPerDay
)

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return maxTimeOfDay, nil
	}
	parsed, err := time.Parse(timeOfDayLayout, value)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}
	return NewTimeOfDay(parsed.Hour(), parsed.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= maxTimeOfDay
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Slot is a weekly-recurring class occurrence.
type Slot struct {
	ID           uuid.UUID
	CourseID     uuid.UUID
	InstructorID uuid.UUID
	Day          Weekday
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	Room         string
}

// Overlaps applies the half-open interval rule: [s1,e1) and [s2,e2) collide
// iff s1 < e2 and s2 < e1. Slots on different days never overlap.
func (s Slot) Overlaps(other Slot) bool {
	if s.Day != other.Day {
		return false
	}
	return s.StartTime < other.EndTime && other.StartTime < s.EndTime
}

func (s Slot) Span() Span {
	return Span{Day: s.Day, Start: s.StartTime, End: s.EndTime}
}

func (Slot) scheduleEntry() {}
