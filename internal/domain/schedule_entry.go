package domain

// Span is the (day, [start, end)) window an entry occupies.
type Span struct {
	Day   Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// ScheduleEntry is either a Slot or a BreakEntry. The set is closed; consumers
// switch on the concrete type.
type ScheduleEntry interface {
	Span() Span
	scheduleEntry()
}

// BreakTemplate is a fixed daily break window.
type BreakTemplate struct {
	Name      string    `json:"name"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// BreakEntry is a BreakTemplate placed on a day. It is generated per query and
// never stored.
type BreakEntry struct {
	Name      string
	Day       Weekday
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

func (b BreakEntry) Span() Span {
	return Span{Day: b.Day, Start: b.StartTime, End: b.EndTime}
}

func (BreakEntry) scheduleEntry() {}

var (
	_ ScheduleEntry = Slot{}
	_ ScheduleEntry = BreakEntry{}
)
