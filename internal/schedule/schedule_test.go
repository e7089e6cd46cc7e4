package schedule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-schedule/internal/domain"
)

func tod(t *testing.T, value string) domain.TimeOfDay {
	t.Helper()
	parsed, err := domain.ParseTimeOfDay(value)
	require.NoError(t, err)
	return parsed
}

func newSlot(t *testing.T, day domain.Weekday, start, end, room string) domain.Slot {
	return domain.Slot{
		ID:           uuid.New(),
		CourseID:     uuid.New(),
		InstructorID: uuid.New(),
		Day:          day,
		StartTime:    tod(t, start),
		EndTime:      tod(t, end),
		Room:         room,
	}
}

func TestSortSlots(t *testing.T) {
	sunday := newSlot(t, domain.Sunday, "08:00", "09:00", "A")
	mondayLate := newSlot(t, domain.Monday, "14:00", "15:00", "A")
	mondayEarly := newSlot(t, domain.Monday, "08:00", "09:00", "B")
	wednesday := newSlot(t, domain.Wednesday, "07:00", "08:00", "C")

	slots := []domain.Slot{sunday, mondayLate, wednesday, mondayEarly}
	SortSlots(slots)

	assert.Equal(t, []domain.Slot{mondayEarly, mondayLate, wednesday, sunday}, slots)
}

func TestInjectBreaks(t *testing.T) {
	lunch := domain.BreakTemplate{Name: "Lunch Break", StartTime: tod(t, "13:00"), EndTime: tod(t, "14:00")}
	tea := domain.BreakTemplate{Name: "Breakfast Break", StartTime: tod(t, "10:00"), EndTime: tod(t, "10:20")}

	morning := newSlot(t, domain.Monday, "09:00", "10:00", "101")
	clash := newSlot(t, domain.Monday, "13:00", "14:00", "101")
	tuesday := newSlot(t, domain.Tuesday, "08:00", "09:00", "102")
	slots := []domain.Slot{morning, clash, tuesday}

	entries := InjectBreaks(slots, []domain.Weekday{domain.Tuesday, domain.Monday, domain.Monday}, []domain.BreakTemplate{lunch, tea})

	want := []domain.ScheduleEntry{
		morning,
		domain.BreakEntry{Name: "Breakfast Break", Day: domain.Monday, StartTime: tea.StartTime, EndTime: tea.EndTime},
		clash,
		domain.BreakEntry{Name: "Lunch Break", Day: domain.Monday, StartTime: lunch.StartTime, EndTime: lunch.EndTime},
		tuesday,
		domain.BreakEntry{Name: "Breakfast Break", Day: domain.Tuesday, StartTime: tea.StartTime, EndTime: tea.EndTime},
		domain.BreakEntry{Name: "Lunch Break", Day: domain.Tuesday, StartTime: lunch.StartTime, EndTime: lunch.EndTime},
	}
	assert.Equal(t, want, entries)
	assert.Len(t, slots, 3, "input slice must not grow")
}

func TestInjectBreaksNoDays(t *testing.T) {
	slot := newSlot(t, domain.Friday, "09:00", "10:00", "1")
	entries := InjectBreaks([]domain.Slot{slot}, nil, []domain.BreakTemplate{{Name: "Lunch", StartTime: tod(t, "12:00"), EndTime: tod(t, "13:00")}})
	assert.Equal(t, []domain.ScheduleEntry{slot}, entries)
}

func TestInjectBreaksOnlyBreaks(t *testing.T) {
	entries := InjectBreaks(nil, []domain.Weekday{domain.Saturday}, []domain.BreakTemplate{{Name: "Lunch", StartTime: tod(t, "12:00"), EndTime: tod(t, "13:00")}})
	require.Len(t, entries, 1)
	brk, ok := entries[0].(domain.BreakEntry)
	require.True(t, ok)
	assert.Equal(t, domain.Saturday, brk.Day)
}

func TestGridPrefersSlotOverBreak(t *testing.T) {
	clash := newSlot(t, domain.Monday, "13:00", "14:00", "101")
	entries := InjectBreaks(
		[]domain.Slot{clash},
		[]domain.Weekday{domain.Monday},
		[]domain.BreakTemplate{{Name: "Lunch Break", StartTime: tod(t, "13:00"), EndTime: tod(t, "14:00")}},
	)

	cells := Grid(entries)
	require.Len(t, cells, 1)
	assert.Equal(t, Cell{Day: domain.Monday, Hour: 13}, cells[0].Cell)
	assert.Equal(t, clash, cells[0].Entry)
}

func TestGridSpansHours(t *testing.T) {
	long := newSlot(t, domain.Tuesday, "09:30", "11:15", "B")
	brk := domain.BreakEntry{Name: "Recess", Day: domain.Tuesday, StartTime: tod(t, "11:15"), EndTime: tod(t, "11:45")}

	cells := Grid([]domain.ScheduleEntry{long, brk})

	require.Len(t, cells, 3)
	assert.Equal(t, 9, cells[0].Hour)
	assert.Equal(t, 10, cells[1].Hour)
	assert.Equal(t, 11, cells[2].Hour)
	assert.Equal(t, long, cells[2].Entry, "slot keeps the 11:00 cell it shares with the break")
}

func TestGridSameKindEarlierStartWins(t *testing.T) {
	first := newSlot(t, domain.Thursday, "10:00", "10:30", "Z")
	second := newSlot(t, domain.Thursday, "10:30", "11:00", "A")

	cells := Grid([]domain.ScheduleEntry{second, first})

	require.Len(t, cells, 1)
	assert.Equal(t, first, cells[0].Entry)
}
