package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(day Weekday, start, end string) Slot {
	s, _ := ParseTimeOfDay(start)
	e, _ := ParseTimeOfDay(end)
	return Slot{Day: day, StartTime: s, EndTime: e}
}

func TestSlotOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Slot
		want bool
	}{
		{"identical", slotAt(Monday, "09:00", "10:00"), slotAt(Monday, "09:00", "10:00"), true},
		{"partial", slotAt(Monday, "09:00", "10:00"), slotAt(Monday, "09:30", "10:30"), true},
		{"contained", slotAt(Monday, "09:00", "12:00"), slotAt(Monday, "10:00", "11:00"), true},
		{"back to back", slotAt(Monday, "09:00", "10:00"), slotAt(Monday, "10:00", "11:00"), false},
		{"back to back reversed", slotAt(Monday, "10:00", "11:00"), slotAt(Monday, "09:00", "10:00"), false},
		{"other day", slotAt(Monday, "09:00", "10:00"), slotAt(Tuesday, "09:00", "10:00"), false},
		{"disjoint", slotAt(Friday, "08:00", "09:00"), slotAt(Friday, "13:00", "14:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("13:45")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(13*60+45), got)
	assert.Equal(t, "13:45", got.String())
	assert.Equal(t, 13, got.Hour())

	end, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(MinutesPerDay), end)

	for _, bad := range []string{"", "9", "25:00", "10:61", "ten"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, day)

	day, err = ParseWeekday("sun")
	require.NoError(t, err)
	assert.Equal(t, Sunday, day)

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}

func TestWeekdayOf(t *testing.T) {
	// 2024-01-01 was a Monday.
	monday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Sunday, WeekdayOf(monday.AddDate(0, 0, 6)))
}

func TestWeekdayJSON(t *testing.T) {
	data, err := json.Marshal(Wednesday)
	require.NoError(t, err)
	assert.JSONEq(t, `"wednesday"`, string(data))

	var day Weekday
	require.NoError(t, json.Unmarshal([]byte(`"thursday"`), &day))
	assert.Equal(t, Thursday, day)
}

func TestCivilDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	late := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), CivilDate(late))
}
