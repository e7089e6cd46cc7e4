package schedule

import (
	"sort"

	"service-schedule/internal/domain"
)

// Cell addresses one hour of one day in a rendered timetable.
type Cell struct {
	Day  domain.Weekday
	Hour int
}

// GridCell is the single entry chosen to fill a Cell.
type GridCell struct {
	Cell
	Entry domain.ScheduleEntry
}

// Grid projects entries onto hour cells, one entry per cell. An entry fills
// every hour it touches. When several entries touch the same cell a Slot wins
// over a BreakEntry; between entries of the same kind the earlier start wins,
// then the lower room (slots) or name (breaks). Cells are returned in
// (day, hour) order.
func Grid(entries []domain.ScheduleEntry) []GridCell {
	chosen := make(map[Cell]domain.ScheduleEntry)
	for _, entry := range entries {
		span := entry.Span()
		if span.End <= span.Start {
			continue
		}
		lastHour := (int(span.End) - 1) / 60
		for hour := span.Start.Hour(); hour <= lastHour; hour++ {
			cell := Cell{Day: span.Day, Hour: hour}
			current, ok := chosen[cell]
			if !ok || prefer(entry, current) {
				chosen[cell] = entry
			}
		}
	}

	cells := make([]GridCell, 0, len(chosen))
	for cell, entry := range chosen {
		cells = append(cells, GridCell{Cell: cell, Entry: entry})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day != cells[j].Day {
			return cells[i].Day < cells[j].Day
		}
		return cells[i].Hour < cells[j].Hour
	})
	return cells
}

// prefer reports whether candidate should replace current in a cell.
func prefer(candidate, current domain.ScheduleEntry) bool {
	if rank(candidate) != rank(current) {
		return rank(candidate) < rank(current)
	}
	a, b := candidate.Span(), current.Span()
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return tieKey(candidate) < tieKey(current)
}

func tieKey(entry domain.ScheduleEntry) string {
	switch e := entry.(type) {
	case domain.Slot:
		return e.Room + "\x00" + e.ID.String()
	case domain.BreakEntry:
		return e.Name
	default:
		panic("schedule: unknown entry type")
	}
}
