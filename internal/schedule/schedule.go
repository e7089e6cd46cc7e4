// Package schedule holds the pure transforms applied to a slot listing before
// it is returned for display: canonical ordering, break injection and the
// one-entry-per-cell grid projection.
package schedule

import (
	"sort"

	"service-schedule/internal/domain"
)

// SortSlots orders slots by (day, start time). Ties keep input order.
func SortSlots(slots []domain.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return lessSpan(slots[i].Span(), slots[j].Span())
	})
}

// SortEntries orders entries by (day, start time); on a tie a Slot precedes a
// BreakEntry, otherwise input order is kept.
func SortEntries(entries []domain.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Span(), entries[j].Span()
		if a.Day != b.Day || a.Start != b.Start {
			return lessSpan(a, b)
		}
		return rank(entries[i]) < rank(entries[j])
	})
}

func lessSpan(a, b domain.Span) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Start < b.Start
}

func rank(entry domain.ScheduleEntry) int {
	switch entry.(type) {
	case domain.Slot:
		return 0
	case domain.BreakEntry:
		return 1
	default:
		panic("schedule: unknown entry type")
	}
}

// InjectBreaks appends one BreakEntry per template for every requested day and
// returns the combined, re-sorted sequence. Breaks are not checked against the
// slots; a break and a class may share a window. slots is not modified.
func InjectBreaks(slots []domain.Slot, days []domain.Weekday, breaks []domain.BreakTemplate) []domain.ScheduleEntry {
	days = distinctDays(days)
	entries := make([]domain.ScheduleEntry, 0, len(slots)+len(days)*len(breaks))
	for _, slot := range slots {
		entries = append(entries, slot)
	}
	for _, day := range days {
		for _, tmpl := range breaks {
			entries = append(entries, domain.BreakEntry{
				Name:      tmpl.Name,
				Day:       day,
				StartTime: tmpl.StartTime,
				EndTime:   tmpl.EndTime,
			})
		}
	}
	SortEntries(entries)
	return entries
}

func distinctDays(days []domain.Weekday) []domain.Weekday {
	seen := make(map[domain.Weekday]bool, len(days))
	out := make([]domain.Weekday, 0, len(days))
	for _, day := range days {
		if !day.Valid() || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out
}
