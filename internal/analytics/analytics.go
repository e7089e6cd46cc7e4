// Package analytics computes attendance rollups from raw ledger rows. Every
// function is pure and recomputes from its input; nothing is cached.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"service-schedule/internal/domain"
)

const (
	WeeklyWindowWeeks   = 12
	MonthlyWindowMonths = 6
	LowAttendanceCutoff = 75.0
	monthKeyLayout      = "2006-01"
)

type Counts struct {
	Present    int     `json:"present_count"`
	Absent     int     `json:"absent_count"`
	Total      int     `json:"total_count"`
	Percentage float64 `json:"percentage"`
}

func (c *Counts) add(status domain.AttendanceStatus) {
	switch status {
	case domain.StatusPresent:
		c.Present++
	case domain.StatusAbsent:
		c.Absent++
	}
	c.Total++
}

func (c *Counts) finish() {
	c.Percentage = Percentage(c.Present, c.Total)
}

type CourseSummary struct {
	CourseID uuid.UUID `json:"course_id"`
	Counts
}

type TrendPoint struct {
	// Period is the ISO week's Monday (YYYY-MM-DD) or the month (YYYY-MM).
	Period string `json:"period"`
	Counts
}

type Alert struct {
	StudentID uuid.UUID `json:"student_id"`
	CourseID  uuid.UUID `json:"course_id"`
	Counts
}

// Percentage is present/total*100 rounded to two decimals, 0 for no sessions.
func Percentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(present)/float64(total)*100*100) / 100
}

// Summarize groups records per course, ordered by course id.
func Summarize(records []domain.AttendanceRecord) []CourseSummary {
	byCourse := make(map[uuid.UUID]*CourseSummary)
	for _, record := range records {
		summary, ok := byCourse[record.CourseID]
		if !ok {
			summary = &CourseSummary{CourseID: record.CourseID}
			byCourse[record.CourseID] = summary
		}
		summary.add(record.Status)
	}

	out := make([]CourseSummary, 0, len(byCourse))
	for _, summary := range byCourse {
		summary.finish()
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CourseID.String() < out[j].CourseID.String()
	})
	return out
}

// WeekStart returns the Monday of date's ISO week as a civil date.
func WeekStart(date time.Time) time.Time {
	day := domain.CivilDate(date)
	offset := int(domain.WeekdayOf(day)) - int(domain.Monday)
	return day.AddDate(0, 0, -offset)
}

// WeeklyWindowStart is the first day covered by WeeklyTrend for today.
func WeeklyWindowStart(today time.Time) time.Time {
	return WeekStart(today).AddDate(0, 0, -7*(WeeklyWindowWeeks-1))
}

// MonthlyWindowStart is the first day covered by MonthlyTrend for today.
func MonthlyWindowStart(today time.Time) time.Time {
	year, month, _ := today.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(MonthlyWindowMonths - 1), 0)
}

// WeeklyTrend buckets records by ISO week over the current week and the
// eleven before it. Empty weeks are omitted.
func WeeklyTrend(records []domain.AttendanceRecord, today time.Time) []TrendPoint {
	from := WeeklyWindowStart(today)
	to := domain.CivilDate(today)
	return trend(records, from, to, func(date time.Time) string {
		return WeekStart(date).Format(domain.DateLayout)
	})
}

// MonthlyTrend buckets records by calendar month over the current month and
// the five before it. Empty months are omitted.
func MonthlyTrend(records []domain.AttendanceRecord, today time.Time) []TrendPoint {
	from := MonthlyWindowStart(today)
	to := domain.CivilDate(today)
	return trend(records, from, to, func(date time.Time) string {
		return date.Format(monthKeyLayout)
	})
}

func trend(records []domain.AttendanceRecord, from, to time.Time, period func(time.Time) string) []TrendPoint {
	buckets := make(map[string]*TrendPoint)
	for _, record := range records {
		date := domain.CivilDate(record.Date)
		if date.Before(from) || date.After(to) {
			continue
		}
		key := period(date)
		point, ok := buckets[key]
		if !ok {
			point = &TrendPoint{Period: key}
			buckets[key] = point
		}
		point.add(record.Status)
	}

	out := make([]TrendPoint, 0, len(buckets))
	for _, point := range buckets {
		point.finish()
		out = append(out, *point)
	}
	// Both key formats sort chronologically as strings.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Period < out[j].Period
	})
	return out
}

// LowAttendance flags every (student, course) pair with at least one recorded
// session whose percentage is below LowAttendanceCutoff. Results are ordered
// by percentage ascending, then course and student id.
func LowAttendance(records []domain.AttendanceRecord) []Alert {
	type pair struct{ student, course uuid.UUID }
	byPair := make(map[pair]*Alert)
	for _, record := range records {
		key := pair{record.StudentID, record.CourseID}
		alert, ok := byPair[key]
		if !ok {
			alert = &Alert{StudentID: record.StudentID, CourseID: record.CourseID}
			byPair[key] = alert
		}
		alert.add(record.Status)
	}

	var out []Alert
	for _, alert := range byPair {
		alert.finish()
		if alert.Total > 0 && alert.Percentage < LowAttendanceCutoff {
			out = append(out, *alert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Percentage != b.Percentage {
			return a.Percentage < b.Percentage
		}
		if a.CourseID != b.CourseID {
			return a.CourseID.String() < b.CourseID.String()
		}
		return a.StudentID.String() < b.StudentID.String()
	})
	return out
}
