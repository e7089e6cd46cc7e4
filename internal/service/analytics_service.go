package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"service-schedule/internal/analytics"
	"service-schedule/internal/domain"
	"service-schedule/internal/repository"
)

// AnalyticsFilter narrows a read further than the viewer's own scope.
type AnalyticsFilter struct {
	CourseID  *uuid.UUID
	StudentID *uuid.UUID
}

// AnalyticsService recomputes every rollup from ledger rows on each call.
//
// Administrators see every record, instructors the records they marked and
// students only their own.
type AnalyticsService struct {
	txManager  repository.TxManager
	enrollment EnrollmentClient
	opts       Options
}

func NewAnalyticsService(txManager repository.TxManager, enrollment EnrollmentClient, opts Options) *AnalyticsService {
	return &AnalyticsService{
		txManager:  txManager,
		enrollment: enrollment,
		opts:       opts.withDefaults(),
	}
}

func (s *AnalyticsService) Summary(ctx context.Context, viewer domain.Viewer, filter AnalyticsFilter) ([]analytics.CourseSummary, error) {
	records, err := s.records(ctx, viewer, filter, nil, "attendance_summary")
	if err != nil {
		return nil, err
	}
	return analytics.Summarize(records), nil
}

// WeeklyTrend covers the current ISO week and the eleven before it.
func (s *AnalyticsService) WeeklyTrend(ctx context.Context, viewer domain.Viewer, filter AnalyticsFilter) ([]analytics.TrendPoint, error) {
	today := s.opts.today()
	from := analytics.WeeklyWindowStart(today)
	records, err := s.records(ctx, viewer, filter, &from, "attendance_weekly_trend")
	if err != nil {
		return nil, err
	}
	return analytics.WeeklyTrend(records, today), nil
}

// MonthlyTrend covers the current month and the five before it.
func (s *AnalyticsService) MonthlyTrend(ctx context.Context, viewer domain.Viewer, filter AnalyticsFilter) ([]analytics.TrendPoint, error) {
	today := s.opts.today()
	from := analytics.MonthlyWindowStart(today)
	records, err := s.records(ctx, viewer, filter, &from, "attendance_monthly_trend")
	if err != nil {
		return nil, err
	}
	return analytics.MonthlyTrend(records, today), nil
}

// LowAttendanceAlerts lists pairs below the cutoff whose student is still on
// the course roster. Students cannot list alerts.
func (s *AnalyticsService) LowAttendanceAlerts(ctx context.Context, viewer domain.Viewer, filter AnalyticsFilter) ([]analytics.Alert, error) {
	if viewer.IsStudent() {
		return nil, ErrUnauthorized
	}
	records, err := s.records(ctx, viewer, filter, nil, "attendance_alerts")
	if err != nil {
		return nil, err
	}
	return s.enrolledOnly(ctx, analytics.LowAttendance(records))
}

// ScanLowAttendance evaluates alerts over the whole ledger and publishes them
// as one outbox event. It returns the number of pairs found.
func (s *AnalyticsService) ScanLowAttendance(ctx context.Context) (int, error) {
	var alerts []analytics.Alert
	err := s.opts.readTx(ctx, s.txManager, "attendance_scan", func(ctx context.Context, repos repository.TxRepositories) error {
		records, err := repos.Attendance.List(ctx, repository.AttendanceFilter{})
		if err != nil {
			return err
		}
		alerts = analytics.LowAttendance(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	alerts, err = s.enrolledOnly(ctx, alerts)
	if err != nil {
		return 0, err
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	pairs := make([]domain.LowAttendancePair, 0, len(alerts))
	for _, alert := range alerts {
		pairs = append(pairs, domain.LowAttendancePair{
			StudentID:  alert.StudentID.String(),
			CourseID:   alert.CourseID.String(),
			Percentage: alert.Percentage,
		})
	}
	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		return repos.Outbox.Insert(ctx, s.opts.stamp(domain.TimetableEvent{
			EventType: domain.EventLowAttendanceDetected,
			Payload: domain.LowAttendanceDetectedPayload{
				ScannedAt: s.opts.Clock().UTC().Format(time.RFC3339),
				Pairs:     pairs,
			},
		}))
	})
	if err != nil {
		return 0, err
	}
	s.opts.Logger.Info("low attendance detected", zap.Int("pairs", len(pairs)))
	return len(pairs), nil
}

func (s *AnalyticsService) records(ctx context.Context, viewer domain.Viewer, filter AnalyticsFilter, from *time.Time, op string) ([]domain.AttendanceRecord, error) {
	repoFilter := repository.AttendanceFilter{
		CourseID:  filter.CourseID,
		StudentID: filter.StudentID,
		From:      from,
	}
	switch viewer.Role {
	case domain.RoleAdministrator:
	case domain.RoleInstructor:
		id := viewer.ID
		repoFilter.MarkedBy = &id
	case domain.RoleStudent:
		if filter.StudentID != nil && *filter.StudentID != viewer.ID {
			return nil, ErrUnauthorized
		}
		id := viewer.ID
		repoFilter.StudentID = &id
	default:
		return nil, ErrUnauthorized
	}

	var records []domain.AttendanceRecord
	err := s.opts.readTx(ctx, s.txManager, op, func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		records, err = repos.Attendance.List(ctx, repoFilter)
		return err
	})
	return records, err
}

// enrolledOnly drops alerts for students no longer on the course roster.
func (s *AnalyticsService) enrolledOnly(ctx context.Context, alerts []analytics.Alert) ([]analytics.Alert, error) {
	rosters := make(map[uuid.UUID]map[uuid.UUID]bool)
	out := make([]analytics.Alert, 0, len(alerts))
	for _, alert := range alerts {
		roster, ok := rosters[alert.CourseID]
		if !ok {
			ids, err := s.enrollment.CourseStudents(ctx, alert.CourseID)
			if err != nil {
				return nil, err
			}
			roster = make(map[uuid.UUID]bool, len(ids))
			for _, id := range ids {
				roster[id] = true
			}
			rosters[alert.CourseID] = roster
		}
		if roster[alert.StudentID] {
			out = append(out, alert)
		}
	}
	return out, nil
}
