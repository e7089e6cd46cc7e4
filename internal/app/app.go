package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	transport "service-schedule/internal/http"
	"service-schedule/internal/http/handlers"
	"service-schedule/internal/metrics"
	"service-schedule/internal/repository"
	"service-schedule/internal/service"
)

type Config struct {
	IdentityBaseURL   string
	EnrollmentBaseURL string
	RequestTimeout    time.Duration
	Location          *time.Location
	ScheduleDays      []domain.Weekday
	Breaks            []domain.BreakTemplate
	ReadRetry         service.RetryPolicy
	// AlertScanSchedule is a cron spec; empty disables the scan.
	AlertScanSchedule string
}

type App struct {
	handler   http.Handler
	analytics *service.AnalyticsService
	cron      *cron.Cron
	log       *zap.Logger
}

func New(db *sql.DB, cfg Config, log *zap.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "timetable"),
	)
	return build(repository.NewPostgresTxManager(db), registry, cfg, log)
}

func build(txManager repository.TxManager, registry *prometheus.Registry, cfg Config, log *zap.Logger) (*App, error) {
	httpClient := service.DefaultIdentityHTTPClient()
	identityClient := service.NewIdentityHTTPClient(cfg.IdentityBaseURL, httpClient)
	enrollmentClient := service.NewEnrollmentHTTPClient(cfg.EnrollmentBaseURL, httpClient)

	m := metrics.New(registry)
	opts := service.Options{
		Logger:    log,
		Metrics:   m,
		ReadRetry: cfg.ReadRetry,
		Location:  cfg.Location,
	}
	breaks := service.BreakSettings{Templates: cfg.Breaks, DefaultDays: cfg.ScheduleDays}

	scheduleService := service.NewScheduleService(txManager, enrollmentClient, breaks, opts)
	attendanceService := service.NewAttendanceService(txManager, enrollmentClient, opts)
	analyticsService := service.NewAnalyticsService(txManager, enrollmentClient, opts)

	router := transport.NewRouter(transport.RouterConfig{
		Logger:         log,
		Metrics:        m,
		Gatherer:       registry,
		RequestTimeout: cfg.RequestTimeout,
		Auth:           handlers.NewAuthenticator(identityClient, log),
		Schedule:       handlers.NewScheduleHandler(scheduleService, log),
		Attendance:     handlers.NewAttendanceHandler(attendanceService, log),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService, log),
	})

	a := &App{
		handler:   router.Handler(),
		analytics: analyticsService,
		log:       log,
	}
	if cfg.AlertScanSchedule != "" {
		location := cfg.Location
		if location == nil {
			location = time.Local
		}
		a.cron = cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		)
		if _, err := a.cron.AddFunc(cfg.AlertScanSchedule, a.scanLowAttendance); err != nil {
			return nil, errors.Wrapf(err, "schedule alert scan %q", cfg.AlertScanSchedule)
		}
	}
	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Start launches the background jobs. Stop waits for a running job to end.
func (a *App) Start() {
	if a.cron != nil {
		a.cron.Start()
	}
}

func (a *App) Stop(ctx context.Context) {
	if a.cron == nil {
		return
	}
	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// ScanLowAttendance runs one low-attendance scan.
func (a *App) ScanLowAttendance(ctx context.Context) (int, error) {
	return a.analytics.ScanLowAttendance(ctx)
}

func (a *App) scanLowAttendance() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pairs, err := a.ScanLowAttendance(ctx)
	if err != nil {
		a.log.Error("low attendance scan failed", zap.Error(err))
		return
	}
	a.log.Info("low attendance scan finished", zap.Int("pairs", pairs))
}
