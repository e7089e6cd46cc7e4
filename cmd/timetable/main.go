package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"service-schedule/internal/app"
	"service-schedule/internal/service"
	servicemigrations "service-schedule/migrations"
)

func main() {
	v, err := newViper()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	config, err := loadConfig(v)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("config loaded",
		zap.String("http_addr", config.HTTPAddr),
		zap.String("identity_base_url", config.IdentityBaseURL),
		zap.String("enrollment_base_url", config.EnrollmentBaseURL),
		zap.Int("db_max_open", config.DBMaxOpenConns),
		zap.Int("db_max_idle", config.DBMaxIdleConns),
		zap.Duration("db_conn_max_lifetime", config.DBConnMaxLifetime),
		zap.Duration("request_timeout", config.RequestTimeout),
		zap.String("timezone", config.Location.String()),
		zap.String("alert_scan_schedule", config.AlertScanSchedule),
	)

	db, err := sql.Open("pgx", config.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()
	if err := db.PingContext(startupCtx); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	logger.Debug("database connection successful")

	if err := servicemigrations.Up(startupCtx, db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	cancelStartup()

	application, err := app.New(db, app.Config{
		IdentityBaseURL:   config.IdentityBaseURL,
		EnrollmentBaseURL: config.EnrollmentBaseURL,
		RequestTimeout:    config.RequestTimeout,
		Location:          config.Location,
		ScheduleDays:      config.ScheduleDays,
		Breaks:            config.Breaks,
		ReadRetry: service.RetryPolicy{
			Attempts: config.ReadRetryAttempts,
			Backoff:  config.ReadRetryBackoff,
		},
		AlertScanSchedule: config.AlertScanSchedule,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.Start()

	server := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
		application.Stop(ctx)
	}()

	logger.Info("service-schedule listening", zap.String("addr", config.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server error", zap.Error(err))
	}
	<-stopped
}

func newLogger(level string) (*zap.Logger, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if level != "" {
		if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build(zap.Fields(zap.String("service", "service-schedule")), zap.WithCaller(true), zap.AddStacktrace(zap.ErrorLevel))
}
