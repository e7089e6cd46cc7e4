package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"service-schedule/internal/domain"
)

const scanDisabled = "off"

const defaultBreaks = `[
	{"name": "Breakfast Break", "start_time": "10:00", "end_time": "10:20"},
	{"name": "Lunch Break", "start_time": "13:00", "end_time": "14:00"}
]`

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	LogLevel          string
	IdentityBaseURL   string
	EnrollmentBaseURL string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	RequestTimeout    time.Duration
	Location          *time.Location
	ScheduleDays      []domain.Weekday
	Breaks            []domain.BreakTemplate
	ReadRetryAttempts int
	ReadRetryBackoff  time.Duration
	AlertScanSchedule string
}

// newViper reads the optional dotenv file named by ENV_FILE (default .env)
// into the process environment and returns a viper bound to it.
func newViper() (*viper.Viper, error) {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return nil, &configError{message: "load " + path + ": " + err.Error()}
		}
	} else if !os.IsNotExist(err) {
		return nil, &configError{message: "stat " + path + ": " + err.Error()}
	}

	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_max_open_conns", "10")
	v.SetDefault("db_max_idle_conns", "5")
	v.SetDefault("db_conn_max_lifetime", "30m")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("timezone", "Local")
	v.SetDefault("schedule_days", "monday,tuesday,wednesday,thursday,friday")
	v.SetDefault("breaks", defaultBreaks)
	v.SetDefault("read_retry_attempts", "3")
	v.SetDefault("read_retry_backoff", "50ms")
	v.SetDefault("alert_scan_schedule", "@daily")
	v.AutomaticEnv()
	return v, nil
}

func loadConfig(v *viper.Viper) (config, error) {
	var cfg config

	var err error
	if cfg.DatabaseURL, err = getRequired(v, "database_url"); err != nil {
		return cfg, err
	}
	if cfg.IdentityBaseURL, err = getRequired(v, "identity_base_url"); err != nil {
		return cfg, err
	}
	if cfg.EnrollmentBaseURL, err = getRequired(v, "enrollment_base_url"); err != nil {
		return cfg, err
	}
	cfg.HTTPAddr = v.GetString("http_addr")
	cfg.LogLevel = v.GetString("log_level")
	cfg.AlertScanSchedule = alertScanSchedule(v)

	if cfg.DBMaxOpenConns, err = getInt(v, "db_max_open_conns"); err != nil {
		return cfg, err
	}
	if cfg.DBMaxIdleConns, err = getInt(v, "db_max_idle_conns"); err != nil {
		return cfg, err
	}
	if cfg.DBConnMaxLifetime, err = getDuration(v, "db_conn_max_lifetime"); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = getDuration(v, "request_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ReadRetryAttempts, err = getInt(v, "read_retry_attempts"); err != nil {
		return cfg, err
	}
	if cfg.ReadRetryAttempts < 1 {
		return cfg, &configError{message: "READ_RETRY_ATTEMPTS must be at least 1"}
	}
	if cfg.ReadRetryBackoff, err = getDuration(v, "read_retry_backoff"); err != nil {
		return cfg, err
	}

	if cfg.Location, err = time.LoadLocation(v.GetString("timezone")); err != nil {
		return cfg, &configError{message: "invalid TIMEZONE: " + err.Error()}
	}
	if cfg.ScheduleDays, err = parseDays(v.GetString("schedule_days")); err != nil {
		return cfg, err
	}
	if cfg.Breaks, err = parseBreaks(v.GetString("breaks")); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// alertScanSchedule returns the cron spec for the low-attendance scan, or ""
// when ALERT_SCAN_SCHEDULE is "off".
func alertScanSchedule(v *viper.Viper) string {
	value := strings.TrimSpace(v.GetString("alert_scan_schedule"))
	if strings.EqualFold(value, scanDisabled) {
		return ""
	}
	return value
}

func getRequired(v *viper.Viper, key string) (string, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return "", &configError{message: "missing required environment variable: " + strings.ToUpper(key)}
	}
	return value, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, &configError{message: "invalid int for " + strings.ToUpper(key) + ": " + err.Error()}
	}
	return parsed, nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, &configError{message: "invalid duration for " + strings.ToUpper(key) + ": " + err.Error()}
	}
	return parsed, nil
}

func parseDays(value string) ([]domain.Weekday, error) {
	var days []domain.Weekday
	for _, name := range strings.Split(value, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		day, err := domain.ParseWeekday(name)
		if err != nil {
			return nil, &configError{message: "invalid SCHEDULE_DAYS: " + err.Error()}
		}
		days = append(days, day)
	}
	return days, nil
}

func parseBreaks(value string) ([]domain.BreakTemplate, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var breaks []domain.BreakTemplate
	if err := json.Unmarshal([]byte(value), &breaks); err != nil {
		return nil, &configError{message: "invalid BREAKS: " + err.Error()}
	}
	for _, b := range breaks {
		if b.Name == "" || !b.StartTime.Valid() || !b.EndTime.Valid() || b.StartTime >= b.EndTime {
			return nil, &configError{message: "invalid BREAKS entry " + strconv.Quote(b.Name)}
		}
	}
	return breaks, nil
}

type configError struct {
	message string
}

func (e *configError) Error() string {
	return e.message
}

var _ error = (*configError)(nil)
