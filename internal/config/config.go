package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultDataSource is the cleaned three-station extract the dashboard was
// built around.
const DefaultDataSource = "https://raw.githubusercontent.com/intanfalah/beijing_3station_airquality/main/dashboard/cleaned_data.csv"

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	DataSource       string
	DataCacheTTL     time.Duration
	DataFetchTimeout time.Duration
	DataWatch        bool
	// DataRefreshCron is a standard 5-field cron spec; empty disables the
	// scheduled pre-warm.
	DataRefreshCron string
	PM25Threshold   float64

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBLogSQL          bool

	// MQTTBroker empty disables the RFM notifier.
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		DataSource:      env("DATA_SOURCE", DefaultDataSource),
		DataRefreshCron: env("DATA_REFRESH_CRON", ""),
		DBDriver:        env("DB_DRIVER", "sqlite3"),
		DBDSN:           env("DB_DSN", ""),
		SQLitePath:      env("SQLITE_PATH", "data/airquality.db"),
		MQTTBroker:      env("MQTT_BROKER", ""),
		MQTTClientID:    env("MQTT_CLIENT_ID", "airquality-server"),
		MQTTTopic:       env("MQTT_TOPIC", "airquality/rfm"),
	}

	if cfg.DataCacheTTL, err = envDuration("DATA_CACHE_TTL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.DataCacheTTL < 0 {
		return Config{}, fmt.Errorf("invalid DATA_CACHE_TTL %q: must not be negative", os.Getenv("DATA_CACHE_TTL"))
	}
	if cfg.DataFetchTimeout, err = envDuration("DATA_FETCH_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.DataFetchTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid DATA_FETCH_TIMEOUT %q: must be positive", os.Getenv("DATA_FETCH_TIMEOUT"))
	}
	if cfg.DataWatch, err = envBool("DATA_WATCH", "true"); err != nil {
		return Config{}, err
	}
	if cfg.DataRefreshCron != "" {
		if _, err := cron.ParseStandard(cfg.DataRefreshCron); err != nil {
			return Config{}, fmt.Errorf("invalid DATA_REFRESH_CRON %q: %w", cfg.DataRefreshCron, err)
		}
	}

	thresholdStr := env("PM25_THRESHOLD", "150")
	if cfg.PM25Threshold, err = parseThreshold(thresholdStr); err != nil {
		return Config{}, err
	}

	if cfg.DBMaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", "1"); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", "0s"); err != nil {
		return Config{}, err
	}
	if cfg.DBLogSQL, err = envBool("DB_LOG_SQL", "false"); err != nil {
		return Config{}, err
	}

	if cfg.MQTTPort, err = envInt("MQTT_PORT", "1883"); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort < 1 || cfg.MQTTPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d: must be 1-65535", cfg.MQTTPort)
	}

	return cfg, nil
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key, def string) (int, error) {
	s := env(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := env(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envBool(key, def string) (bool, error) {
	s := env(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

// parseThreshold accepts any finite, non-negative number. Zero counts every
// positive PM2.5 reading as a high-pollution event.
func parseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid PM25_THRESHOLD %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid PM25_THRESHOLD %q: must be a finite number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid PM25_THRESHOLD %q: must not be negative", s)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
