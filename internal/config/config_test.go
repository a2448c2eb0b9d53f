package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR",
	"DATA_SOURCE", "DATA_CACHE_TTL", "DATA_FETCH_TIMEOUT", "DATA_WATCH", "DATA_REFRESH_CRON", "PM25_THRESHOLD",
	"DB_DRIVER", "DB_DSN", "SQLITE_PATH", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL",
	"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC",
}

// clearEnv resets every variable LoadFromEnv reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.DataSource != DefaultDataSource {
		t.Errorf("DataSource = %q, want %q", got.DataSource, DefaultDataSource)
	}
	if got.DataCacheTTL != 10*time.Minute {
		t.Errorf("DataCacheTTL = %v, want %v", got.DataCacheTTL, 10*time.Minute)
	}
	if got.DataFetchTimeout != 30*time.Second {
		t.Errorf("DataFetchTimeout = %v, want %v", got.DataFetchTimeout, 30*time.Second)
	}
	if !got.DataWatch {
		t.Errorf("DataWatch = false, want true")
	}
	if got.DataRefreshCron != "" {
		t.Errorf("DataRefreshCron = %q, want empty", got.DataRefreshCron)
	}
	if got.PM25Threshold != 150 {
		t.Errorf("PM25Threshold = %v, want 150", got.PM25Threshold)
	}
	if got.DBDriver != "sqlite3" {
		t.Errorf("DBDriver = %q, want %q", got.DBDriver, "sqlite3")
	}
	if got.SQLitePath != "data/airquality.db" {
		t.Errorf("SQLitePath = %q, want %q", got.SQLitePath, "data/airquality.db")
	}
	if got.DBMaxOpenConns != 1 || got.DBMaxIdleConns != 1 || got.DBConnMaxLifetime != 0 {
		t.Errorf("pool = %d/%d/%v, want 1/1/0s", got.DBMaxOpenConns, got.DBMaxIdleConns, got.DBConnMaxLifetime)
	}
	if got.DBLogSQL {
		t.Errorf("DBLogSQL = true, want false")
	}
	if got.MQTTEnabled() {
		t.Errorf("MQTTEnabled() = true, want false")
	}
	if got.MQTTPort != 1883 {
		t.Errorf("MQTTPort = %d, want 1883", got.MQTTPort)
	}
	if got.MQTTTopic != "airquality/rfm" {
		t.Errorf("MQTTTopic = %q, want %q", got.MQTTTopic, "airquality/rfm")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "  prod ")
	t.Setenv("DATA_SOURCE", " ./data/cleaned_data.csv ")
	t.Setenv("DATA_CACHE_TTL", "0s")
	t.Setenv("DATA_WATCH", "false")
	t.Setenv("DATA_REFRESH_CRON", "*/10 * * * *")
	t.Setenv("PM25_THRESHOLD", "75.5")
	t.Setenv("DB_LOG_SQL", "1")
	t.Setenv("MQTT_BROKER", "localhost")
	t.Setenv("MQTT_PORT", "1884")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.AppEnv != "prod" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "prod")
	}
	if got.DataSource != "./data/cleaned_data.csv" {
		t.Errorf("DataSource = %q", got.DataSource)
	}
	if got.DataCacheTTL != 0 {
		t.Errorf("DataCacheTTL = %v, want 0", got.DataCacheTTL)
	}
	if got.DataWatch {
		t.Errorf("DataWatch = true, want false")
	}
	if got.DataRefreshCron != "*/10 * * * *" {
		t.Errorf("DataRefreshCron = %q", got.DataRefreshCron)
	}
	if got.PM25Threshold != 75.5 {
		t.Errorf("PM25Threshold = %v, want 75.5", got.PM25Threshold)
	}
	if !got.DBLogSQL {
		t.Errorf("DBLogSQL = false, want true")
	}
	if !got.MQTTEnabled() || got.MQTTPort != 1884 {
		t.Errorf("MQTT = %v:%d, want enabled on 1884", got.MQTTBroker, got.MQTTPort)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"APP_ENV", "staging"},
		{"APP_ENV", "DEV"},
		{"LOG_LEVEL", "loud"},
		{"DATA_CACHE_TTL", "ten minutes"},
		{"DATA_CACHE_TTL", "-1m"},
		{"DATA_FETCH_TIMEOUT", "0s"},
		{"DATA_WATCH", "maybe"},
		{"DATA_REFRESH_CRON", "every hour"},
		{"PM25_THRESHOLD", "high"},
		{"PM25_THRESHOLD", "-5"},
		{"PM25_THRESHOLD", "NaN"},
		{"PM25_THRESHOLD", "Inf"},
		{"PM25_THRESHOLD", "-Infinity"},
		{"DB_MAX_OPEN_CONNS", "one"},
		{"DB_MAX_IDLE_CONNS", "1.5"},
		{"DB_CONN_MAX_LIFETIME", "forever"},
		{"DB_LOG_SQL", "yes please"},
		{"MQTT_PORT", "70000"},
		{"MQTT_PORT", "mqtt"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestLoadFromEnv_ZeroThreshold(t *testing.T) {
	clearEnv(t)
	t.Setenv("PM25_THRESHOLD", "0")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.PM25Threshold != 0 {
		t.Errorf("PM25Threshold = %v, want 0", got.PM25Threshold)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
