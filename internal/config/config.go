// Package config provides environment-based configuration management
// Values come from the process environment, optionally seeded from a .env file
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Enabled reports whether MariaDB persistence is configured
func (c *DBConfig) Enabled() bool {
	return c.Password != ""
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Addr string // Format: host:port
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port          int
	PublicBaseURL string // Externally reachable base URL, used for webhook and file URLs
	LogLevel      slog.Level
	EventsSecret  string // Secret for the live events websocket
}

// StorageConfig selects where downloaded media is kept
type StorageConfig struct {
	Backend string // bolt | redis
	Path    string // bbolt database file
}

// WatchdogConfig controls audit log retention
type WatchdogConfig struct {
	IntervalMinutes int
	RetentionDays   int
	DiskThreshold   float64 // Used percent that triggers a purge
}

// Config aggregates all configuration sections
type Config struct {
	DB          DBConfig
	Redis       RedisConfig
	App         AppConfig
	Storage     StorageConfig
	Watchdog    WatchdogConfig
	ActionsFile string
}

// LoadConfig reads configuration from environment variables
// Returns error if a value is present but invalid
func LoadConfig() (*Config, error) {
	// Missing .env is fine in containers
	_ = godotenv.Load()

	cfg := &Config{}

	// Database Configuration (optional)
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "facebook_action")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")

	// Application Configuration
	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.App.Port)), "/")
	cfg.App.EventsSecret = getEnv("EVENTS_SECRET", "")

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.App.LogLevel = level

	// Media storage
	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", "bolt"))
	cfg.Storage.Path = getEnv("STORAGE_PATH", "media.db")
	if cfg.Storage.Backend != "bolt" && cfg.Storage.Backend != "redis" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be bolt or redis, got %q", cfg.Storage.Backend)
	}

	cfg.Watchdog.IntervalMinutes = getEnvAsInt("WATCHDOG_INTERVAL_MIN", 10)
	cfg.Watchdog.RetentionDays = getEnvAsInt("LOG_RETENTION_DAYS", 7)
	cfg.Watchdog.DiskThreshold = float64(getEnvAsInt("DISK_PURGE_THRESHOLD", 70))

	cfg.ActionsFile = getEnv("ACTIONS_FILE", "actions.yaml")

	return cfg, nil
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
