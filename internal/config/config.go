// Package config holds the application configuration for Tasknest
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration
type Config struct {
	Logging  LoggingConfig
	Database DatabaseConfig
	Server   ServerConfig
	Sync     SyncConfig
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	AddSource  bool
	TimeFormat string
}

// DatabaseConfig configures the local SQLite cache
type DatabaseConfig struct {
	Path            string
	BusyTimeout     int
	JournalMode     string
	SynchronousMode string
	CacheSize       int
	ForeignKeys     bool
	ConnMaxLife     time.Duration
}

// ServerConfig configures the remote sync server connection
type ServerConfig struct {
	URL               string
	Token             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// SyncConfig configures the sync coordinator and connectivity monitor
type SyncConfig struct {
	Interval      time.Duration
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	DeviceName    string
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			TimeFormat: time.RFC3339,
		},
		Database: DatabaseConfig{
			BusyTimeout:     5000,
			JournalMode:     "WAL",
			SynchronousMode: "NORMAL",
			ForeignKeys:     true,
			ConnMaxLife:     time.Hour,
		},
		Server: ServerConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerMinute: 120,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			ProbeInterval: 30 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
	}
}

// ParseLogLevel converts a level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
