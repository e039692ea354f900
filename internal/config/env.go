package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goombaio/namegenerator"
	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables, optionally
// seeded from a .env file in the config directory or the working
// directory. An empty configDir means ~/.tasknest.
func LoadFromEnv(configDir string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".tasknest")
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg.Database.Path = filepath.Join(configDir, "tasknest.db")

	// Seed the environment from a .env file if one is present; real
	// environment variables still win.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil {
		_ = godotenv.Load()
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("TASKNEST_LOG_LEVEL", cfg.Logging.Level),
		Format:     getEnvString("TASKNEST_LOG_FORMAT", cfg.Logging.Format),
		Output:     getEnvString("TASKNEST_LOG_OUTPUT", filepath.Join(configDir, "tasknest.log")),
		AddSource:  getEnvBool("TASKNEST_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("TASKNEST_LOG_TIME_FORMAT", cfg.Logging.TimeFormat),
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("TASKNEST_DB_PATH", cfg.Database.Path),
		BusyTimeout:     getEnvInt("TASKNEST_DB_BUSY_TIMEOUT", cfg.Database.BusyTimeout),
		JournalMode:     getEnvString("TASKNEST_DB_JOURNAL_MODE", cfg.Database.JournalMode),
		SynchronousMode: getEnvString("TASKNEST_DB_SYNCHRONOUS", cfg.Database.SynchronousMode),
		CacheSize:       getEnvInt("TASKNEST_DB_CACHE_SIZE", cfg.Database.CacheSize),
		ForeignKeys:     getEnvBool("TASKNEST_DB_FOREIGN_KEYS", cfg.Database.ForeignKeys),
		ConnMaxLife:     getEnvDuration("TASKNEST_DB_CONN_MAX_LIFE", cfg.Database.ConnMaxLife),
	}

	cfg.Server = ServerConfig{
		URL:               getEnvString("TASKNEST_SERVER_URL", ""),
		Token:             getEnvString("TASKNEST_SERVER_TOKEN", ""),
		Timeout:           getEnvDuration("TASKNEST_SERVER_TIMEOUT", cfg.Server.Timeout),
		MaxRetries:        getEnvInt("TASKNEST_SERVER_MAX_RETRIES", cfg.Server.MaxRetries),
		RequestsPerMinute: getEnvInt("TASKNEST_SERVER_RPM", cfg.Server.RequestsPerMinute),
	}

	cfg.Sync = SyncConfig{
		Interval:      getEnvDuration("TASKNEST_SYNC_INTERVAL", cfg.Sync.Interval),
		ProbeURL:      getEnvString("TASKNEST_SYNC_PROBE_URL", ""),
		ProbeInterval: getEnvDuration("TASKNEST_SYNC_PROBE_INTERVAL", cfg.Sync.ProbeInterval),
		ProbeTimeout:  getEnvDuration("TASKNEST_SYNC_PROBE_TIMEOUT", cfg.Sync.ProbeTimeout),
		DeviceName:    getEnvString("TASKNEST_DEVICE_NAME", ""),
	}

	if cfg.Sync.ProbeURL == "" && cfg.Server.URL != "" {
		cfg.Sync.ProbeURL = cfg.Server.URL + "/api/health"
	}
	if cfg.Sync.DeviceName == "" {
		cfg.Sync.DeviceName = defaultDeviceName()
	}

	return cfg, nil
}

// defaultDeviceName generates a memorable name for this device, used to
// identify the client in server logs.
func defaultDeviceName() string {
	gen := namegenerator.NewNameGenerator(time.Now().UnixNano())
	return gen.Generate()
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
