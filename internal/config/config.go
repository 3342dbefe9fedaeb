// Package config centralises configuration parsing for liftlog.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config captures runtime configuration values.
type Config struct {
	DataDir        string        `yaml:"data_dir"`
	DocumentPath   string        `yaml:"document_path"`
	StoreBackend   string        `yaml:"store"`
	SQLitePath     string        `yaml:"sqlite_path"`
	PostgresURL    string        `yaml:"postgres_url"`
	InstallationID string        `yaml:"installation_id"`
	SaveTimeout    time.Duration `yaml:"save_timeout"`
	LocationBuffer int           `yaml:"location_buffer"`

	HTTPAddress string `yaml:"http_address"`
	CORSOrigin  string `yaml:"cors_origin"`
	LogLevel    string `yaml:"log_level"`

	KafkaBrokers       []string      `yaml:"kafka_brokers"`
	OutboxTopic        string        `yaml:"outbox_topic"`
	SchemaRegistryURL  string        `yaml:"schema_registry_url"`
	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxRetries   int           `yaml:"outbox_max_retries"`
	OutboxBaseDelay    time.Duration `yaml:"outbox_base_delay"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DataDir:            defaultDataDir(),
		StoreBackend:       BackendFile,
		InstallationID:     "default",
		SaveTimeout:        10 * time.Second,
		LocationBuffer:     256,
		HTTPAddress:        "127.0.0.1:8080",
		CORSOrigin:         "http://localhost:5173",
		LogLevel:           "info",
		OutboxTopic:        "liftlog.sessions",
		OutboxPollInterval: 5 * time.Second,
		OutboxBatchSize:    50,
		OutboxMaxRetries:   5,
		OutboxBaseDelay:    time.Minute,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $LIFTLOG_CONFIG when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("LIFTLOG_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DataDir = getEnv("LIFTLOG_DATA_DIR", cfg.DataDir)
	cfg.DocumentPath = getEnv("LIFTLOG_DOCUMENT", cfg.DocumentPath)
	cfg.StoreBackend = strings.ToLower(getEnv("LIFTLOG_STORE", cfg.StoreBackend))
	cfg.SQLitePath = getEnv("LIFTLOG_SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresURL = getEnv("POSTGRES_URL", cfg.PostgresURL)
	cfg.InstallationID = getEnv("LIFTLOG_INSTALLATION_ID", cfg.InstallationID)
	cfg.SaveTimeout = getDurationEnv("SAVE_TIMEOUT", cfg.SaveTimeout)
	cfg.LocationBuffer = getIntEnv("LOCATION_BUFFER", cfg.LocationBuffer)
	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", cfg.HTTPAddress)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if brokers, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	cfg.OutboxTopic = getEnv("OUTBOX_TOPIC", cfg.OutboxTopic)
	cfg.SchemaRegistryURL = getEnv("SCHEMA_REGISTRY_URL", cfg.SchemaRegistryURL)
	cfg.OutboxPollInterval = getDurationEnv("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = getIntEnv("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = getIntEnv("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.OutboxBaseDelay = getDurationEnv("OUTBOX_BASE_DELAY", cfg.OutboxBaseDelay)

	if cfg.DocumentPath == "" {
		cfg.DocumentPath = filepath.Join(cfg.DataDir, "liftlog.json")
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "liftlog.db")
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("postgres store requires POSTGRES_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.StoreBackend))
	}
	if c.LocationBuffer <= 0 {
		errs = append(errs, errors.New("location buffer must be positive"))
	}
	if c.ExportEnabled() && c.OutboxTopic == "" {
		errs = append(errs, errors.New("outbox topic is required when kafka brokers are set"))
	}
	return errors.Join(errs...)
}

// ExportEnabled reports whether session events are exported to Kafka.
func (c Config) ExportEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "liftlog")
	}
	return ".liftlog"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
