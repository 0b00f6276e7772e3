// Package config loads application configuration from environment variables,
// with an optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8085" yaml:"listen_addr"`
	APIKey      string `envconfig:"API_KEY" yaml:"api_key"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" yaml:"cors_origins"`

	// Storage
	SessionsDB   string `envconfig:"SESSIONS_DB" default:"contextd.db" yaml:"sessions_db"`
	SnapshotsDir string `envconfig:"SNAPSHOTS_DIR" default:"snapshots" yaml:"snapshots_dir"`

	// Health analysis
	TokenPenaltyDivisor int           `envconfig:"TOKEN_PENALTY_DIVISOR" default:"10000" yaml:"token_penalty_divisor"`
	FreshnessWindow     time.Duration `envconfig:"FRESHNESS_WINDOW" default:"10m" yaml:"freshness_window"`

	// Drift detection
	DriftThreshold float64 `envconfig:"DRIFT_THRESHOLD" default:"0.7" yaml:"drift_threshold"`
	DriftWindow    int     `envconfig:"DRIFT_WINDOW" default:"5" yaml:"drift_window"`

	// Embeddings (optional — enables the embedding drift strategy)
	EmbeddingsEndpoint string `envconfig:"EMBEDDINGS_ENDPOINT" yaml:"embeddings_endpoint"`
	EmbeddingsAPIKey   string `envconfig:"EMBEDDINGS_API_KEY" yaml:"embeddings_api_key"`
	EmbeddingsModel    string `envconfig:"EMBEDDINGS_MODEL" default:"nomic-embed-text" yaml:"embeddings_model"`

	// Compaction
	KeepRecentEvents int `envconfig:"KEEP_RECENT_EVENTS" default:"20" yaml:"keep_recent_events"`
	CompactThreshold int `envconfig:"COMPACT_THRESHOLD" default:"100" yaml:"compact_threshold"`

	// Auto-monitor
	AutoCompactThreshold int           `envconfig:"AUTO_COMPACT_THRESHOLD" default:"100" yaml:"auto_compact_threshold"`
	HealthCheckInterval  time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"60s" yaml:"health_check_interval"`

	// Trimming
	TrimThreshold int `envconfig:"TRIM_THRESHOLD" default:"2000" yaml:"trim_threshold"`
}

// EmbeddingsEnabled reports whether the embedding drift strategy can run.
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbeddingsEndpoint != ""
}

// Load reads configuration from CONTEXTD_-prefixed environment variables.
// When CONTEXTD_CONFIG_FILE is set, the YAML file is applied on top: keys
// present in the file override the environment.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CONTEXTD", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if path := os.Getenv("CONTEXTD_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
