// Package config loads tablesage configuration.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for tablesage.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (API keys, database passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Reasoner ReasonerConfig `yaml:"reasoner"`
	Store    StoreConfig    `yaml:"store"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ReasonerConfig selects and configures the completion provider.
type ReasonerConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"REASONER_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"REASONER_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"REASONER_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"REASONER_API_KEY"` // Secret - not in YAML
}

// StoreConfig selects the tabular backend.
type StoreConfig struct {
	// Type is "postgres" or "sqlite".
	Type string `yaml:"type" env:"STORE_TYPE" env-default:"sqlite"`
	// Table is the table queries run against.
	Table string `yaml:"table" env:"STORE_TABLE" env-default:"dataset"`

	// Postgres connection. Password comes from the environment only.
	PostgresURL string `yaml:"-" env:"STORE_POSTGRES_URL"`

	// SQLite database file path.
	SQLitePath string `yaml:"sqlite_path" env:"STORE_SQLITE_PATH" env-default:"tablesage.db"`
}

// AnalysisConfig carries run tuning.
type AnalysisConfig struct {
	BatchSize          int `yaml:"batch_size" env:"ANALYSIS_BATCH_SIZE" env-default:"10"`
	HybridThreshold    int `yaml:"hybrid_threshold" env:"ANALYSIS_HYBRID_THRESHOLD" env-default:"100"`
	MaxResultRows      int `yaml:"max_result_rows" env:"ANALYSIS_MAX_RESULT_ROWS" env-default:"1000"`
	InsightSampleRows  int `yaml:"insight_sample_rows" env:"ANALYSIS_INSIGHT_SAMPLE_ROWS" env-default:"20"`
	HolisticPauseMs    int `yaml:"holistic_pause_ms" env:"ANALYSIS_HOLISTIC_PAUSE_MS" env-default:"200"`
	ColumnAwarePauseMs int `yaml:"column_aware_pause_ms" env:"ANALYSIS_COLUMN_AWARE_PAUSE_MS" env-default:"300"`
	BatchPauseMs       int `yaml:"batch_pause_ms" env:"ANALYSIS_BATCH_PAUSE_MS" env-default:"1000"`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. When the file does not exist, configuration comes
// from the environment alone.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Reasoner.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown reasoner provider %q (want openai or anthropic)", c.Reasoner.Provider)
	}
	if c.Reasoner.Model == "" {
		return fmt.Errorf("reasoner model is required")
	}

	switch c.Store.Type {
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("STORE_POSTGRES_URL is required for the postgres store")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store type %q (want postgres or sqlite)", c.Store.Type)
	}

	return nil
}
