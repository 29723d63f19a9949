package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Resolve ResolveConfig `yaml:"resolve" mapstructure:"resolve"`
	Link    LinkConfig    `yaml:"link" mapstructure:"link"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the registry database holding contractors, links
// and the pass log.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourcesConfig configures the upstream systems.
type SourcesConfig struct {
	Flood    FloodConfig    `yaml:"flood" mapstructure:"flood"`
	DIME     DatabaseConfig `yaml:"dime" mapstructure:"dime"`
	PhilGEPS DatabaseConfig `yaml:"philgeps" mapstructure:"philgeps"`
	SEC      SECConfig      `yaml:"sec" mapstructure:"sec"`
}

// FloodConfig configures the flood-control search index.
type FloodConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Index         string  `yaml:"index" mapstructure:"index"`
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	PageSize      int     `yaml:"page_size" mapstructure:"page_size"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DatabaseConfig holds a source database DSN.
type DatabaseConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SECConfig points at saved registry search pages.
type SECConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ResolveConfig configures name matching.
type ResolveConfig struct {
	Threshold         float64 `yaml:"threshold" mapstructure:"threshold"`
	VerifyThreshold   float64 `yaml:"verify_threshold" mapstructure:"verify_threshold"`
	Policy            string  `yaml:"policy" mapstructure:"policy"`
	MinFragmentLength int     `yaml:"min_fragment_length" mapstructure:"min_fragment_length"`
	VocabularyFile    string  `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
}

// LinkConfig configures contract to project linking.
type LinkConfig struct {
	AmountTolerance float64       `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	AmountGate      float64       `yaml:"amount_gate" mapstructure:"amount_gate"`
	ContractorFloor float64       `yaml:"contractor_floor" mapstructure:"contractor_floor"`
	RegionScore     float64       `yaml:"region_score" mapstructure:"region_score"`
	AcceptAt        float64       `yaml:"accept_at" mapstructure:"accept_at"`
	ChunkSize       int           `yaml:"chunk_size" mapstructure:"chunk_size"`
	Weights         WeightsConfig `yaml:"weights" mapstructure:"weights"`
}

// WeightsConfig holds the confidence weights. They must sum to 1.
type WeightsConfig struct {
	Location   float64 `yaml:"location" mapstructure:"location"`
	Amount     float64 `yaml:"amount" mapstructure:"amount"`
	Contractor float64 `yaml:"contractor" mapstructure:"contractor"`
}

// RetryConfig configures retries of transient failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the circuit breaker on the search index client.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROCURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("sources.flood.base_url", "http://localhost:7700")
	v.SetDefault("sources.flood.index", "bettergov_flood_control")
	v.SetDefault("sources.flood.api_key", "")
	v.SetDefault("sources.flood.page_size", 1000)
	v.SetDefault("sources.flood.rate_per_second", 5.0)
	v.SetDefault("sources.flood.timeout_secs", 30)
	v.SetDefault("sources.dime.database_url", "")
	v.SetDefault("sources.philgeps.database_url", "")
	v.SetDefault("sources.sec.dir", "sec_results")
	v.SetDefault("resolve.threshold", 0.85)
	v.SetDefault("resolve.verify_threshold", 0.90)
	v.SetDefault("resolve.policy", "first")
	v.SetDefault("resolve.min_fragment_length", 10)
	v.SetDefault("resolve.vocabulary_file", "")
	v.SetDefault("link.amount_tolerance", 0.05)
	v.SetDefault("link.amount_gate", 0.8)
	v.SetDefault("link.contractor_floor", 0.6)
	v.SetDefault("link.region_score", 0.7)
	v.SetDefault("link.accept_at", 70.0)
	v.SetDefault("link.chunk_size", 500)
	v.SetDefault("link.weights.location", 0.4)
	v.SetDefault("link.weights.amount", 0.5)
	v.SetDefault("link.weights.contractor", 0.1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 200)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings a command mode needs: "sync", "verify",
// "link" or "status". Matching parameters are checked in every mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "sync", "verify", "status", "audit":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "link":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Sources.PhilGEPS.DatabaseURL == "" {
			errs = append(errs, "sources.philgeps.database_url is required")
		}
		if c.Sources.Flood.BaseURL == "" {
			errs = append(errs, "sources.flood.base_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	unit := []struct {
		key string
		val float64
	}{
		{"resolve.threshold", c.Resolve.Threshold},
		{"resolve.verify_threshold", c.Resolve.VerifyThreshold},
		{"link.amount_gate", c.Link.AmountGate},
		{"link.contractor_floor", c.Link.ContractorFloor},
		{"link.region_score", c.Link.RegionScore},
	}
	for _, u := range unit {
		if u.val <= 0 || u.val > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in (0, 1], got %v", u.key, u.val))
		}
	}
	if c.Link.AmountTolerance <= 0 || c.Link.AmountTolerance >= 1 {
		errs = append(errs, fmt.Sprintf("link.amount_tolerance must be in (0, 1), got %v", c.Link.AmountTolerance))
	}
	if c.Link.AcceptAt <= 0 || c.Link.AcceptAt > 100 {
		errs = append(errs, fmt.Sprintf("link.accept_at must be in (0, 100], got %v", c.Link.AcceptAt))
	}
	w := c.Link.Weights
	if w.Location < 0 || w.Amount < 0 || w.Contractor < 0 {
		errs = append(errs, "link.weights values must be >= 0")
	} else if sum := w.Location + w.Amount + w.Contractor; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Sprintf("link.weights must sum to 1, got %v", sum))
	}
	if c.Resolve.Policy != "first" && c.Resolve.Policy != "best" {
		errs = append(errs, fmt.Sprintf("resolve.policy must be first or best, got %q", c.Resolve.Policy))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// loadDotEnv exports the variables of path into the process environment.
// Variables already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
