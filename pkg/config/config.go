package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabasePath is the default SQLite database path.
	DefaultDatabasePath = "flakeguard.db"

	// DefaultMinRuns is the minimum sample size before a test can be
	// considered flaky.
	DefaultMinRuns = 3

	// DefaultCostPerRunUSD is the default CI spend attributed to one
	// wasted run.
	DefaultCostPerRunUSD = 0.08

	// DefaultRerunMultiplier models the average number of CI re-runs a
	// single flip triggers.
	DefaultRerunMultiplier = 1.0

	// DefaultTrendWindowDays is the default trend analysis window.
	DefaultTrendWindowDays = 30

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"
)

// Config is the root configuration for flakeguard.
type Config struct {
	Global     GlobalConfig     `yaml:"global" mapstructure:"global"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Cost       CostConfig       `yaml:"cost" mapstructure:"cost"`
	Quarantine QuarantineConfig `yaml:"quarantine" mapstructure:"quarantine"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Upload     UploadConfig     `yaml:"upload" mapstructure:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// AnalysisConfig contains flip-rate analysis and classifier settings.
type AnalysisConfig struct {
	// MinRuns is the minimum number of non-skipped observations a test
	// needs before it can be flagged as flaky.
	MinRuns int `yaml:"min_runs" mapstructure:"min_runs"`

	// FloatEpsilon is the near-equality threshold for classifying
	// float-precision failures.
	FloatEpsilon float64 `yaml:"float_epsilon,omitempty" mapstructure:"float_epsilon"`

	// TightVarianceRatio is the relative pass/fail duration variance
	// below which a textless intermittent failure reads as a race.
	TightVarianceRatio float64 `yaml:"tight_variance_ratio,omitempty" mapstructure:"tight_variance_ratio"`

	// CoarseVarianceRatio is the relative duration variance above which
	// a failure reads as timing-sensitive.
	CoarseVarianceRatio float64 `yaml:"coarse_variance_ratio,omitempty" mapstructure:"coarse_variance_ratio"`

	// TrendWindowDays is the window for trend analysis.
	TrendWindowDays int `yaml:"trend_window_days,omitempty" mapstructure:"trend_window_days"`
}

// CostConfig contains CI cost attribution settings.
type CostConfig struct {
	CostPerRunUSD   float64 `yaml:"cost_per_run_usd" mapstructure:"cost_per_run_usd"`
	RerunMultiplier float64 `yaml:"rerun_multiplier" mapstructure:"rerun_multiplier"`
}

// QuarantineConfig contains quarantine selection policy settings.
type QuarantineConfig struct {
	// MinFlipRate is an optional flip-rate floor on top of the flaky
	// predicate. Zero disables the floor.
	MinFlipRate float64 `yaml:"min_flip_rate,omitempty" mapstructure:"min_flip_rate"`

	// MinCostUSD is an optional estimated-cost floor. Zero disables it.
	MinCostUSD float64 `yaml:"min_cost_usd,omitempty" mapstructure:"min_cost_usd"`
}

// ServerConfig contains HTTP API server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// UploadConfig contains report upload settings.
type UploadConfig struct {
	S3 *S3UploadConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3UploadConfig contains S3-compatible storage settings for uploading
// generated reports.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// Load reads configuration from an optional YAML file with
// FLAKEGUARD_-prefixed environment variable overrides. A missing path
// yields a default configuration.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("FLAKEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every key so environment variable
// overrides bind even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultDatabasePath)
	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.ssl_mode", "disable")

	v.SetDefault("analysis.min_runs", DefaultMinRuns)
	v.SetDefault("analysis.float_epsilon", 0.0)
	v.SetDefault("analysis.tight_variance_ratio", 0.0)
	v.SetDefault("analysis.coarse_variance_ratio", 0.0)
	v.SetDefault("analysis.trend_window_days", DefaultTrendWindowDays)

	v.SetDefault("cost.cost_per_run_usd", DefaultCostPerRunUSD)
	v.SetDefault("cost.rerun_multiplier", DefaultRerunMultiplier)

	v.SetDefault("quarantine.min_flip_rate", 0.0)
	v.SetDefault("quarantine.min_cost_usd", 0.0)

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.requests_per_minute", 120)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres driver")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q (use \"sqlite\" or \"postgres\")", c.Database.Driver)
	}

	if c.Analysis.MinRuns < 1 {
		return fmt.Errorf("analysis.min_runs must be at least 1")
	}

	if c.Cost.CostPerRunUSD < 0 {
		return fmt.Errorf("cost.cost_per_run_usd must not be negative")
	}

	if c.Cost.RerunMultiplier < 0 {
		return fmt.Errorf("cost.rerun_multiplier must not be negative")
	}

	if c.Quarantine.MinFlipRate < 0 || c.Quarantine.MinFlipRate > 1 {
		return fmt.Errorf("quarantine.min_flip_rate must be in [0, 1]")
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must be positive when enabled")
	}

	if c.Upload.S3 != nil && c.Upload.S3.Enabled && c.Upload.S3.Bucket == "" {
		return fmt.Errorf("upload.s3.bucket is required when S3 upload is enabled")
	}

	return nil
}
