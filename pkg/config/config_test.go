package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.SQLite.Path)
	assert.Equal(t, DefaultMinRuns, cfg.Analysis.MinRuns)
	assert.Equal(t, DefaultTrendWindowDays, cfg.Analysis.TrendWindowDays)
	assert.InDelta(t, DefaultCostPerRunUSD, cfg.Cost.CostPerRunUSD, 1e-9)
	assert.InDelta(t, DefaultRerunMultiplier, cfg.Cost.RerunMultiplier, 1e-9)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.False(t, cfg.Server.RateLimit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	content := `
global:
  log_level: debug
database:
  driver: sqlite
  sqlite:
    path: /tmp/results.db
analysis:
  min_runs: 5
cost:
  cost_per_run_usd: 0.50
  rerun_multiplier: 2.0
quarantine:
  min_flip_rate: 0.3
server:
  listen: ":9090"
  rate_limit:
    enabled: true
    requests_per_minute: 60
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/results.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 5, cfg.Analysis.MinRuns)
	assert.InDelta(t, 0.5, cfg.Cost.CostPerRunUSD, 1e-9)
	assert.InDelta(t, 2.0, cfg.Cost.RerunMultiplier, 1e-9)
	assert.InDelta(t, 0.3, cfg.Quarantine.MinFlipRate, 1e-9)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.Server.RateLimit.RequestsPerMinute)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLAKEGUARD_GLOBAL_LOG_LEVEL", "warn")
	t.Setenv("FLAKEGUARD_DATABASE_SQLITE_PATH", "/tmp/env.db")
	t.Setenv("FLAKEGUARD_ANALYSIS_MIN_RUNS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/env.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 7, cfg.Analysis.MinRuns)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.SQLite.Path = ""
			},
			wantErr: "database.sqlite.path",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.Postgres.Database = "flakeguard"
			},
			wantErr: "database.postgres.host",
		},
		{
			name:    "min_runs below one",
			mutate:  func(c *Config) { c.Analysis.MinRuns = 0 },
			wantErr: "analysis.min_runs",
		},
		{
			name:    "negative cost",
			mutate:  func(c *Config) { c.Cost.CostPerRunUSD = -1 },
			wantErr: "cost.cost_per_run_usd",
		},
		{
			name:    "flip rate above one",
			mutate:  func(c *Config) { c.Quarantine.MinFlipRate = 1.5 },
			wantErr: "quarantine.min_flip_rate",
		},
		{
			name: "rate limit enabled without budget",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RequestsPerMinute = 0
			},
			wantErr: "requests_per_minute",
		},
		{
			name: "s3 enabled without bucket",
			mutate: func(c *Config) {
				c.Upload.S3 = &S3UploadConfig{Enabled: true}
			},
			wantErr: "upload.s3.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
