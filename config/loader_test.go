package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Review.MaxSaveRetries)
	assert.False(t, cfg.Review.AutoApprove)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  http_port: 9000
  read_timeout: 45s
storage:
  backend: redis
  redis:
    addr: redis.internal:6379
review:
  auto_approve: true
  max_save_retries: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
	assert.True(t, cfg.Review.AutoApprove)
	assert.Equal(t, 5, cfg.Review.MaxSaveRetries)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestEnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("REVIEWFLOW_SERVER_HTTP_PORT", "9100")
	t.Setenv("REVIEWFLOW_SERVER_SHUTDOWN_TIMEOUT", "20s")
	t.Setenv("REVIEWFLOW_STORAGE_BACKEND", "memory")
	t.Setenv("REVIEWFLOW_STORAGE_DATABASE_DRIVER", "sqlite")
	t.Setenv("REVIEWFLOW_REVIEW_AUTO_APPROVE", "true")
	t.Setenv("REVIEWFLOW_SERVER_API_KEYS", "key-a, key-b")
	t.Setenv("REVIEWFLOW_SERVER_RATE_LIMIT_RPS", "12.5")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "sqlite", cfg.Storage.Database.Driver)
	assert.True(t, cfg.Review.AutoApprove)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Server.APIKeys)
	assert.Equal(t, 12.5, cfg.Server.RateLimitRPS)
}

func TestEnvPrefixOverride(t *testing.T) {
	t.Setenv("RF_SERVER_HTTP_PORT", "7070")

	cfg, err := NewLoader().WithEnvPrefix("RF").Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
}

func TestLoaderValidatorHook(t *testing.T) {
	called := false
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			called = true
			return c.Validate()
		}).
		Load()
	require.NoError(t, err)
	assert.True(t, called)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"metrics collides with http", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"file backend without dir", func(c *Config) { c.Storage.FileDir = "" }},
		{"unknown driver", func(c *Config) {
			c.Storage.Backend = "database"
			c.Storage.Database.Driver = "oracle"
		}},
		{"mongo without uri", func(c *Config) {
			c.Storage.Backend = "mongo"
			c.Storage.Mongo.URI = ""
		}},
		{"negative retries", func(c *Config) { c.Review.MaxSaveRetries = -1 }},
		{"jwt without secret", func(c *Config) { c.Auth.JWTEnabled = true }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
