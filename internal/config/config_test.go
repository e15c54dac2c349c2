package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/noteshare.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "data/uploads", cfg.Storage.Dir)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.RevokeOnLogout)
	assert.True(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxSize)
	assert.Contains(t, cfg.Upload.AllowedExtensions, ".pdf")
	assert.Zero(t, cfg.Storage.SweepInterval)
	assert.Equal(t, time.Hour, cfg.Storage.SweepGrace)

	assert.ErrorContains(t, cfg.Validate(), "auth.jwtsecret is required")
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NOTESHARE_AUTH_JWTSECRET", "s3cret")
	t.Setenv("NOTESHARE_AUTH_TOKENTTL", "24h")
	t.Setenv("NOTESHARE_DATABASE_DRIVER", "memory")
	t.Setenv("NOTESHARE_UPLOAD_MAXSIZE", "1024")
	t.Setenv("NOTESHARE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, int64(1024), cfg.Upload.MaxSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# local settings\nNOTESHARE_AUTH_JWTSECRET=\"from-dotenv\"\nexport NOTESHARE_SERVER_ADDR=127.0.0.1:9000\n",
	), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("NOTESHARE_AUTH_JWTSECRET")
		os.Unsetenv("NOTESHARE_SERVER_ADDR")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.Server.Addr = ":8080"
		cfg.Auth.JWTSecret = "secret"
		cfg.Auth.TokenTTL = time.Hour
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = "db"
		cfg.Storage.Driver = "local"
		cfg.Storage.Dir = "uploads"
		cfg.Log.Format = "text"
		cfg.Upload.MaxSize = 1
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown database", func(c *Config) { c.Database.Driver = "postgres" }, "unknown database.driver"},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = "s3" }, "storage.bucket is required"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "unknown log.format"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.tokenttl must be positive"},
		{"zero upload size", func(c *Config) { c.Upload.MaxSize = 0 }, "upload.maxsize must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+), which is unavailable on this toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}
