package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tours")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PUBLIC_RATE_BURST", "9")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/tours", cfg.DB.URL)
	assert.Equal(t, 9, cfg.Public.RateBurst)
	assert.Equal(t, float64(1), cfg.Public.RateLimit)
	assert.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, 24, cfg.Auth.JWTTTL)
}

func TestLoadYAMLOverriddenByEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
addr: ":9090"
log_level: debug
database:
  url: postgres://yaml/tours
  max_open_conns: 20
auth:
  jwt_secret: from-yaml
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("DATABASE_URL", "postgres://env/tours")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20, cfg.DB.MaxOpenConns)
	assert.Equal(t, "postgres://env/tours", cfg.DB.URL)
	assert.Equal(t, "from-yaml", cfg.Auth.JWTSecret)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load("")
	assert.Error(t, err)
}
