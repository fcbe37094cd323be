package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/canopy/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canopy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
redis:
  addr: localhost:6379
  db: 2
  ttl: 90s
  max_len: 50
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 50, cfg.Redis.MaxLen)
	assert.Equal(t, "canopy:", cfg.Redis.Prefix, "unset keys keep their default")
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "http:\n  addr: \":9000\"\n")
	t.Setenv("CANOPY_HTTP_ADDR", ":7000")
	t.Setenv("CANOPY_REDIS_DB", "3")
	t.Setenv("CANOPY_REDIS_TTL", "1m")
	t.Setenv("CANOPY_METRICS_NAMESPACE", "tree")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "tree", cfg.Metrics.Namespace)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "log: [unclosed"},
		{name: "unknown key", content: "loggin:\n  level: info\n"},
		{name: "bad level", content: "log:\n  level: loud\n"},
		{name: "bad format", content: "log:\n  format: xml\n"},
		{name: "negative db", content: "redis:\n  db: -1\n"},
		{name: "bad duration", content: "redis:\n  ttl: soon\n"},
		{name: "zero buffer", content: "trail:\n  buffer: 0\n"},
		{name: "bad redact pattern", content: "trail:\n  redact: [\"(\"]\n"},
		{name: "short key", content: "trail:\n  encryption_key: c2hvcnQ=\n"},
		{name: "key not base64", content: "trail:\n  encryption_key: \"%%%\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "CANOPY_REDIS_MAX_LEN", config.EnvName("redis.max_len"))
}

func TestLoad_Trail(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	path := writeFile(t, "trail:\n  redact: [password]\n  encryption_key: "+key+"\n")
	t.Setenv("CANOPY_TRAIL_REDACT", "password,(?i)token")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"password", "(?i)token"}, cfg.Trail.Redact)
	got, err := cfg.Trail.Key()
	require.NoError(t, err)
	assert.Len(t, got, 32)

	none, err := config.Default().Trail.Key()
	require.NoError(t, err)
	assert.Nil(t, none)
}
