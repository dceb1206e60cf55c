package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBusConfig(t *testing.T) {
	cfg := DefaultBusConfig()
	assert.Equal(t, "NORMAL", cfg.DefaultOrder)
	assert.Equal(t, time.Duration(0), cfg.BakeInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestYAMLFeeder_OverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultOrder: LATE\nlogLevel: debug\n"), 0o600))

	cfg, err := Load(YAMLFeeder{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "LATE", cfg.DefaultOrder)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.BakeInterval)
}

func TestTOMLFeeder_OverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bus.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_order = \"FIRST\"\n"), 0o600))

	cfg, err := Load(TOMLFeeder{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "FIRST", cfg.DefaultOrder)
}

func TestEnvFeeder_OverridesPrefixedFields(t *testing.T) {
	t.Setenv("BUS_DEFAULT_ORDER", "EARLY")
	t.Setenv("BUS_LOG_LEVEL", "warn")
	t.Setenv("BUS_BAKE_INTERVAL", "30s")

	cfg, err := Load(EnvFeeder{Prefix: "BUS_"})
	require.NoError(t, err)
	assert.Equal(t, "EARLY", cfg.DefaultOrder)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.BakeInterval)
}

func TestEnvFeeder_MissingVarsLeaveDefaults(t *testing.T) {
	cfg, err := Load(EnvFeeder{Prefix: "ABSENT_PREFIX_"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBusConfig(), cfg)
}

func TestLoad_AppliesFeedersInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultOrder: LATE\n"), 0o600))
	t.Setenv("BUS_DEFAULT_ORDER", "FIRST")

	cfg, err := Load(YAMLFeeder{Path: path}, EnvFeeder{Prefix: "BUS_"})
	require.NoError(t, err)
	assert.Equal(t, "FIRST", cfg.DefaultOrder, "later feeders override earlier ones")
}
