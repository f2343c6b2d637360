package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaults loads the built-in settings with no config file in reach.
func defaults(t *testing.T) *Config {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, 15*time.Second, cfg.ADBTimeout)
	assert.Equal(t, 15*time.Second, cfg.CaseDelay)
	assert.Equal(t, 30*time.Second, cfg.DeviceWait)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "reports", cfg.ReportDir)
	assert.Equal(t, 1.0, cfg.SleepScale)
	assert.Equal(t, "sqlite", cfg.Catalog.Backend)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "droidprobe.yaml")
	content := `
serial: emulator-5554
adb_timeout: 30s
sleep_scale: 0.5
catalog:
  backend: redis
  redis_addr: 127.0.0.1:6380
params:
  search_term: maps
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "emulator-5554", cfg.Serial)
	assert.Equal(t, 30*time.Second, cfg.ADBTimeout)
	assert.Equal(t, 0.5, cfg.SleepScale)
	assert.Equal(t, "redis", cfg.Catalog.Backend)
	assert.Equal(t, "127.0.0.1:6380", cfg.Catalog.RedisAddr)
	assert.Equal(t, "maps", cfg.Params["search_term"])
	assert.Equal(t, "logs", cfg.LogDir)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DROIDPROBE_SERIAL", "R5CR50ABCDE")
	t.Setenv("DROIDPROBE_CATALOG_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "R5CR50ABCDE", cfg.Serial)
	assert.Equal(t, "memory", cfg.Catalog.Backend)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative scale", func(c *Config) { c.SleepScale = -1 }, true},
		{"zero timeout", func(c *Config) { c.ADBTimeout = 0 }, true},
		{"negative device wait", func(c *Config) { c.DeviceWait = -time.Second }, true},
		{"no device wait", func(c *Config) { c.DeviceWait = 0 }, false},
		{"unknown backend", func(c *Config) { c.Catalog.Backend = "mongo" }, true},
		{"no catalog", func(c *Config) { c.Catalog.Backend = "none" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// chdir changes the working directory for the test and restores it on
// cleanup (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
