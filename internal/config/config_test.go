package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine.Command, cfg.Engine.Command)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPrefersProjectConfig(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".otto"), 0755))
	project := []byte("engine:\n  command: [\"my-engine\", \"--json\"]\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".otto", "config.yaml"), project, 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"my-engine", "--json"}, cfg.Engine.Command)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFallsBackToGlobalConfig(t *testing.T) {
	chdir(t, t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".otto"), 0755))
	global := []byte("engine:\n  command: [\"global-engine\"]\ncontext: [\"README.md\"]\n")
	require.NoError(t, os.WriteFile(filepath.Join(home, ".otto", "config.yaml"), global, 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"global-engine"}, cfg.Engine.Command)
	assert.Equal(t, []string{"README.md"}, cfg.Context)
}

func TestParseFillsMissingEngineCommand(t *testing.T) {
	cfg, err := parse([]byte("log_level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine.Command, cfg.Engine.Command)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestSaveRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Context = []string{"main.go"}
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.LogLevel, loaded.LogLevel)
	assert.Equal(t, cfg.Context, loaded.Context)
	assert.Equal(t, cfg.Engine.Command, loaded.Engine.Command)
}
