package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tangle.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
roots = ["./src"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, []string{"type"}, cfg.Levels)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, ".tangle/cache", cfg.Cache.Dir)
	assert.Contains(t, cfg.Exclude.Dirs, ".git")
}

func TestLoadRejectsMissingRoots(t *testing.T) {
	path := writeConfig(t, `
levels = ["type"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root")
}

func TestLoadRejectsUnknownLevel(t *testing.T) {
	path := writeConfig(t, `
roots = ["./src"]
levels = ["method"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported analysis level")
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	path := writeConfig(t, `
version = 99
roots = ["./src"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")
}

func TestWatchEnabledDefaultsOn(t *testing.T) {
	path := writeConfig(t, `
roots = ["./src"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Watch.IsEnabled(), "absent key means watch mode is on")
}

func TestWatchEnabledCanBeDisabled(t *testing.T) {
	path := writeConfig(t, `
roots = ["./src"]

[watch]
enabled = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Watch.IsEnabled())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
roots = ["./src", "./shared"]
levels = ["namespace", "type", "system"]

[exclude]
dirs = ["vendor"]
namespaces = ["System", "Unity"]

[watch]
enabled = true
debounce = "750ms"

[cache]
enabled = true
dir = "/tmp/tangle-cache"

[history]
enabled = true
path = "/tmp/tangle.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Roots, 2)
	assert.Equal(t, []string{"namespace", "type", "system"}, cfg.Levels)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"System", "Unity"}, cfg.Exclude.Namespaces)
	assert.True(t, cfg.History.Enabled)
}
