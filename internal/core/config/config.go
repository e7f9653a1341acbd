package config

import (
	"time"
)

type Config struct {
	Version int      `toml:"version"`
	Roots   []string `toml:"roots"`
	Levels  []string `toml:"levels"`
	Exclude Exclude  `toml:"exclude"`
	Watch   Watch    `toml:"watch"`
	Cache   Cache    `toml:"cache"`
	History History  `toml:"history"`
	Metrics Metrics  `toml:"metrics"`
	Tracing Tracing  `toml:"tracing"`
	Output  Output   `toml:"output"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
	// Namespaces holds namespace prefixes whose entities never become
	// nodes or edge targets (e.g. "System", "Unity").
	Namespaces []string `toml:"namespaces"`
}

type Watch struct {
	// Enabled defaults to on; nil means the key was absent.
	Enabled  *bool         `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

func (w Watch) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	// WritesPerSecond bounds persistence churn in watch mode.
	WritesPerSecond float64 `toml:"writes_per_second"`
	WriteBurst      int     `toml:"write_burst"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

type Output struct {
	Mermaid string `toml:"mermaid"`
	DOT     string `toml:"dot"`
}
