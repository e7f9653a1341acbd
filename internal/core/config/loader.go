package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tangle/internal/engine/graph"
)

const CurrentVersion = 1

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateRoots(&cfg); err != nil {
		return nil, err
	}
	if err := validateLevels(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a ready-to-use config for a single project root, used when
// no config file exists.
func Default(root string) *Config {
	cfg := &Config{Roots: []string{root}}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if len(cfg.Levels) == 0 {
		cfg.Levels = []string{string(graph.LevelType)}
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "bin", "obj", "Library", "Temp"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if strings.TrimSpace(cfg.Cache.Dir) == "" {
		cfg.Cache.Dir = ".tangle/cache"
	}
	if cfg.Cache.WritesPerSecond <= 0 {
		cfg.Cache.WritesPerSecond = 2
	}
	if cfg.Cache.WriteBurst <= 0 {
		cfg.Cache.WriteBurst = 4
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".tangle/history.db"
	}
	if strings.TrimSpace(cfg.Metrics.Address) == "" {
		cfg.Metrics.Address = "127.0.0.1:9477"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}
	return nil
}

func validateRoots(cfg *Config) error {
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("at least one root directory is required")
	}
	for _, r := range cfg.Roots {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("root directory must not be empty")
		}
	}
	return nil
}

func validateLevels(cfg *Config) error {
	for _, l := range cfg.Levels {
		if _, err := graph.ParseLevel(l); err != nil {
			return err
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	return nil
}
