// Package app wires configuration, scanning, graph building, caching and
// history into the analysis service the command layer drives.
package app

import (
	"fmt"
	"log/slog"

	"tangle/internal/core/config"
	"tangle/internal/core/ports"
	"tangle/internal/core/scanner"
	"tangle/internal/data/cache"
	"tangle/internal/data/history"
	"tangle/internal/engine/graph"
)

type App struct {
	Config  *config.Config
	Scanner *scanner.Scanner
	Cache   *cache.Store
	History ports.HistoryStore

	levels   []graph.Level
	builders map[graph.Level]*graph.Builder
	// built marks levels whose builder holds a registration table from this
	// process; a cached graph alone cannot serve incremental rebuilds.
	built map[graph.Level]bool
	// seen accumulates cycle ids across runs for is-new marking, seeded from
	// history on first use per level.
	seen map[graph.Level]map[string]bool

	historyCloser interface{ Close() error }
}

// New builds the application from explicit configuration. Nothing here reads
// globals; every collaborator is constructed and owned by the returned App.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	sc, err := scanner.New(cfg.Roots, cfg.Exclude.Dirs, cfg.Exclude.Files)
	if err != nil {
		return nil, fmt.Errorf("build scanner: %w", err)
	}

	levels := make([]graph.Level, 0, len(cfg.Levels))
	builders := make(map[graph.Level]*graph.Builder, len(cfg.Levels))
	for _, raw := range cfg.Levels {
		level, err := graph.ParseLevel(raw)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
		builders[level] = graph.NewBuilder(level, cfg.Exclude.Namespaces)
	}

	a := &App{
		Config:   cfg,
		Scanner:  sc,
		levels:   levels,
		builders: builders,
		built:    make(map[graph.Level]bool),
		seen:     make(map[graph.Level]map[string]bool),
	}

	if cfg.Cache.Enabled {
		root := ""
		if len(cfg.Roots) > 0 {
			root = cfg.Roots[0]
		}
		a.Cache = cache.NewStore(cfg.Cache.Dir, root, cfg.Cache.WritesPerSecond, cfg.Cache.WriteBurst)
		a.Cache.Load(levels)
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.History = store
		a.historyCloser = store
	}

	return a, nil
}

func (a *App) Levels() []graph.Level {
	return append([]graph.Level{}, a.levels...)
}

func (a *App) Close() error {
	if a.historyCloser != nil {
		return a.historyCloser.Close()
	}
	return nil
}

// invalidate clears cached state for the given paths and returns the change
// set expanded with dependent files. Without a cache there is nothing to
// expand and the paths pass through.
func (a *App) invalidate(paths []string) []string {
	if a.Cache == nil {
		return append([]string{}, paths...)
	}
	expanded := a.Cache.Invalidate(paths)
	slog.Debug("invalidated", "changed", len(paths), "expanded", len(expanded))
	return expanded
}

// seenIDs returns the accumulated cycle ids for a level, seeding from the
// history store on first use so is-new marking survives restarts.
func (a *App) seenIDs(level graph.Level) map[string]bool {
	if ids, ok := a.seen[level]; ok {
		return ids
	}
	ids := make(map[string]bool)
	if a.History != nil {
		stored, err := a.History.SeenCycleIDs(level)
		if err != nil {
			slog.Warn("history: loading seen cycles failed", "level", level, "error", err)
		} else {
			ids = stored
		}
	}
	a.seen[level] = ids
	return ids
}

func (a *App) rememberCycles(level graph.Level, cycles []graph.CircularDependency) {
	ids := a.seenIDs(level)
	for _, c := range cycles {
		ids[c.ID] = true
	}
}
