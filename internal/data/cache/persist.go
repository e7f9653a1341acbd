package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tangle/internal/core/errors"
	"tangle/internal/engine/graph"
	"tangle/internal/shared/observability"
)

// Persisted layout, one directory per workspace:
//
//	deps-<level>.json  graph snapshot plus the file hashes it was built from
//	files.json         per-file entries as [path, entry] pairs
//	meta.json          workspace-level bookkeeping
//
// Map-valued state is stored as arrays of [key, value] pairs so the files
// diff cleanly and round-trip with deterministic ordering.

type levelPayload struct {
	Dependencies []json.RawMessage `json:"dependencies"`
	FileHashes   []json.RawMessage `json:"fileHashes"`
	Timestamp    time.Time         `json:"timestamp"`
	TotalFiles   int               `json:"totalFiles"`
	Version      int               `json:"version"`
}

type metaPayload struct {
	Version          int       `json:"version"`
	LastFullAnalysis time.Time `json:"lastFullAnalysis"`
	TotalCachedFiles int       `json:"totalCachedFiles"`
	AnalysisLevel    string    `json:"analysisLevel"`
	WorkspaceRoot    string    `json:"workspaceRoot"`
	CacheCreated     time.Time `json:"cacheCreated"`
}

func pairJSON(key string, value any) (json.RawMessage, error) {
	raw, err := json.Marshal([2]any{key, value})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func splitPair(raw json.RawMessage, value any) (string, error) {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	var key string
	if err := json.Unmarshal(parts[0], &key); err != nil {
		return "", err
	}
	if err := json.Unmarshal(parts[1], value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) levelPath(level graph.Level) string {
	return filepath.Join(s.dir, fmt.Sprintf("deps-%s.json", level))
}

func (s *Store) filesPath() string { return filepath.Join(s.dir, "files.json") }
func (s *Store) metaPath() string  { return filepath.Join(s.dir, "meta.json") }

// SaveLevel writes one level snapshot. Writes are rate limited and never
// block analysis: when the limiter has no token the write is dropped and
// counted, and the snapshot reaches disk on a later save.
func (s *Store) SaveLevel(level graph.Level) {
	if !s.limiter.Allow() {
		observability.CacheWritesDroppedTotal.Inc()
		return
	}
	e, ok := s.levels[level]
	if !ok {
		return
	}
	payload := levelPayload{
		Dependencies: make([]json.RawMessage, 0, len(e.Graph.Nodes)),
		FileHashes:   make([]json.RawMessage, 0, len(e.FileHashes)),
		Timestamp:    e.Timestamp,
		TotalFiles:   e.TotalFiles,
		Version:      e.Version,
	}
	for _, id := range e.Graph.SortedIDs() {
		raw, err := pairJSON(id, e.Graph.Nodes[id])
		if err != nil {
			slog.Warn("cache: encode node failed", "id", id, "error", err)
			return
		}
		payload.Dependencies = append(payload.Dependencies, raw)
	}
	for _, path := range sortedKeys(e.FileHashes) {
		raw, err := pairJSON(path, e.FileHashes[path])
		if err != nil {
			slog.Warn("cache: encode hash failed", "path", path, "error", err)
			return
		}
		payload.FileHashes = append(payload.FileHashes, raw)
	}
	s.writeJSON(s.levelPath(level), payload)
}

// SaveFiles persists the per-file cache alongside refreshed metadata.
func (s *Store) SaveFiles() {
	if !s.limiter.Allow() {
		observability.CacheWritesDroppedTotal.Inc()
		return
	}
	pairs := make([]json.RawMessage, 0, len(s.files))
	for _, path := range sortedKeys(s.files) {
		raw, err := pairJSON(path, s.files[path])
		if err != nil {
			slog.Warn("cache: encode file entry failed", "path", path, "error", err)
			return
		}
		pairs = append(pairs, raw)
	}
	s.writeJSON(s.filesPath(), pairs)
	s.writeJSON(s.metaPath(), metaPayload{
		Version:          SchemaVersion,
		LastFullAnalysis: s.lastFull,
		TotalCachedFiles: len(s.files),
		AnalysisLevel:    string(s.lastLevel),
		WorkspaceRoot:    s.workspaceRoot,
		CacheCreated:     s.created,
	})
}

func (s *Store) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Warn("cache: marshal failed", "path", path, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("cache: mkdir failed", "path", path, "error", err)
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("cache: write failed", "path", path, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Warn("cache: rename failed", "path", path, "error", err)
	}
}

// Load restores all persisted state. Any unreadable or version-mismatched
// record is discarded individually; the caller falls back to a full pass
// for whatever is missing.
func (s *Store) Load(levels []graph.Level) {
	for _, level := range levels {
		if err := s.loadLevel(level); err != nil {
			slog.Info("cache: level snapshot not usable", "level", level, "reason", err)
			delete(s.levels, level)
		}
	}
	if err := s.loadFiles(); err != nil {
		slog.Info("cache: file cache not usable", "reason", err)
		s.files = make(map[string]*FileEntry)
	}
	if err := s.loadMeta(); err != nil {
		slog.Debug("cache: metadata not usable", "reason", err)
	}
}

func (s *Store) loadLevel(level graph.Level) error {
	data, err := os.ReadFile(s.levelPath(level))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.CodeCacheMiss, "no snapshot on disk")
		}
		return errors.Wrap(err, errors.CodeInternal, "read level snapshot")
	}
	var payload levelPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decode level snapshot")
	}
	if payload.Version != SchemaVersion {
		return errors.New(errors.CodeCacheMiss, fmt.Sprintf("schema version %d, want %d", payload.Version, SchemaVersion))
	}
	g := graph.NewGraph(level)
	for _, raw := range payload.Dependencies {
		var n graph.Node
		id, err := splitPair(raw, &n)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decode node pair")
		}
		if id != n.FullName {
			return errors.New(errors.CodeInternal, "node pair key disagrees with node identity")
		}
		g.Add(&n)
	}
	hashes := make(map[string]string, len(payload.FileHashes))
	for _, raw := range payload.FileHashes {
		var hash string
		path, err := splitPair(raw, &hash)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decode hash pair")
		}
		hashes[path] = hash
	}
	s.levels[level] = &LevelEntry{
		Graph:      g,
		FileHashes: hashes,
		Timestamp:  payload.Timestamp,
		TotalFiles: payload.TotalFiles,
		Version:    payload.Version,
	}
	return nil
}

func (s *Store) loadFiles() error {
	data, err := os.ReadFile(s.filesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.CodeCacheMiss, "no file cache on disk")
		}
		return errors.Wrap(err, errors.CodeInternal, "read file cache")
	}
	var pairs []json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "decode file cache")
	}
	files := make(map[string]*FileEntry, len(pairs))
	for _, raw := range pairs {
		var entry FileEntry
		path, err := splitPair(raw, &entry)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "decode file entry")
		}
		files[path] = &entry
	}
	s.files = files
	return nil
}

func (s *Store) loadMeta() error {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		return err
	}
	var meta metaPayload
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}
	if meta.Version != SchemaVersion {
		return errors.New(errors.CodeCacheMiss, "metadata schema version mismatch")
	}
	if !meta.CacheCreated.IsZero() {
		s.created = meta.CacheCreated
	}
	s.lastFull = meta.LastFullAnalysis
	s.lastLevel = graph.Level(meta.AnalysisLevel)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
