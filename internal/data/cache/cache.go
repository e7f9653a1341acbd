// Package cache persists analysis-level graphs together with per-file
// content hashes and drives the cascading invalidation that keeps
// re-analysis proportional to the size of a change.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"tangle/internal/engine/graph"
	"tangle/internal/shared/observability"
)

// SchemaVersion tags every persisted record. Any mismatch on load discards
// that record unconditionally; stale cache state is dropped, never edited.
const SchemaVersion = 2

// LevelEntry is one analysis level's cached graph snapshot.
type LevelEntry struct {
	Graph      *graph.Graph
	FileHashes map[string]string
	Timestamp  time.Time
	TotalFiles int
	Version    int
}

// FileEntry is the per-file record backing reverse lookups ("who depends on
// this file") without re-scanning. Field names are a compatibility surface.
type FileEntry struct {
	Hash         string    `json:"hash"`
	LastModified time.Time `json:"lastModified"`
	Namespace    string    `json:"namespace"`
	Classes      []string  `json:"classes"`
	Dependencies []string  `json:"dependencies"`
	LastAnalyzed time.Time `json:"lastAnalyzed"`
}

// Store holds all cached analysis state. It is read and written only by the
// single in-flight analysis pass, so it carries no locks; correctness relies
// on the single-writer discipline.
type Store struct {
	dir           string
	workspaceRoot string
	levels        map[graph.Level]*LevelEntry
	files         map[string]*FileEntry
	limiter       *rate.Limiter
	created       time.Time
	lastFull      time.Time
	lastLevel     graph.Level
}

func NewStore(dir, workspaceRoot string, writesPerSecond float64, burst int) *Store {
	return &Store{
		dir:           dir,
		workspaceRoot: workspaceRoot,
		levels:        make(map[graph.Level]*LevelEntry),
		files:         make(map[string]*FileEntry),
		limiter:       rate.NewLimiter(rate.Limit(writesPerSecond), burst),
		created:       time.Now().UTC(),
	}
}

// HashLines produces the content hash recorded for a file. Both sides of
// every validity comparison go through this one function.
func HashLines(lines []string) string {
	h := xxhash.New()
	for i, line := range lines {
		if i > 0 {
			_, _ = h.WriteString("\n")
		}
		_, _ = h.WriteString(line)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// SetLevel replaces one level's snapshot wholesale after a successful pass.
func (s *Store) SetLevel(level graph.Level, g *graph.Graph, fileHashes map[string]string) {
	hashes := make(map[string]string, len(fileHashes))
	for k, v := range fileHashes {
		hashes[k] = v
	}
	s.levels[level] = &LevelEntry{
		Graph:      g.Clone(),
		FileHashes: hashes,
		Timestamp:  time.Now().UTC(),
		TotalFiles: len(hashes),
		Version:    SchemaVersion,
	}
	s.lastFull = time.Now().UTC()
	s.lastLevel = level
}

func (s *Store) Level(level graph.Level) (*LevelEntry, bool) {
	e, ok := s.levels[level]
	return e, ok
}

// Matches reports whether the cached level is valid against the current
// file-set hashes: same schema version, same files, same content.
func (s *Store) Matches(level graph.Level, current map[string]string) bool {
	e, ok := s.levels[level]
	if !ok || e.Version != SchemaVersion {
		return false
	}
	if len(e.FileHashes) != len(current) {
		return false
	}
	for path, hash := range current {
		stored, ok := e.FileHashes[path]
		if !ok || stored != hash {
			return false
		}
	}
	return true
}

// RecordFile refreshes the per-file entry after the file was analyzed.
func (s *Store) RecordFile(path, hash, namespace string, classes, dependencies []string) {
	now := time.Now().UTC()
	s.files[path] = &FileEntry{
		Hash:         hash,
		LastModified: now,
		Namespace:    namespace,
		Classes:      append([]string{}, classes...),
		Dependencies: append([]string{}, dependencies...),
		LastAnalyzed: now,
	}
}

func (s *Store) File(path string) (*FileEntry, bool) {
	e, ok := s.files[path]
	return e, ok
}

func (s *Store) FileCount() int {
	return len(s.files)
}

// Invalidate is the one control operation external change detection calls.
// It removes each changed file's contribution from every cached level at
// once, because a single file change can affect namespace-, type- and
// system-level graphs independently, and returns the changed paths expanded
// with every dependent file whose accepted edges may have relied on the
// changed declarations.
func (s *Store) Invalidate(paths []string) []string {
	stale := make(map[string]bool)
	staleIdentities := make(map[string]bool)

	for _, path := range paths {
		stale[path] = true
		entry, ok := s.files[path]
		if !ok {
			continue
		}
		staleIdentities[entry.Namespace] = true
		for _, class := range entry.Classes {
			staleIdentities[entry.Namespace+"."+class] = true
		}
	}

	// Reverse lookup over the file-level cache: any file whose recorded
	// dependencies touch a stale identity needs re-resolution too.
	for path, entry := range s.files {
		if stale[path] {
			continue
		}
		for _, dep := range entry.Dependencies {
			if staleIdentities[dep] || staleIdentities[namespaceOf(dep)] {
				stale[path] = true
				break
			}
		}
	}

	for _, e := range s.levels {
		for path := range stale {
			delete(e.FileHashes, path)
		}
		e.TotalFiles = len(e.FileHashes)
		for id, n := range e.Graph.Nodes {
			if n.FilePath != "" && stale[n.FilePath] {
				e.Graph.Remove(id)
			} else if staleIdentities[id] {
				e.Graph.Remove(id)
			}
		}
	}

	for _, path := range paths {
		delete(s.files, path)
	}

	out := make([]string, 0, len(stale))
	for path := range stale {
		out = append(out, path)
	}
	sort.Strings(out)
	observability.InvalidationsTotal.Add(float64(len(out)))
	return out
}

// DropLevel discards one level's snapshot, forcing the next pass to rebuild.
func (s *Store) DropLevel(level graph.Level) {
	delete(s.levels, level)
}

func namespaceOf(identity string) string {
	dot := strings.LastIndex(identity, ".")
	if dot < 0 {
		return identity
	}
	return identity[:dot]
}
