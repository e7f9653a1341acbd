package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tangle/internal/core/errors"
	"tangle/internal/core/ports"
	"tangle/internal/core/scanner"
	"tangle/internal/data/cache"
	"tangle/internal/engine/graph"
	"tangle/internal/shared/observability"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func NewAnalysisService(app *App) ports.AnalysisService {
	return &analysisService{app: app}
}

func (a *App) AnalysisService() ports.AnalysisService {
	return NewAnalysisService(a)
}

func (s *analysisService) Unwrap() *App {
	return s.app
}

// Analyze runs a full pass at one level. A valid cached graph short-circuits
// the scan-and-build work; cycle detection always runs on whatever graph the
// pass produced, so is-new marking stays current either way.
func (s *analysisService) Analyze(ctx context.Context, level graph.Level) (ports.AnalysisResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.Analyze",
		trace.WithAttributes(attribute.String("level", string(level))))
	defer span.End()

	started := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues(string(level), "full").Observe(time.Since(started).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return ports.AnalysisResult{}, err
	}
	builder, ok := s.app.builders[level]
	if !ok {
		return ports.AnalysisResult{}, errors.AddContext(
			errors.New(errors.CodeValidationError, "level not configured"), errors.CtxLevel, string(level))
	}

	paths, err := s.app.Scanner.ListFiles()
	if err != nil {
		return ports.AnalysisResult{}, errors.AddContext(err, errors.CtxOperation, "list_files")
	}
	files := s.app.Scanner.ReadFiles(paths)

	hashes := make(map[string]string, len(files))
	analyzed := make([]string, 0, len(files))
	for _, f := range files {
		hashes[f.Path] = cache.HashLines(f.Lines)
		analyzed = append(analyzed, f.Path)
	}

	if s.app.Cache != nil && s.app.Cache.Matches(level, hashes) {
		observability.CacheHitsTotal.Inc()
		entry, _ := s.app.Cache.Level(level)
		slog.Info("analysis served from cache", "level", level, "files", len(files))
		return s.finish(ctx, level, entry.Graph.Clone(), analyzed, true)
	}
	observability.CacheMissesTotal.Inc()

	g, err := builder.Build(ctx, files)
	if err != nil {
		return ports.AnalysisResult{}, err
	}
	s.app.built[level] = true
	s.persist(level, builder, g, hashes)

	return s.finish(ctx, level, g, analyzed, false)
}

// AnalyzeChanged reruns analysis for the given changed paths only, merging
// into the cached graph. It falls back to a full pass when no usable prior
// state exists for the level.
func (s *analysisService) AnalyzeChanged(ctx context.Context, level graph.Level, changed []string) (ports.AnalysisResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.AnalyzeChanged",
		trace.WithAttributes(
			attribute.String("level", string(level)),
			attribute.Int("changed", len(changed))))
	defer span.End()

	started := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues(string(level), "incremental").Observe(time.Since(started).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return ports.AnalysisResult{}, err
	}
	builder, ok := s.app.builders[level]
	if !ok {
		return ports.AnalysisResult{}, errors.AddContext(
			errors.New(errors.CodeValidationError, "level not configured"), errors.CtxLevel, string(level))
	}

	var prior *cache.LevelEntry
	if s.app.Cache != nil {
		prior, _ = s.app.Cache.Level(level)
	}
	// The builder's registration table only exists after a full pass in this
	// process; a snapshot loaded from disk is not enough to resolve against.
	if prior == nil || !s.app.built[level] {
		return s.Analyze(ctx, level)
	}

	var (
		existing []scanner.SourceFile
		removed  []string
	)
	for _, path := range changed {
		f, err := scanner.ReadFile(path)
		if err != nil {
			removed = append(removed, path)
			continue
		}
		existing = append(existing, f)
	}

	g, err := builder.BuildIncremental(ctx, prior.Graph, existing, removed)
	if err != nil {
		return ports.AnalysisResult{}, err
	}

	hashes := make(map[string]string, len(prior.FileHashes)+len(existing))
	for path, hash := range prior.FileHashes {
		hashes[path] = hash
	}
	for _, path := range removed {
		delete(hashes, path)
	}
	analyzed := make([]string, 0, len(existing))
	for _, f := range existing {
		hashes[f.Path] = cache.HashLines(f.Lines)
		analyzed = append(analyzed, f.Path)
	}
	s.persist(level, builder, g, hashes)

	return s.finish(ctx, level, g, analyzed, false)
}

// InvalidateFiles drops cached state for the given paths across every level.
// The next AnalyzeChanged pass re-resolves them and their dependents.
func (s *analysisService) InvalidateFiles(paths []string) {
	s.app.invalidate(paths)
}

func (s *analysisService) persist(level graph.Level, builder *graph.Builder, g *graph.Graph, hashes map[string]string) {
	if s.app.Cache == nil {
		return
	}
	s.app.Cache.SetLevel(level, g, hashes)
	for path, summary := range builder.Summaries(g) {
		hash, ok := hashes[path]
		if !ok {
			continue
		}
		s.app.Cache.RecordFile(path, hash, summary.Namespace, summary.Entities, summary.Dependencies)
	}
	s.app.Cache.SaveLevel(level)
	s.app.Cache.SaveFiles()
}

// finish runs cycle detection, updates gauges and history, and assembles the
// call/return payload.
func (s *analysisService) finish(ctx context.Context, level graph.Level, g *graph.Graph, analyzed []string, fromCache bool) (ports.AnalysisResult, error) {
	_, span := observability.Tracer.Start(ctx, "analysisService.detectCycles")
	cycles := graph.DetectCycles(g, s.app.seenIDs(level))
	span.End()
	s.app.rememberCycles(level, cycles)

	observability.GraphNodes.WithLabelValues(string(level)).Set(float64(len(g.Nodes)))
	observability.GraphEdges.WithLabelValues(string(level)).Set(float64(g.EdgeCount()))
	observability.CyclesDetected.WithLabelValues(string(level)).Set(float64(len(cycles)))

	result := ports.AnalysisResult{
		RunID:         uuid.NewString(),
		Level:         level,
		Nodes:         g.Nodes,
		Cycles:        cycles,
		AnalyzedFiles: analyzed,
		Timestamp:     time.Now().UTC(),
		FromCache:     fromCache,
	}

	if s.app.History != nil {
		ids := make([]string, 0, len(cycles))
		for _, c := range cycles {
			ids = append(ids, c.ID)
		}
		err := s.app.History.RecordRun(ports.RunSummary{
			RunID:      result.RunID,
			Level:      level,
			Timestamp:  result.Timestamp,
			NodeCount:  len(g.Nodes),
			EdgeCount:  g.EdgeCount(),
			CycleCount: len(cycles),
			FileCount:  len(analyzed),
			CycleIDs:   ids,
		})
		if err != nil {
			slog.Warn("history: recording run failed", "run_id", result.RunID, "error", err)
		}
	}

	slog.Info("analysis finished",
		"level", level,
		"nodes", len(g.Nodes),
		"edges", g.EdgeCount(),
		"cycles", len(cycles),
		"from_cache", fromCache)
	return result, nil
}
