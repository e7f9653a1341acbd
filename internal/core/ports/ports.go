package ports

import (
	"context"
	"time"

	"tangle/internal/engine/graph"
)

// LineLogger is the single capability consumers need to report progress: it
// records one line. Any concrete logger satisfies it.
type LineLogger interface {
	Line(s string)
}

// LineFunc adapts a plain function to the LineLogger capability.
type LineFunc func(s string)

func (f LineFunc) Line(s string) { f(s) }

// AnalysisResult is the call/return contract handed to visualization and
// status-reporting consumers.
type AnalysisResult struct {
	RunID         string
	Level         graph.Level
	Nodes         map[string]*graph.Node
	Cycles        []graph.CircularDependency
	AnalyzedFiles []string
	Timestamp     time.Time
	FromCache     bool
}

// AnalysisService is the driving port for dependency analysis.
type AnalysisService interface {
	Analyze(ctx context.Context, level graph.Level) (AnalysisResult, error)
	AnalyzeChanged(ctx context.Context, level graph.Level, changed []string) (AnalysisResult, error)
	InvalidateFiles(paths []string)
}

// RunSummary is one recorded detection run.
type RunSummary struct {
	RunID      string
	Level      graph.Level
	Timestamp  time.Time
	NodeCount  int
	EdgeCount  int
	CycleCount int
	FileCount  int
	CycleIDs   []string
}

// TrendPoint is a cycle-count sample used by watch-mode consumers.
type TrendPoint struct {
	Timestamp  time.Time
	CycleCount int
	NodeCount  int
}

// HistoryStore abstracts detection-run persistence so the analysis service
// can mark cycles as new across process restarts.
type HistoryStore interface {
	RecordRun(summary RunSummary) error
	SeenCycleIDs(level graph.Level) (map[string]bool, error)
	Trend(level graph.Level, since time.Time) ([]TrendPoint, error)
}
