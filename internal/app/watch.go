package app

import (
	"context"
	"log/slog"

	"tangle/internal/core/ports"
	"tangle/internal/core/watcher"
)

// Watch starts the filesystem watcher and returns the channel analysis
// results flow through. Each debounced change batch invalidates cached state,
// expands to dependent files, and re-analyzes every configured level. The
// channel closes when ctx is cancelled and the loop has drained.
func (a *App) Watch(ctx context.Context) (<-chan ports.AnalysisResult, error) {
	w, err := watcher.New(a.Config.Watch.Debounce, a.Config.Exclude.Dirs, a.Config.Exclude.Files)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(a.Config.Roots); err != nil {
		_ = w.Close()
		return nil, err
	}

	service := a.AnalysisService()
	results := make(chan ports.AnalysisResult, len(a.levels))

	go func() {
		defer close(results)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-w.Changes():
				if !ok {
					return
				}
				expanded := a.invalidate(batch)
				for _, level := range a.levels {
					result, err := service.AnalyzeChanged(ctx, level, expanded)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						slog.Error("re-analysis failed", "level", level, "error", err)
						continue
					}
					select {
					case results <- result:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return results, nil
}
