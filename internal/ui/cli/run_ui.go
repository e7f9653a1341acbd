package cli

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tangle/internal/app"
)

// RunUI drives the terminal UI against a running watch loop. Results flow
// from the watcher through the app's result channel into the program; the
// UI owns no analysis state of its own.
func RunUI(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := a.Watch(ctx)
	if err != nil {
		return err
	}

	p := tea.NewProgram(initialModel(a.Levels()), tea.WithAltScreen())

	go func() {
		svc := a.AnalysisService()
		for _, level := range a.Levels() {
			result, err := svc.Analyze(ctx, level)
			if err != nil {
				continue
			}
			p.Send(resultMsg{result: result})
		}
		p.Send(trendSnapshot(a))

		for result := range results {
			p.Send(resultMsg{result: result})
			p.Send(trendSnapshot(a))
		}
	}()

	_, err = p.Run()
	return err
}

func trendSnapshot(a *app.App) trendMsg {
	if a.History == nil {
		return trendMsg{}
	}
	levels := a.Levels()
	if len(levels) == 0 {
		return trendMsg{}
	}
	points, err := a.History.Trend(levels[0], time.Now().Add(-24*time.Hour))
	if err != nil {
		return trendMsg{}
	}
	return trendMsg{points: points}
}
