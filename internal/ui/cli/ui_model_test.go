package cli

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangle/internal/core/ports"
	"tangle/internal/engine/graph"
)

func sampleResult(level graph.Level, cycles []graph.CircularDependency) ports.AnalysisResult {
	return ports.AnalysisResult{
		RunID:         "run-1",
		Level:         level,
		Nodes:         map[string]*graph.Node{},
		Cycles:        cycles,
		AnalyzedFiles: []string{"a.cs", "b.cs"},
		Timestamp:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sampleCycle(isNew bool) graph.CircularDependency {
	return graph.CircularDependency{
		ID:    "aaaa",
		Nodes: []string{"Combat.FindTargetSystem", "Core.GameConstants"},
		IsNew: isNew,
	}
}

func updateModel(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func TestResultMsgPopulatesList(t *testing.T) {
	m := initialModel([]graph.Level{graph.LevelType})

	m = updateModel(t, m, resultMsg{result: sampleResult(graph.LevelType, []graph.CircularDependency{sampleCycle(true)})})

	items := m.cycleList.Items()
	require.Len(t, items, 1)
	entry, ok := items[0].(item)
	require.True(t, ok)
	assert.Equal(t, "Cycle (new)", entry.Title())
	assert.Contains(t, entry.Description(), "Combat.FindTargetSystem -> Core.GameConstants -> Combat.FindTargetSystem")
}

func TestTabSwitchesLevel(t *testing.T) {
	m := initialModel([]graph.Level{graph.LevelNamespace, graph.LevelType})
	m = updateModel(t, m, resultMsg{result: sampleResult(graph.LevelType, []graph.CircularDependency{sampleCycle(false)})})
	m = updateModel(t, m, resultMsg{result: sampleResult(graph.LevelNamespace, nil)})
	assert.Empty(t, m.cycleList.Items(), "namespace level is active first and has no cycles")

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Len(t, m.cycleList.Items(), 1)
}

func TestOnlyNewFilter(t *testing.T) {
	m := initialModel([]graph.Level{graph.LevelType})
	m = updateModel(t, m, resultMsg{result: sampleResult(graph.LevelType, []graph.CircularDependency{
		sampleCycle(false),
		{ID: "bbbb", Nodes: []string{"A.X", "B.Y"}, IsNew: true},
	})})
	require.Len(t, m.cycleList.Items(), 2)

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	require.Len(t, m.cycleList.Items(), 1)
	entry := m.cycleList.Items()[0].(item)
	assert.Equal(t, "Cycle (new)", entry.Title())
}

func TestViewShowsCleanState(t *testing.T) {
	m := initialModel([]graph.Level{graph.LevelType})
	m = updateModel(t, m, resultMsg{result: sampleResult(graph.LevelType, nil)})

	view := m.View()
	assert.Contains(t, view, "No circular dependencies")
}

func TestRenderTrendWindow(t *testing.T) {
	points := make([]ports.TrendPoint, 0, 12)
	for i := 0; i < 12; i++ {
		points = append(points, ports.TrendPoint{CycleCount: i})
	}

	line := renderTrend(points)
	assert.Contains(t, line, "cycle trend:")
	assert.NotContains(t, line, " 0 ", "older samples fall out of the window")
	assert.Contains(t, line, "11")

	assert.Empty(t, renderTrend(nil))
}
