// Package cli is the watch-mode terminal UI: a live list of circular
// dependencies that refreshes as analysis results arrive.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tangle/internal/core/ports"
	"tangle/internal/engine/graph"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	newCycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type resultMsg struct {
	result ports.AnalysisResult
}

type trendMsg struct {
	points []ports.TrendPoint
}

type model struct {
	cycleList list.Model
	levels    []graph.Level
	active    int
	results   map[graph.Level]ports.AnalysisResult
	trend     []ports.TrendPoint
	onlyNew   bool
}

func initialModel(levels []graph.Level) model {
	cycleList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	cycleList.Title = "Circular Dependencies"
	cycleList.SetShowStatusBar(false)
	cycleList.SetFilteringEnabled(true)

	return model{
		cycleList: cycleList,
		levels:    levels,
		results:   make(map[graph.Level]ports.AnalysisResult),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if len(m.levels) > 0 {
				m.active = (m.active + 1) % len(m.levels)
				m = m.refreshItems()
			}
			return m, nil
		case "n":
			m.onlyNew = !m.onlyNew
			m = m.refreshItems()
			return m, nil
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.cycleList.SetSize(msg.Width-h, height)
	case resultMsg:
		m.results[msg.result.Level] = msg.result
		m = m.refreshItems()
	case trendMsg:
		m.trend = msg.points
	}

	var cmd tea.Cmd
	m.cycleList, cmd = m.cycleList.Update(msg)
	return m, cmd
}

func (m model) activeLevel() (graph.Level, bool) {
	if len(m.levels) == 0 {
		return "", false
	}
	return m.levels[m.active], true
}

func (m model) refreshItems() model {
	level, ok := m.activeLevel()
	if !ok {
		return m
	}
	result, ok := m.results[level]
	if !ok {
		m.cycleList.SetItems([]list.Item{})
		return m
	}

	items := make([]list.Item, 0, len(result.Cycles))
	for _, c := range result.Cycles {
		if m.onlyNew && !c.IsNew {
			continue
		}
		title := "Cycle"
		if c.IsNew {
			title = "Cycle (new)"
		}
		items = append(items, item{
			title: title,
			desc:  c.String() + " | " + graph.Suggest(c),
		})
	}
	m.cycleList.SetItems(items)
	return m
}

func (m model) View() string {
	level, ok := m.activeLevel()
	if !ok {
		return docStyle.Render(titleStyle("Dependency Monitor") + "\nno levels configured")
	}

	header := titleStyle("Dependency Monitor") + "\n"
	result, have := m.results[level]
	if have {
		stats := graph.ComputeCycleStats(result.Cycles)
		status := statusStyle.Render(fmt.Sprintf("level=%s | last update %s | %d files | %d nodes",
			level, result.Timestamp.Local().Format("15:04:05"), len(result.AnalyzedFiles), len(result.Nodes)))

		var summary string
		if stats.Count == 0 {
			summary = successStyle.Render("No circular dependencies")
		} else {
			summary = cycleStyle.Render(fmt.Sprintf("%d cycles", stats.Count))
			if stats.NewCount > 0 {
				summary += " | " + newCycleStyle.Render(fmt.Sprintf("%d new", stats.NewCount))
			}
			summary += statusStyle.Render(fmt.Sprintf(" (avg len %.1f, longest %d)", stats.AverageLength, stats.LongestLength))
		}
		header += status + "\n" + summary + "\n"
	} else {
		header += statusStyle.Render(fmt.Sprintf("level=%s | waiting for first analysis", level)) + "\n"
	}

	if line := renderTrend(m.trend); line != "" {
		header += statusStyle.Render(line) + "\n"
	}

	help := statusStyle.Render("tab: switch level • n: toggle new-only • q: quit")
	return docStyle.Render(header + help + "\n\n" + m.cycleList.View())
}

// renderTrend compresses the recent run history into one line.
func renderTrend(points []ports.TrendPoint) string {
	if len(points) == 0 {
		return ""
	}
	const window = 10
	if len(points) > window {
		points = points[len(points)-window:]
	}
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, fmt.Sprintf("%d", p.CycleCount))
	}
	return "cycle trend: " + strings.Join(parts, " > ")
}
