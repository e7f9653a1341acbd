// Package report renders dependency graphs for humans: Mermaid flowcharts
// and Graphviz DOT, with circular edges highlighted.
package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"tangle/internal/engine/graph"
)

// Mermaid renders the graph as a flowchart. At type and system level nodes
// are grouped into namespace subgraphs; cycle members and cycle edges get a
// dedicated style.
func Mermaid(g *graph.Graph, cycles []graph.CircularDependency) string {
	var b strings.Builder
	b.WriteString("%%{init: {'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")

	ids := mermaidIDs(g.SortedIDs())
	cycleNodes := cycleNodeSet(cycles)
	cycleHops := cycleEdgeSet(cycles)

	if g.Level == graph.LevelNamespace {
		for _, id := range g.SortedIDs() {
			b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[id], escapeLabel(id)))
		}
	} else {
		for _, ns := range sortedNamespaces(g) {
			b.WriteString(fmt.Sprintf("  subgraph ns_%s[\"%s\"]\n", sanitizeID(ns), escapeLabel(ns)))
			for _, id := range g.SortedIDs() {
				n := g.Nodes[id]
				if n.Namespace != ns {
					continue
				}
				b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[id], escapeLabel(n.Name)))
			}
			b.WriteString("  end\n")
		}
	}

	if len(cycleNodes) > 0 {
		names := make([]string, 0, len(cycleNodes))
		for id := range cycleNodes {
			if _, ok := g.Nodes[id]; ok {
				names = append(names, id)
			}
		}
		sort.Strings(names)
		if len(names) > 0 {
			b.WriteString("\n  classDef cycleNode fill:#ffecec,stroke:#cc0000,stroke-width:2px;\n")
			b.WriteString("  class ")
			b.WriteString(strings.Join(toIDs(names, ids), ","))
			b.WriteString(" cycleNode;\n")
		}
	}

	b.WriteString("\n")
	linkIndex := 0
	cycleLinks := make([]int, 0)
	for _, from := range g.SortedIDs() {
		for _, to := range g.Nodes[from].Dependencies {
			if _, ok := g.Nodes[to]; !ok {
				continue
			}
			label := ""
			if cycleHops[from+"->"+to] {
				label = "|CYCLE|"
				cycleLinks = append(cycleLinks, linkIndex)
			}
			b.WriteString(fmt.Sprintf("  %s -->%s %s\n", ids[from], label, ids[to]))
			linkIndex++
		}
	}
	if len(cycleLinks) > 0 {
		b.WriteString(fmt.Sprintf("\n  linkStyle %s stroke:#cc0000,stroke-width:3px;\n", joinInts(cycleLinks)))
	}

	return b.String()
}

func sortedNamespaces(g *graph.Graph) []string {
	set := make(map[string]bool)
	for _, n := range g.Nodes {
		set[n.Namespace] = true
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func cycleNodeSet(cycles []graph.CircularDependency) map[string]bool {
	set := make(map[string]bool)
	for _, c := range cycles {
		for _, id := range c.Nodes {
			set[id] = true
		}
	}
	return set
}

func cycleEdgeSet(cycles []graph.CircularDependency) map[string]bool {
	set := make(map[string]bool)
	for _, c := range cycles {
		for _, e := range c.Edges {
			set[e.From+"->"+e.To] = true
		}
	}
	return set
}

// mermaidIDs assigns collision-free identifiers: sanitized names with a
// numeric suffix when two distinct names collapse to the same identifier.
func mermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		id := sanitizeID(name)
		for i := 2; used[id]; i++ {
			id = fmt.Sprintf("%s_%d", sanitizeID(name), i)
		}
		used[id] = true
		ids[name] = id
	}
	return ids
}

func sanitizeID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func escapeLabel(label string) string {
	return strings.ReplaceAll(label, `"`, `#quot;`)
}

func toIDs(names []string, ids map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, ids[name])
	}
	return out
}

func joinInts(indexes []int) string {
	parts := make([]string, 0, len(indexes))
	for _, i := range indexes {
		parts = append(parts, fmt.Sprintf("%d", i))
	}
	return strings.Join(parts, ",")
}
