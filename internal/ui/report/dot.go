package report

import (
	"fmt"
	"strings"

	"tangle/internal/engine/graph"
)

// DOT renders the graph for Graphviz. Nodes participating in a cycle are
// filled red-ish; cycle edges are drawn thick with a CYCLE label.
func DOT(g *graph.Graph, cycles []graph.CircularDependency) string {
	var buf strings.Builder

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n")
	buf.WriteString("  splines=polyline;\n\n")

	cycleNodes := cycleNodeSet(cycles)
	cycleHops := cycleEdgeSet(cycles)

	for _, id := range g.SortedIDs() {
		n := g.Nodes[id]
		label := id
		if n.EntityKind != "" {
			label = fmt.Sprintf("%s\\n(%s)", id, n.EntityKind)
		}
		if cycleNodes[id] {
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", fillcolor=\"mistyrose\", style=\"rounded,filled\", color=\"red\", penwidth=2.0];\n", id, label))
		} else {
			buf.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n", id, label))
		}
	}
	buf.WriteString("\n")

	for _, from := range g.SortedIDs() {
		for _, to := range g.Nodes[from].Dependencies {
			if _, ok := g.Nodes[to]; !ok {
				continue
			}
			if cycleHops[from+"->"+to] {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", from, to))
			} else {
				buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"darkslategrey\"];\n", from, to))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}
