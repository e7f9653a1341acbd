package graph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

type edge struct {
	from, to string
}

// DetectCycles finds every distinct circular path in the graph. prevIDs
// holds the cycle ids a prior run reported; cycles absent from it are
// flagged new. The result is ordered by cycle id for determinism.
func DetectCycles(g *Graph, prevIDs map[string]bool) []CircularDependency {
	candidates := collectCandidateEdges(g)
	if len(candidates) == 0 {
		return nil
	}

	// DFS from multiple roots can report partial or overlapping slices of
	// the same cycle, so every candidate edge is re-validated on its own:
	// u -> v is circular only when v can still reach u.
	circular := make(map[string]map[string]bool)
	for e := range candidates {
		if reaches(g, e.to, e.from) {
			if circular[e.from] == nil {
				circular[e.from] = make(map[string]bool)
			}
			circular[e.from][e.to] = true
		}
	}
	if len(circular) == 0 {
		return nil
	}

	cycles := groupCycles(circular)

	now := time.Now().UTC()
	out := make([]CircularDependency, 0, len(cycles))
	for _, nodes := range cycles {
		c := CircularDependency{
			ID:         CycleID(nodes),
			Nodes:      nodes,
			Edges:      cycleEdges(g, nodes),
			Discovered: now,
		}
		c.IsNew = !prevIDs[c.ID]
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// collectCandidateEdges runs the recursion-stack DFS. An edge landing on a
// node already on the stack marks the whole path slice from that node as
// candidate cycle edges.
func collectCandidateEdges(g *Graph) map[edge]bool {
	candidates := make(map[edge]bool)
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(curr string, path []string)
	dfs = func(curr string, path []string) {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr)

		node := g.Nodes[curr]
		for _, next := range node.Dependencies {
			if _, exists := g.Nodes[next]; !exists {
				continue
			}
			if onStack[next] {
				start := -1
				for i, id := range path {
					if id == next {
						start = i
						break
					}
				}
				if start >= 0 {
					slice := path[start:]
					for i := 0; i < len(slice); i++ {
						candidates[edge{slice[i], slice[(i+1)%len(slice)]}] = true
					}
					// The closing hop is the edge just followed; the modulo
					// wrap above already covers it when curr closes to next.
					candidates[edge{curr, next}] = true
				}
			} else if !visited[next] {
				dfs(next, path)
			}
		}

		onStack[curr] = false
	}

	for _, id := range g.SortedIDs() {
		if !visited[id] {
			dfs(id, nil)
		}
	}
	return candidates
}

// reaches reports whether a path exists from src to dst following graph
// edges. A self-loop (src == dst with a recorded edge) counts.
func reaches(g *Graph, src, dst string) bool {
	if src == dst {
		return true
	}
	visited := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		node, ok := g.Nodes[curr]
		if !ok {
			continue
		}
		for _, next := range node.Dependencies {
			if next == dst {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// groupCycles regroups validated circular edges into distinct cycles with a
// second DFS restricted to the circular-edge subgraph, collapsing duplicate
// rotations by canonical key.
func groupCycles(circular map[string]map[string]bool) [][]string {
	roots := make([]string, 0, len(circular))
	for from := range circular {
		roots = append(roots, from)
	}
	sort.Strings(roots)

	seen := make(map[string]bool)
	var cycles [][]string

	var dfs func(curr string, path []string, onPath map[string]int)
	dfs = func(curr string, path []string, onPath map[string]int) {
		onPath[curr] = len(path)
		path = append(path, curr)

		targets := make([]string, 0, len(circular[curr]))
		for to := range circular[curr] {
			targets = append(targets, to)
		}
		sort.Strings(targets)

		for _, next := range targets {
			if start, ok := onPath[next]; ok {
				cycle := canonicalRotation(path[start:])
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			dfs(next, path, onPath)
		}

		delete(onPath, curr)
	}

	for _, root := range roots {
		dfs(root, nil, make(map[string]int))
	}
	return cycles
}

// canonicalRotation rotates a cycle to start at its lexicographically
// smallest node so rotations of the same cycle compare equal.
func canonicalRotation(cycle []string) []string {
	smallest := 0
	for i := 1; i < len(cycle); i++ {
		if cycle[i] < cycle[smallest] {
			smallest = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[smallest:]...)
	out = append(out, cycle[:smallest]...)
	return out
}

// CycleID derives a stable identity from the order-independent node set, so
// the same cycle keeps its id across runs regardless of discovery order.
func CycleID(nodes []string) string {
	sorted := append([]string{}, nodes...)
	sort.Strings(sorted)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(sorted, "\x00")))
}

// cycleEdges attaches per-hop evidence from the node details, including the
// closing hop back to the first node.
func cycleEdges(g *Graph, nodes []string) []CycleEdge {
	edges := make([]CycleEdge, 0, len(nodes))
	for i := range nodes {
		from := nodes[i]
		to := nodes[(i+1)%len(nodes)]
		ce := CycleEdge{From: from, To: to}
		if n, ok := g.Nodes[from]; ok {
			if d, ok := n.Details[to]; ok {
				ce.Reasons = append([]string{}, d.Reasons...)
			}
		}
		edges = append(edges, ce)
	}
	return edges
}
