package graph

import (
	"sort"
	"strings"
	"time"
)

// Level selects the granularity of a dependency graph.
type Level string

const (
	LevelNamespace Level = "namespace"
	LevelType      Level = "type"
	LevelSystem    Level = "system"
)

// GlobalNamespace is the synthetic namespace assigned to files that declare none.
const GlobalNamespace = "Global"

func Levels() []Level {
	return []Level{LevelNamespace, LevelType, LevelSystem}
}

// EntityKind values mirror the declaration forms the extractor recognizes.
const (
	KindClass        = "class"
	KindStruct       = "struct"
	KindInterface    = "interface"
	KindEnum         = "enum"
	KindRecord       = "record"
	KindRecordStruct = "record-struct"
	KindDelegate     = "delegate"
)

// Node is one vertex of a dependency graph. Identity is FullName: the bare
// namespace at namespace level, namespace.TypeName otherwise. Field names are
// a persistence compatibility surface; do not rename the JSON tags.
type Node struct {
	FullName     string             `json:"fullName"`
	Name         string             `json:"name"`
	Namespace    string             `json:"namespace"`
	FilePath     string             `json:"filePath"`
	EntityKind   string             `json:"entityKind,omitempty"`
	Dependencies []string           `json:"dependencies"`
	Details      map[string]*Detail `json:"dependencyDetails"`
}

// Detail records why an edge exists. Reasons and LineNumbers are parallel; a
// Detail always carries at least one reason.
type Detail struct {
	Target      string   `json:"target"`
	Reasons     []string `json:"reasons"`
	LineNumbers []int    `json:"lineNumbers"`
}

func NewNode(fullName, name, namespace, filePath, kind string) *Node {
	return &Node{
		FullName:     fullName,
		Name:         name,
		Namespace:    namespace,
		FilePath:     filePath,
		EntityKind:   kind,
		Dependencies: []string{},
		Details:      make(map[string]*Detail),
	}
}

// AddDependency appends evidence for an edge to target, creating the edge on
// first use. Dependencies stays a sorted set.
func (n *Node) AddDependency(target, reason string, line int) {
	d, ok := n.Details[target]
	if !ok {
		d = &Detail{Target: target}
		n.Details[target] = d
		n.Dependencies = append(n.Dependencies, target)
		sort.Strings(n.Dependencies)
	}
	d.Reasons = append(d.Reasons, reason)
	d.LineNumbers = append(d.LineNumbers, line)
}

func (n *Node) DependsOn(target string) bool {
	_, ok := n.Details[target]
	return ok
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		FullName:     n.FullName,
		Name:         n.Name,
		Namespace:    n.Namespace,
		FilePath:     n.FilePath,
		EntityKind:   n.EntityKind,
		Dependencies: append([]string{}, n.Dependencies...),
		Details:      make(map[string]*Detail, len(n.Details)),
	}
	for k, d := range n.Details {
		c.Details[k] = &Detail{
			Target:      d.Target,
			Reasons:     append([]string{}, d.Reasons...),
			LineNumbers: append([]int{}, d.LineNumbers...),
		}
	}
	return c
}

// Graph is one analysis level's dependency graph. It is built by a single
// pass and never mutated concurrently; access needs no locking.
type Graph struct {
	Level Level
	Nodes map[string]*Node
}

func NewGraph(level Level) *Graph {
	return &Graph{Level: level, Nodes: make(map[string]*Node)}
}

func (g *Graph) Add(n *Node) {
	g.Nodes[n.FullName] = n
}

func (g *Graph) Get(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

func (g *Graph) Remove(id string) {
	delete(g.Nodes, id)
}

func (g *Graph) EdgeCount() int {
	count := 0
	for _, n := range g.Nodes {
		count += len(n.Dependencies)
	}
	return count
}

func (g *Graph) Clone() *Graph {
	c := NewGraph(g.Level)
	for id, n := range g.Nodes {
		c.Nodes[id] = n.Clone()
	}
	return c
}

// SortedIDs returns node identities in deterministic order for rendering and
// rotation-invariant comparisons.
func (g *Graph) SortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CircularDependency is one distinct cycle. Nodes holds the ordered path with
// the first node not repeated at the end; Edges carries one hop of evidence
// per step including the closing hop back to Nodes[0].
type CircularDependency struct {
	ID         string      `json:"id"`
	Nodes      []string    `json:"cycle"`
	Edges      []CycleEdge `json:"edges"`
	IsNew      bool        `json:"isNew"`
	Discovered time.Time   `json:"discovered"`
}

type CycleEdge struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Reasons []string `json:"reasons"`
}

func (c *CircularDependency) String() string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return strings.Join(c.Nodes, " -> ") + " -> " + c.Nodes[0]
}
