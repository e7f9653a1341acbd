package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"tangle/internal/core/scanner"
	"tangle/internal/engine/extract"
	"tangle/internal/engine/match"
)

// registeredEntity is one pass-1 registration. Simple names collide across
// namespaces; pass 2 disambiguates with the referencing file's context.
type registeredEntity struct {
	FullName  string
	Name      string
	Namespace string
	Kind      string
	Path      string
}

// Builder turns lexical file analyses into one level's dependency graph.
// A builder is driven by a single analysis pass at a time; it keeps the
// registration table between passes so incremental rebuilds can re-run
// pass 2 without re-scanning the world.
type Builder struct {
	level      Level
	ignored    []string
	infos      map[string]*extract.FileInfo
	registry   map[string][]registeredEntity
	matchers   map[string]*match.Matcher
	namespaces map[string]bool
}

func NewBuilder(level Level, ignoredNamespaces []string) *Builder {
	return &Builder{
		level:      level,
		ignored:    append([]string{}, ignoredNamespaces...),
		infos:      make(map[string]*extract.FileInfo),
		registry:   make(map[string][]registeredEntity),
		matchers:   make(map[string]*match.Matcher),
		namespaces: make(map[string]bool),
	}
}

// Build runs both passes over the full file set and returns a fresh graph.
func (b *Builder) Build(ctx context.Context, files []scanner.SourceFile) (*Graph, error) {
	b.infos = make(map[string]*extract.FileInfo, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.infos[f.Path] = extract.Analyze(f.Path, f.Lines)
	}

	b.register()

	g := NewGraph(b.level)
	for _, info := range b.sortedInfos() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b.resolveFile(g, info)
	}
	return g, nil
}

// BuildIncremental recomputes only the entities declared in the changed
// files, re-running pass 2 against the maintained registration table, and
// merges the outcome into a copy of the prior graph. Paths in removed no
// longer exist and only shed their contributions.
func (b *Builder) BuildIncremental(ctx context.Context, prior *Graph, changed []scanner.SourceFile, removed []string) (*Graph, error) {
	g := prior.Clone()

	touched := make(map[string]bool, len(changed)+len(removed))
	staleNamespaces := make(map[string]bool)

	for _, path := range removed {
		touched[path] = true
		if info, ok := b.infos[path]; ok {
			staleNamespaces[info.EffectiveNamespace(GlobalNamespace)] = true
		}
		delete(b.infos, path)
	}
	for _, f := range changed {
		touched[f.Path] = true
		if info, ok := b.infos[f.Path]; ok {
			staleNamespaces[info.EffectiveNamespace(GlobalNamespace)] = true
		}
		b.infos[f.Path] = extract.Analyze(f.Path, f.Lines)
	}

	// Registration is global state: rebuild it so entities that vanished
	// from a changed file stop being resolution targets.
	b.register()

	if b.level == LevelNamespace {
		for _, f := range changed {
			if info, ok := b.infos[f.Path]; ok {
				staleNamespaces[info.EffectiveNamespace(GlobalNamespace)] = true
			}
		}
		for ns := range staleNamespaces {
			g.Remove(ns)
		}
		for _, info := range b.sortedInfos() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if staleNamespaces[info.EffectiveNamespace(GlobalNamespace)] {
				b.resolveFile(g, info)
			}
		}
		return g, nil
	}

	// Drop every node anchored to a touched file, then re-resolve what the
	// current content actually declares. Entities that disappeared stay
	// gone; leaf nodes for unchanged files are untouched.
	for id, n := range g.Nodes {
		if touched[n.FilePath] {
			g.Remove(id)
		}
	}
	for _, f := range changed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info, ok := b.infos[f.Path]; ok {
			b.resolveFile(g, info)
		}
	}
	return g, nil
}

// register is pass 1: collect every non-nested declaration into the lookup
// table keyed by simple name, and the set of declared namespaces.
func (b *Builder) register() {
	b.registry = make(map[string][]registeredEntity)
	b.matchers = make(map[string]*match.Matcher)
	b.namespaces = make(map[string]bool)

	for _, info := range b.sortedInfos() {
		ns := info.EffectiveNamespace(GlobalNamespace)
		if b.ignoredNamespace(ns) {
			continue
		}
		b.namespaces[ns] = true

		for _, e := range info.Entities {
			if b.level == LevelSystem && !isSystemEntity(e) {
				continue
			}
			b.registry[e.Name] = append(b.registry[e.Name], registeredEntity{
				FullName:  ns + "." + e.Name,
				Name:      e.Name,
				Namespace: ns,
				Kind:      e.Kind,
				Path:      info.Path,
			})
			if _, ok := b.matchers[e.Name]; !ok {
				b.matchers[e.Name] = match.NewMatcher(e.Name)
			}
		}
	}
}

func (b *Builder) resolveFile(g *Graph, info *extract.FileInfo) {
	if b.level == LevelNamespace {
		b.resolveNamespaces(g, info)
		return
	}
	b.resolveEntities(g, info)
}

// resolveEntities is pass 2 for the type and system levels: for each entity
// declared in the file, scan exactly its scope for every visible registered
// target. The node is inserted even with zero outgoing edges so leaves stay
// valid targets.
func (b *Builder) resolveEntities(g *Graph, info *extract.FileInfo) {
	ns := info.EffectiveNamespace(GlobalNamespace)
	if b.ignoredNamespace(ns) {
		return
	}
	usings := info.UsingTargets()

	for _, e := range info.Entities {
		if b.level == LevelSystem && !isSystemEntity(e) {
			continue
		}

		node := NewNode(ns+"."+e.Name, e.Name, ns, info.Path, e.Kind)
		g.Add(node)

		scope, ok := info.EntityScope(e.Name)
		if !ok {
			slog.Debug("entity scope not found", "entity", e.Name, "path", info.Path)
			continue
		}

		for _, simpleName := range b.sortedRegistryNames() {
			target, ok := b.pickTarget(simpleName, node.FullName, ns, usings)
			if !ok {
				continue
			}
			found := b.matchers[simpleName].Find(scope.Lines)
			for _, ev := range found {
				line := scope.StartLine + ev.Line
				node.AddDependency(target.FullName, match.Reason(ev.Kind, info.Path, line), line)
			}
		}
	}
}

// pickTarget selects the registered entity a simple name resolves to from
// the referencing context: same namespace first, then an imported namespace,
// then the synthetic Global namespace. Unresolvable names produce no edge.
func (b *Builder) pickTarget(simpleName, selfFullName, ns string, usings map[string]bool) (registeredEntity, bool) {
	var viaUsing, viaGlobal *registeredEntity
	for i := range b.registry[simpleName] {
		cand := b.registry[simpleName][i]
		if cand.FullName == selfFullName {
			continue
		}
		if cand.Namespace == ns {
			return cand, true
		}
		if usings[cand.Namespace] && viaUsing == nil {
			viaUsing = &b.registry[simpleName][i]
		}
		if cand.Namespace == GlobalNamespace && viaGlobal == nil {
			viaGlobal = &b.registry[simpleName][i]
		}
	}
	if viaUsing != nil {
		return *viaUsing, true
	}
	if viaGlobal != nil {
		return *viaGlobal, true
	}
	return registeredEntity{}, false
}

// resolveNamespaces folds both import directives and qualified references
// into namespace-level edges; at this granularity a same-namespace file
// boundary carries no meaning.
func (b *Builder) resolveNamespaces(g *Graph, info *extract.FileInfo) {
	ns := info.EffectiveNamespace(GlobalNamespace)
	if b.ignoredNamespace(ns) {
		return
	}

	node, ok := g.Get(ns)
	if !ok {
		// Namespace nodes aggregate many files and are not anchored to one.
		node = NewNode(ns, ns, ns, "", "")
		g.Add(node)
	}

	for _, u := range info.Usings {
		target, ok := b.projectNamespace(u.Namespace)
		if !ok || target == ns {
			continue
		}
		node.AddDependency(target, match.Reason("using directive", info.Path, u.Line), u.Line)
	}

	for _, ref := range info.Refs {
		target, ok := b.projectNamespace(ref.Namespace)
		if !ok || target == ns {
			continue
		}
		node.AddDependency(target, match.Reason("qualified reference", info.Path, ref.Line), ref.Line)
	}
}

// projectNamespace maps a dotted prefix onto a declared namespace, longest
// prefix first, so Core.GameConstants.MaxHealth resolves to Core.
func (b *Builder) projectNamespace(prefix string) (string, bool) {
	for cand := prefix; cand != ""; {
		if b.namespaces[cand] && !b.ignoredNamespace(cand) {
			return cand, true
		}
		dot := strings.LastIndex(cand, ".")
		if dot < 0 {
			break
		}
		cand = cand[:dot]
	}
	return "", false
}

func (b *Builder) ignoredNamespace(ns string) bool {
	for _, prefix := range b.ignored {
		if ns == prefix || strings.HasPrefix(ns, prefix+".") {
			return true
		}
	}
	return false
}

func (b *Builder) sortedInfos() []*extract.FileInfo {
	paths := make([]string, 0, len(b.infos))
	for p := range b.infos {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	infos := make([]*extract.FileInfo, 0, len(paths))
	for _, p := range paths {
		infos = append(infos, b.infos[p])
	}
	return infos
}

// FileSummary describes one analyzed file's declarations and outgoing edges,
// the bookkeeping the cache layer needs for reverse dependency lookups.
type FileSummary struct {
	Namespace    string
	Entities     []string
	Dependencies []string
}

// Summaries reports every analyzed file against the given graph. At namespace
// level a file's edges are its namespace node's edges; otherwise they are the
// union over the entity nodes the file declares.
func (b *Builder) Summaries(g *Graph) map[string]FileSummary {
	out := make(map[string]FileSummary, len(b.infos))
	for path, info := range b.infos {
		ns := info.EffectiveNamespace(GlobalNamespace)
		summary := FileSummary{Namespace: ns}
		for _, e := range info.Entities {
			summary.Entities = append(summary.Entities, e.Name)
		}

		deps := make(map[string]bool)
		if g.Level == LevelNamespace {
			if n, ok := g.Get(ns); ok {
				for _, d := range n.Dependencies {
					deps[d] = true
				}
			}
		} else {
			for _, n := range g.Nodes {
				if n.FilePath != path {
					continue
				}
				for _, d := range n.Dependencies {
					deps[d] = true
				}
			}
		}
		for d := range deps {
			summary.Dependencies = append(summary.Dependencies, d)
		}
		sort.Strings(summary.Dependencies)
		out[path] = summary
	}
	return out
}

func (b *Builder) sortedRegistryNames() []string {
	names := make([]string, 0, len(b.registry))
	for n := range b.registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// isSystemEntity gates the domain "system" grouping: concrete system types
// named by the ECS convention.
func isSystemEntity(e extract.Entity) bool {
	if e.Kind != KindClass && e.Kind != KindStruct {
		return false
	}
	return strings.HasSuffix(e.Name, "System")
}
