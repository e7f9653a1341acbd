package extract

import (
	"regexp"
	"strings"
)

// FileInfo is everything the lexical pass recovers from one file. Stripped
// holds the comment/string-blanked lines every later scan works on.
type FileInfo struct {
	Path          string
	Namespace     string
	NamespaceLine int
	Usings        []Using
	Entities      []Entity
	Refs          []QualifiedRef
	Stripped      []string
}

// Using is one import directive.
type Using struct {
	Namespace string
	Line      int
}

// QualifiedRef is a token of the form Identifier.Identifier(...) where every
// segment starts uppercase, split into a namespace prefix and a type name.
type QualifiedRef struct {
	Raw       string
	Namespace string
	Name      string
	Line      int
}

// Entity is a top-level declared type. Nested declarations never reach this
// list; they are invisible to cross-file resolution.
type Entity struct {
	Name string
	Kind string
	Line int
}

var (
	namespaceRe = regexp.MustCompile(`^\s*namespace\s+([A-Za-z_][\w.]*)`)
	usingRe     = regexp.MustCompile(`^\s*using\s+(?:static\s+)?([A-Za-z_][\w.]*)\s*;`)
	qualifiedRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*(?:\.[A-Z][A-Za-z0-9_]*)+)\b`)
)

// Analyze runs the full lexical pass over one file's raw lines.
func Analyze(path string, lines []string) *FileInfo {
	stripped := StripNoise(lines)

	info := &FileInfo{Path: path, Stripped: stripped}
	info.Namespace, info.NamespaceLine = findNamespace(stripped)
	info.Usings = findUsings(stripped)
	info.Refs = findQualifiedRefs(stripped)
	info.Entities = findEntities(stripped)
	return info
}

// findNamespace returns the first namespace declaration. Both the block and
// file-scoped forms match; absence is reported as an empty name and callers
// substitute the synthetic Global namespace.
func findNamespace(stripped []string) (string, int) {
	for i, line := range stripped {
		if m := namespaceRe.FindStringSubmatch(line); m != nil {
			return m[1], i + 1
		}
	}
	return "", 0
}

func findUsings(stripped []string) []Using {
	var usings []Using
	for i, line := range stripped {
		if m := usingRe.FindStringSubmatch(line); m != nil {
			usings = append(usings, Using{Namespace: m[1], Line: i + 1})
		}
	}
	return usings
}

// findQualifiedRefs collects dotted-name use sites. Namespace declarations
// and using directives mention dotted names without referencing anything, so
// those lines are skipped wholesale; counting a file's own namespace
// declaration as a reference would invent an edge to every ancestor
// namespace.
func findQualifiedRefs(stripped []string) []QualifiedRef {
	var refs []QualifiedRef
	for i, line := range stripped {
		if namespaceRe.MatchString(line) || usingRe.MatchString(line) {
			continue
		}
		for _, raw := range qualifiedRe.FindAllString(line, -1) {
			dot := strings.LastIndex(raw, ".")
			refs = append(refs, QualifiedRef{
				Raw:       raw,
				Namespace: raw[:dot],
				Name:      raw[dot+1:],
				Line:      i + 1,
			})
		}
	}
	return refs
}

// UsingTargets returns the distinct namespaces named by import directives.
func (f *FileInfo) UsingTargets() map[string]bool {
	targets := make(map[string]bool, len(f.Usings))
	for _, u := range f.Usings {
		targets[u.Namespace] = true
	}
	return targets
}

// EffectiveNamespace is the declared namespace or Global when none exists.
func (f *FileInfo) EffectiveNamespace(global string) string {
	if f.Namespace == "" {
		return global
	}
	return f.Namespace
}
