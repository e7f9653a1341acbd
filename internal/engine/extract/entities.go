package extract

import (
	"regexp"
	"strings"
)

// declPattern order is load-bearing: most specific first, so "record struct"
// is classified before the bare "struct" pattern can claim the line.
type declPattern struct {
	kind string
	re   *regexp.Regexp
}

var declPatterns = []declPattern{
	{"record-struct", regexp.MustCompile(`\brecord\s+struct\s+([A-Za-z_]\w*)`)},
	{"record", regexp.MustCompile(`\brecord\s+(?:class\s+)?([A-Za-z_]\w*)`)},
	{"struct", regexp.MustCompile(`\bstruct\s+([A-Za-z_]\w*)`)},
	{"interface", regexp.MustCompile(`\binterface\s+([A-Za-z_]\w*)`)},
	{"enum", regexp.MustCompile(`\benum\s+([A-Za-z_]\w*)`)},
	{"delegate", regexp.MustCompile(`\bdelegate\s+[^(;]*?\b([A-Za-z_]\w*)\s*(?:<[^>(]*>)?\s*\(`)},
	{"class", regexp.MustCompile(`\bclass\s+([A-Za-z_]\w*)`)},
}

// nestingWindow bounds the backward brace scan. The check is a line-oriented
// heuristic, not a scope parser; the window keeps it cheap on huge files.
const nestingWindow = 500

// findEntities returns every top-level declaration with its determined kind.
// One declaration is recognized per line, first pattern wins.
func findEntities(stripped []string) []Entity {
	var entities []Entity
	for i, line := range stripped {
		name, kind, ok := matchDeclaration(line)
		if !ok {
			continue
		}
		if isNested(stripped, i) {
			continue
		}
		entities = append(entities, Entity{Name: name, Kind: kind, Line: i + 1})
	}
	return entities
}

func matchDeclaration(line string) (name, kind string, ok bool) {
	for _, p := range declPatterns {
		if m := p.re.FindStringSubmatch(line); m != nil {
			return m[1], p.kind, true
		}
	}
	return "", "", false
}

// isNested reports whether the declaration at declIdx sits inside another
// type's body: scanning backwards, an enclosing declaration whose open brace
// is still unbalanced relative to declIdx means the candidate is nested.
// Reaching a namespace declaration (or the window/file start) means top
// level.
func isNested(stripped []string, declIdx int) bool {
	balance := 0
	for i := declIdx - 1; i >= 0 && declIdx-i <= nestingWindow; i-- {
		line := stripped[i]
		balance += strings.Count(line, "{") - strings.Count(line, "}")

		if namespaceRe.MatchString(line) {
			return false
		}
		if _, _, ok := matchDeclaration(line); ok && balance > 0 {
			return true
		}
	}
	return false
}

// Scope is the exact body of one entity: its declaration line through the
// line where brace counting returns to zero. StartLine is 1-based.
type Scope struct {
	Lines     []string
	StartLine int
}

// EntityScope locates name's declaration by exact token match and collects
// its body by character-level brace counting. Scanning only this span, not
// the whole file, is what keeps multi-entity files precise.
func (f *FileInfo) EntityScope(name string) (Scope, bool) {
	declIdx := -1
	for i, line := range f.Stripped {
		if declName, _, ok := matchDeclaration(line); ok && declName == name {
			declIdx = i
			break
		}
	}
	if declIdx < 0 {
		return Scope{}, false
	}

	// Attribute lines sit above the declaration but belong to the entity;
	// ordering attributes like [UpdateAfter(...)] must land in its scope.
	start := declIdx
	for start > 0 && strings.HasPrefix(strings.TrimSpace(f.Stripped[start-1]), "[") {
		start--
	}

	depth := 0
	opened := false
	end := declIdx
	for i := declIdx; i < len(f.Stripped); i++ {
		for _, ch := range f.Stripped[i] {
			switch ch {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		end = i
		if opened && depth <= 0 {
			break
		}
		// Brace-less form, e.g. "record Point(int X);" or a file-scoped
		// declaration terminated on its own line.
		if !opened && strings.Contains(f.Stripped[i], ";") {
			break
		}
	}

	lines := make([]string, end-start+1)
	copy(lines, f.Stripped[start:end+1])
	return Scope{Lines: lines, StartLine: start + 1}, true
}
