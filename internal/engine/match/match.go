// Package match decides whether a scope of text depends on a candidate
// target name, and why. Rules are ordered most specific first; the first
// rule matching a line wins, so each line yields at most one piece of
// evidence and the most informative explanation is preferred.
package match

import (
	"fmt"
	"regexp"
	"strings"
)

type Rule struct {
	Kind    string
	Weight  int
	pattern string
}

// %s is replaced with the quoted target name when a rule is compiled.
var rules = []Rule{
	{Kind: "inheritance", Weight: 10, pattern: `(?:class|struct|interface|record)\s+\w+[^:{]*:[^{]*\b%s\b`},
	{Kind: "field declaration", Weight: 9, pattern: `\b%s\b\s*(?:<[^>]*>)?\s+_?\w+\s*[;=,]`},
	{Kind: "generic type argument", Weight: 8, pattern: `[<,]\s*%s\s*[>,]`},
	{Kind: "instantiation", Weight: 7, pattern: `\bnew\s+%s\b`},
	{Kind: "static member access", Weight: 6, pattern: `\b%s\s*\.\s*\w`},
	{Kind: "system ordering attribute", Weight: 5, pattern: `\[\s*(?:UpdateBefore|UpdateAfter|CreateBefore|CreateAfter)\s*\(\s*typeof\s*\(\s*%s\s*\)`},
	{Kind: "variable declaration", Weight: 4, pattern: `\b%s\??\s+\w+\b`},
	{Kind: "name reference", Weight: 1, pattern: `\b%s\b`},
}

// Evidence is one accepted match. Line is the offset within the scanned
// scope; callers translate it to a file line.
type Evidence struct {
	Kind   string
	Weight int
	Line   int
}

type compiledRule struct {
	kind   string
	weight int
	re     *regexp.Regexp
}

// Matcher scans scopes for a fixed target name. Compiling the rule set once
// per target keeps resolution over many scopes cheap.
type Matcher struct {
	target string
	rules  []compiledRule
}

func NewMatcher(target string) *Matcher {
	quoted := regexp.QuoteMeta(target)
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, compiledRule{
			kind:   r.Kind,
			weight: r.Weight,
			re:     regexp.MustCompile(fmt.Sprintf(r.pattern, quoted)),
		})
	}
	return &Matcher{target: target, rules: compiled}
}

// Find scans each line for the target. Weights rank evidence for future
// pruning; any single match is already sufficient to create an edge.
func (m *Matcher) Find(scope []string) []Evidence {
	var found []Evidence
	for i, line := range scope {
		if !strings.Contains(line, m.target) {
			continue
		}
		for _, r := range m.rules {
			if r.re.MatchString(line) {
				found = append(found, Evidence{Kind: r.kind, Weight: r.weight, Line: i})
				break
			}
		}
	}
	return found
}

// Matches reports whether any rule accepts any line of the scope.
func (m *Matcher) Matches(scope []string) bool {
	for _, line := range scope {
		if !strings.Contains(line, m.target) {
			continue
		}
		for _, r := range m.rules {
			if r.re.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// Reason renders one evidence string in the stable "kind (file:line)" form
// consumers display.
func Reason(kind, file string, line int) string {
	return fmt.Sprintf("%s (%s:%d)", kind, file, line)
}
