package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findOne(t *testing.T, target, line string) Evidence {
	t.Helper()
	found := NewMatcher(target).Find([]string{line})
	require.Len(t, found, 1)
	return found[0]
}

func TestRuleClassification(t *testing.T) {
	cases := []struct {
		name   string
		target string
		line   string
		kind   string
	}{
		{"inheritance", "SystemBase", "public class FindTargetSystem : SystemBase", "inheritance"},
		{"interface implementation", "IDamageable", "public struct Health : IComponentData, IDamageable", "inheritance"},
		{"field", "GameConstants", "    private GameConstants constants;", "field declaration"},
		{"field with initializer", "TargetCache", "    TargetCache cache = null;", "field declaration"},
		{"generic argument", "GameConstants", "    List<GameConstants> all;", "generic type argument"},
		{"generic second argument", "TargetData", "    Dictionary<int, TargetData> byId;", "generic type argument"},
		{"instantiation", "TargetCache", "        var c = new TargetCache();", "instantiation"},
		{"static access", "GameConstants", "        var max = GameConstants.MaxHealth;", "static member access"},
		{"ordering attribute", "FindTargetSystem", "[UpdateBefore(typeof(FindTargetSystem))]", "system ordering attribute"},
		{"parameter", "TargetData", "    void Apply(TargetData data)", "variable declaration"},
		{"bare mention", "GameConstants", "        Configure(GameConstants);", "name reference"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := findOne(t, tc.target, tc.line)
			assert.Equal(t, tc.kind, ev.Kind)
		})
	}
}

func TestFirstMatchPerLineWins(t *testing.T) {
	// Both a field declaration and a static access on one line: only the
	// more specific field rule is recorded.
	found := NewMatcher("GameConstants").Find([]string{
		"GameConstants gc = GameConstants.Default;",
	})
	require.Len(t, found, 1)
	assert.Equal(t, "field declaration", found[0].Kind)
}

func TestNoMatchWithoutTarget(t *testing.T) {
	found := NewMatcher("GameConstants").Find([]string{
		"int x = 1;",
		"var other = new TargetCache();",
	})
	assert.Empty(t, found)
}

func TestNoPartialNameMatch(t *testing.T) {
	found := NewMatcher("Game").Find([]string{
		"GameConstants gc;",
	})
	assert.Empty(t, found)
}

func TestEvidenceLineIsScopeOffset(t *testing.T) {
	found := NewMatcher("TargetData").Find([]string{
		"class Foo",
		"{",
		"    TargetData data;",
		"}",
	})
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].Line)
}

func TestWeightsDescendWithSpecificity(t *testing.T) {
	inherit := findOne(t, "Base", "class A : Base")
	mention := findOne(t, "Base", "Use(Base);")
	assert.Greater(t, inherit.Weight, mention.Weight)
}

func TestReasonFormat(t *testing.T) {
	assert.Equal(t, "field declaration (Core/A.cs:12)", Reason("field declaration", "Core/A.cs", 12))
}
