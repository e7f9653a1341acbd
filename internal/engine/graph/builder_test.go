package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tangle/internal/core/scanner"
)

func src(path, content string) scanner.SourceFile {
	return scanner.SourceFile{Path: path, Lines: scanner.SplitLines(content)}
}

const gameConstantsSrc = `using Combat;

namespace Core
{
    public class GameConstants
    {
        public static FindTargetSystem DebugTargeting;
        public const int MaxHealth = 100;
    }
}
`

const findTargetSystemSrc = `using Core;

namespace Combat
{
    public class FindTargetSystem
    {
        private GameConstants constants;
    }
}
`

func buildType(t *testing.T, files ...scanner.SourceFile) (*Builder, *Graph) {
	t.Helper()
	b := NewBuilder(LevelType, nil)
	g, err := b.Build(context.Background(), files)
	require.NoError(t, err)
	return b, g
}

func TestMutualReferenceScenario(t *testing.T) {
	_, g := buildType(t,
		src("Core/GameConstants.cs", gameConstantsSrc),
		src("Combat/FindTargetSystem.cs", findTargetSystemSrc),
	)

	gc, ok := g.Get("Core.GameConstants")
	require.True(t, ok)
	fts, ok := g.Get("Combat.FindTargetSystem")
	require.True(t, ok)

	assert.Contains(t, gc.Dependencies, "Combat.FindTargetSystem")
	assert.Contains(t, fts.Dependencies, "Core.GameConstants")

	cycles := DetectCycles(g, nil)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"Combat.FindTargetSystem", "Core.GameConstants"}, cycles[0].Nodes)
}

func TestLeafNodeRetained(t *testing.T) {
	_, g := buildType(t,
		src("Core/Leaf.cs", "namespace Core;\npublic class LeafData { }\n"),
		src("Core/User.cs", "namespace Core;\npublic class LeafUser\n{\n    LeafData data;\n}\n"),
	)

	leaf, ok := g.Get("Core.LeafData")
	require.True(t, ok)
	assert.Empty(t, leaf.Dependencies)

	user, ok := g.Get("Core.LeafUser")
	require.True(t, ok)
	assert.Contains(t, user.Dependencies, "Core.LeafData")
}

func TestVisibilityRequiresImportOrSameNamespace(t *testing.T) {
	// Audio never imports Combat, so the mention cannot become an edge.
	_, g := buildType(t,
		src("Combat/Weapon.cs", "namespace Combat;\npublic class Weapon { }\n"),
		src("Audio/Player.cs", "namespace Audio;\npublic class AudioPlayer\n{\n    Weapon w;\n}\n"),
	)

	ap, ok := g.Get("Audio.AudioPlayer")
	require.True(t, ok)
	assert.Empty(t, ap.Dependencies)
}

func TestGlobalNamespaceAlwaysVisible(t *testing.T) {
	_, g := buildType(t,
		src("Shared/Utility.cs", "public class Utility { }\n"),
		src("Core/Consumer.cs", "namespace Core;\npublic class Consumer\n{\n    Utility util;\n}\n"),
	)

	consumer, ok := g.Get("Core.Consumer")
	require.True(t, ok)
	assert.Contains(t, consumer.Dependencies, "Global.Utility")
}

func TestSelfReferenceExcluded(t *testing.T) {
	_, g := buildType(t,
		src("Core/Node.cs", "namespace Core;\npublic class TreeNode\n{\n    TreeNode parent;\n}\n"),
	)

	n, ok := g.Get("Core.TreeNode")
	require.True(t, ok)
	assert.Empty(t, n.Dependencies)
}

func TestEvidenceCarriesFileAndLine(t *testing.T) {
	_, g := buildType(t,
		src("Core/GameConstants.cs", gameConstantsSrc),
		src("Combat/FindTargetSystem.cs", findTargetSystemSrc),
	)

	fts, _ := g.Get("Combat.FindTargetSystem")
	d, ok := fts.Details["Core.GameConstants"]
	require.True(t, ok)
	require.NotEmpty(t, d.Reasons)
	assert.Contains(t, d.Reasons[0], "field declaration")
	assert.Contains(t, d.Reasons[0], "Combat/FindTargetSystem.cs:7")
	assert.Equal(t, []int{7}, d.LineNumbers)
}

func TestIgnoredNamespacePrefixes(t *testing.T) {
	b := NewBuilder(LevelType, []string{"Vendor"})
	g, err := b.Build(context.Background(), []scanner.SourceFile{
		src("Vendor/Lib.cs", "namespace Vendor.Lib;\npublic class VendorThing { }\n"),
		src("Core/App.cs", "using Vendor.Lib;\nnamespace Core;\npublic class App\n{\n    VendorThing v;\n}\n"),
	})
	require.NoError(t, err)

	_, vendorPresent := g.Get("Vendor.Lib.VendorThing")
	assert.False(t, vendorPresent)
	app, _ := g.Get("Core.App")
	assert.Empty(t, app.Dependencies)
}

func TestSystemLevelFiltersBySuffix(t *testing.T) {
	b := NewBuilder(LevelSystem, nil)
	g, err := b.Build(context.Background(), []scanner.SourceFile{
		src("Combat/FindTargetSystem.cs", `using Core;
namespace Combat;
[UpdateAfter(typeof(MovementSystem))]
public class FindTargetSystem
{
}
`),
		src("Core/MovementSystem.cs", "namespace Core;\npublic class MovementSystem { }\n"),
		src("Core/Health.cs", "namespace Core;\npublic struct Health { }\n"),
	})
	require.NoError(t, err)

	_, ok := g.Get("Core.Health")
	assert.False(t, ok, "non-system entity must not appear at system level")

	fts, ok := g.Get("Combat.FindTargetSystem")
	require.True(t, ok)
	require.Contains(t, fts.Dependencies, "Core.MovementSystem")
	d := fts.Details["Core.MovementSystem"]
	assert.Contains(t, d.Reasons[0], "system ordering attribute")
}

func TestNamespaceLevelFoldsQualifiedRefs(t *testing.T) {
	b := NewBuilder(LevelNamespace, nil)
	g, err := b.Build(context.Background(), []scanner.SourceFile{
		src("Core/Constants.cs", "namespace Core;\npublic class Constants { }\n"),
		// No using directive: only the qualified reference links the two.
		src("Combat/Attack.cs", `namespace Combat;
public class Attack
{
    int max = Core.Constants.Max;
}
`),
	})
	require.NoError(t, err)

	combat, ok := g.Get("Combat")
	require.True(t, ok)
	assert.Equal(t, "", combat.FilePath, "namespace nodes are not anchored to one file")
	require.Contains(t, combat.Dependencies, "Core")
	assert.Contains(t, combat.Details["Core"].Reasons[0], "qualified reference")
}

func TestNestedNamespaceDeclarationIsNotAnEdge(t *testing.T) {
	b := NewBuilder(LevelNamespace, nil)
	g, err := b.Build(context.Background(), []scanner.SourceFile{
		// Core.Sub's own declaration names its ancestor; that must not
		// become an edge Core.Sub -> Core.
		src("Sub/X.cs", "namespace Core.Sub;\npublic class X { }\n"),
		src("Core/Y.cs", `namespace Core;
public class Y
{
    Core.Sub.X field;
}
`),
	})
	require.NoError(t, err)

	core, ok := g.Get("Core")
	require.True(t, ok)
	assert.Contains(t, core.Dependencies, "Core.Sub")

	sub, ok := g.Get("Core.Sub")
	require.True(t, ok)
	assert.Empty(t, sub.Dependencies, "declaring a nested namespace references nothing")

	assert.Empty(t, DetectCycles(g, nil), "a one-way parent/child reference is not a cycle")
}

func TestNamespaceLevelUsingDirectiveEdge(t *testing.T) {
	b := NewBuilder(LevelNamespace, nil)
	g, err := b.Build(context.Background(), []scanner.SourceFile{
		src("Core/A.cs", "namespace Core;\npublic class A { }\n"),
		src("Combat/B.cs", "using Core;\nnamespace Combat;\npublic class B { }\n"),
	})
	require.NoError(t, err)

	combat, _ := g.Get("Combat")
	require.Contains(t, combat.Dependencies, "Core")
	assert.Contains(t, combat.Details["Core"].Reasons[0], "using directive")
}

func TestIncrementalRemovesVanishedEntity(t *testing.T) {
	b, g := buildType(t,
		src("Core/A.cs", "namespace Core;\npublic class Alpha { }\npublic class Beta { }\n"),
	)
	_, ok := g.Get("Core.Beta")
	require.True(t, ok)

	g2, err := b.BuildIncremental(context.Background(), g,
		[]scanner.SourceFile{src("Core/A.cs", "namespace Core;\npublic class Alpha { }\n")},
		nil,
	)
	require.NoError(t, err)

	_, ok = g2.Get("Core.Beta")
	assert.False(t, ok)
	_, ok = g2.Get("Core.Alpha")
	assert.True(t, ok)
}

func TestIncrementalLeavesUnrelatedNodesUntouched(t *testing.T) {
	b, g := buildType(t,
		src("Core/A.cs", "namespace Core;\npublic class Alpha { }\n"),
		src("Core/B.cs", "namespace Core;\npublic class Beta\n{\n    Alpha a;\n}\n"),
		src("Core/C.cs", "namespace Core;\npublic class Gamma { }\n"),
	)

	before, _ := g.Get("Core.Gamma")
	g2, err := b.BuildIncremental(context.Background(), g,
		[]scanner.SourceFile{src("Core/B.cs", "namespace Core;\npublic class Beta { }\n")},
		nil,
	)
	require.NoError(t, err)

	after, ok := g2.Get("Core.Gamma")
	require.True(t, ok)
	assert.Equal(t, before, after, "unrelated node must be identical after incremental rebuild")

	beta, _ := g2.Get("Core.Beta")
	assert.Empty(t, beta.Dependencies)
}

func TestIncrementalRemovedFile(t *testing.T) {
	b, g := buildType(t,
		src("Core/A.cs", "namespace Core;\npublic class Alpha { }\n"),
		src("Core/B.cs", "namespace Core;\npublic class Beta { }\n"),
	)

	g2, err := b.BuildIncremental(context.Background(), g, nil, []string{"Core/B.cs"})
	require.NoError(t, err)

	_, ok := g2.Get("Core.Beta")
	assert.False(t, ok)
	_, ok = g2.Get("Core.Alpha")
	assert.True(t, ok)
}

func TestNestedEntityNotRegistered(t *testing.T) {
	_, g := buildType(t,
		src("Core/Outer.cs", `namespace Core;
public class Outer
{
    public class Inner { }
}
`),
		src("Core/User.cs", "namespace Core;\npublic class InnerUser\n{\n    Inner i;\n}\n"),
	)

	_, ok := g.Get("Core.Inner")
	assert.False(t, ok)
	user, _ := g.Get("Core.InnerUser")
	assert.Empty(t, user.Dependencies, "nested types are invisible to cross-file resolution")
}
