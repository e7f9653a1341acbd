package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListFilesFindsOnlySource(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "Core/GameConstants.cs", "namespace Core { }")
	writeFile(t, root, "README.md", "# readme")
	b := writeFile(t, root, "Combat/FindTargetSystem.cs", "namespace Combat { }")

	s, err := New([]string{root}, nil, nil)
	require.NoError(t, err)

	files, err := s.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{b, a}, files)
}

func TestListFilesHonorsExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Library/Ignored.cs", "namespace X { }")
	writeFile(t, root, "Core/Generated.g.cs", "namespace Y { }")
	keep := writeFile(t, root, "Core/Keep.cs", "namespace Z { }")

	s, err := New([]string{root}, []string{"Library"}, []string{"*.g.cs"})
	require.NoError(t, err)

	files, err := s.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestReadFilesSkipsUnreadable(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "A.cs", "line1\nline2")

	s, err := New([]string{root}, nil, nil)
	require.NoError(t, err)

	files := s.ReadFiles([]string{path, filepath.Join(root, "missing.cs")})
	require.Len(t, files, 1)
	assert.Equal(t, []string{"line1", "line2"}, files[0].Lines)
}

func TestSplitLinesNormalizesCRLF(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb"))
}

func TestInvalidGlobPattern(t *testing.T) {
	_, err := New([]string{t.TempDir()}, []string{"["}, nil)
	assert.Error(t, err)
}
