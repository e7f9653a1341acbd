package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// SourceFile is one scanned file split into lines, the unit every downstream
// stage consumes.
type SourceFile struct {
	Path  string
	Lines []string
}

type Scanner struct {
	roots        []string
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func New(roots, excludeDirs, excludeFiles []string) (*Scanner, error) {
	s := &Scanner{roots: uniqueRoots(roots)}

	for _, p := range excludeDirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", p, err)
		}
		s.excludeDirs = append(s.excludeDirs, g)
	}
	for _, p := range excludeFiles {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
		s.excludeFiles = append(s.excludeFiles, g)
	}

	return s, nil
}

// ListFiles walks every root and returns the source file paths in
// deterministic order.
func (s *Scanner) ListFiles() ([]string, error) {
	var files []string

	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			base := filepath.Base(path)
			if d.IsDir() {
				for _, g := range s.excludeDirs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}

			if !strings.EqualFold(filepath.Ext(path), ".cs") {
				return nil
			}
			for _, g := range s.excludeFiles {
				if g.Match(base) {
					return nil
				}
			}

			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// ReadFiles loads each path into a SourceFile. A file that fails to read is
// logged and skipped; it must not abort the pass.
func (s *Scanner) ReadFiles(paths []string) []SourceFile {
	files := make([]SourceFile, 0, len(paths))
	for _, path := range paths {
		f, err := ReadFile(path)
		if err != nil {
			slog.Warn("failed to read source file", "path", path, "error", err)
			continue
		}
		files = append(files, f)
	}
	return files
}

func ReadFile(path string) (SourceFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, err
	}
	return SourceFile{Path: path, Lines: SplitLines(string(content))}, nil
}

func SplitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

func uniqueRoots(roots []string) []string {
	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		clean := filepath.Clean(r)
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
