package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnorePatterns are directory trees a photo library commonly
// carries that should never enter the catalog.
var DefaultIgnorePatterns = []string{
	".fototeca/**",
	".git/**",
	"@eaDir/**",
	".thumbnails/**",
	".trash/**",
}

// File is one eligible media file found by a scan: its canonical absolute
// path plus the relative directory components that become tag candidates.
type File struct {
	Path    string
	RelPath string
	Name    string
	Dirs    []string
}

// Scanner lists eligible media files under a root. It is pure and
// re-runnable; eligibility is the image-extension allow-list plus
// gitignore-style ignore patterns.
type Scanner struct {
	ignore *gitignore.GitIgnore
}

// NewScanner creates a Scanner with the given ignore patterns.
func NewScanner(ignorePatterns []string) *Scanner {
	patterns := ignorePatterns
	if patterns == nil {
		patterns = DefaultIgnorePatterns
	}
	return &Scanner{
		ignore: gitignore.CompileIgnoreLines(patterns...),
	}
}

// Scan walks the tree under root and returns every eligible file, with
// paths normalized to absolute form.
func (s *Scanner) Scan(ctx context.Context, root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(absRoot, p)
		if err != nil {
			relPath = p
		}

		if s.ignore.MatchesPath(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if !AllowedExtension(d.Name()) {
			return nil
		}

		files = append(files, File{
			Path:    p,
			RelPath: relPath,
			Name:    d.Name(),
			Dirs:    splitDirs(relPath),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// splitDirs returns the directory components of a relative file path.
// These are the explicit placement signals that become directory-derived
// tags.
func splitDirs(relPath string) []string {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	parts := strings.Split(filepath.ToSlash(dir), "/")
	dirs := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			dirs = append(dirs, part)
		}
	}
	return dirs
}
