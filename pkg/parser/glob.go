package parser

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated
// list of matching file paths. Patterns containing "**" match across directory
// levels. Patterns that don't match any files are returned as-is
// (the caller should handle file-not-found errors).
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		var matches []string
		var err error
		if strings.Contains(pattern, "**") {
			matches, err = walkGlob(pattern)
		} else {
			matches, err = filepath.Glob(pattern)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			// Pattern didn't match anything - include it as literal path
			// This allows for explicit file paths and better error messages later
			if !seen[pattern] {
				seen[pattern] = true
				result = append(result, pattern)
			}
			continue
		}

		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				result = append(result, match)
			}
		}
	}

	// Sort for deterministic ordering
	sort.Strings(result)

	return result, nil
}

// walkGlob walks the static prefix of pattern and matches every regular
// file below it.
func walkGlob(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	root := staticPrefix(pattern)
	var matches []string
	err = filepath.WalkDir(filepath.FromSlash(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == filepath.FromSlash(root) {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if g.Match(filepath.ToSlash(path)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// staticPrefix returns the directory part of pattern before the first
// wildcard.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{")
	if i < 0 {
		return filepath.Dir(pattern)
	}
	dir := pattern[:i]
	if j := strings.LastIndex(dir, "/"); j >= 0 {
		if j == 0 {
			return "/"
		}
		return dir[:j]
	}
	return "."
}
