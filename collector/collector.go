// Package collector walks a cloned repository tree and selects the source and
// text files worth chunking.
package collector

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// ignoredDirs are directory names skipped during traversal: build artifacts,
// dependency caches, version-control metadata, IDE state, virtual
// environments, logs and binaries.
var ignoredDirs = map[string]struct{}{
	"node_modules":   {},
	".git":           {},
	"dist":           {},
	"build":          {},
	"out":            {},
	".next":          {},
	"coverage":       {},
	".turbo":         {},
	".vscode":        {},
	".idea":          {},
	".cache":         {},
	".vercel":        {},
	".firebase":      {},
	"android":        {},
	"ios":            {},
	".expo":          {},
	"__pycache__":    {},
	".pytest_cache":  {},
	".venv":          {},
	"env":            {},
	"tmp":            {},
	"logs":           {},
	"bin":            {},
}

// allowedExtensions are the recognized source, markup, config and
// documentation file extensions.
var allowedExtensions = map[string]struct{}{
	".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {},
	".py": {}, ".java": {}, ".kt": {}, ".rb": {},
	".go": {}, ".rs": {},
	".cpp": {}, ".cc": {}, ".cxx": {}, ".c": {}, ".h": {},
	".php": {}, ".swift": {}, ".cs": {}, ".dart": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {},
	".md": {}, ".txt": {}, ".rst": {},
	".html": {}, ".css": {}, ".scss": {}, ".sass": {}, ".vue": {},
	".env": {}, ".lock": {}, ".sql": {}, ".sh": {},
}

// configFilePattern recognizes tool config files like vite.config.mjs whose
// final extension is not otherwise in the allow set.
var configFilePattern = regexp.MustCompile(`\.config\.\w+$`)

func isRecognized(name string) bool {
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return true
	}
	return configFilePattern.MatchString(strings.ToLower(name))
}

// File is one collected repository file.
type File struct {
	// Path is the absolute path on disk
	Path string

	// RelPath is the path relative to the repository root, with forward
	// slashes
	RelPath string
}

// Collect recursively walks root and returns the files whose extensions match
// the recognized set, skipping ignored directories. Traversal is lexical, so
// the result order is deterministic for a given filesystem snapshot. Any
// unreadable entry aborts the whole collection; partial listings are never
// returned.
func Collect(root string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			if _, skip := ignoredDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRecognized(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		files = append(files, File{
			Path:    path,
			RelPath: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
