// Package workspace discovers project subdirectories for recursive-mode
// installs: every directory under a root, depth-first, that contains its
// own manifest, excluding node_modules and hidden entries.
package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/snpm-dev/snpm/manifest"
)

// Discover walks rootDir depth-first and returns the absolute path of every
// subdirectory (rootDir itself excluded) that contains a manifest. A
// canonicalized-path visited set guards against symlink re-entry.
func Discover(rootDir string) ([]string, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}

	var projects []string
	visited := make(map[string]bool)
	if err := walk(absRoot, absRoot, visited, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func walk(dir, rootDir string, visited map[string]bool, projects *[]string) error {
	canon := canonicalPath(dir)
	if visited[canon] {
		return nil
	}
	visited[canon] = true

	if dir != rootDir {
		if _, err := os.Stat(filepath.Join(dir, manifest.FileName)); err == nil {
			*projects = append(*projects, dir)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "node_modules" || strings.HasPrefix(name, ".") {
			continue
		}
		if err := walk(filepath.Join(dir, name), rootDir, visited, projects); err != nil {
			return err
		}
	}
	return nil
}

func canonicalPath(dir string) string {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return real
	}
	return dir
}
