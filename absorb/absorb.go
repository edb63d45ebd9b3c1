// Package absorb relocates a bootstrap installer's node_modules output into
// the content-addressed store, recording each newly absorbed package in the
// store index as it goes.
package absorb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/store"
)

// Key identifies one package absorbed into the store during a run.
type Key struct {
	Name    string
	Version string
}

// visited tracks canonical directory paths already walked, breaking
// symlink cycles within a single absorb run (P5).
type visited struct {
	seen map[string]bool
}

func newVisited() *visited {
	return &visited{seen: make(map[string]bool)}
}

func (v *visited) mark(dir string) bool {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	if v.seen[real] {
		return false
	}
	v.seen[real] = true
	return true
}

// Absorb walks scratchModulesDir (a node_modules tree produced by a
// bootstrap installer) and relocates every package directory found into
// idx's store, recursing into each package's own nested node_modules before
// moving on to the next sibling. It returns every (name, version) newly
// absorbed this run.
func Absorb(scratchModulesDir string, idx *store.Index) ([]Key, error) {
	var newKeys []Key
	if err := absorbDir(scratchModulesDir, idx, newVisited(), &newKeys); err != nil {
		return newKeys, err
	}
	return newKeys, nil
}

func absorbDir(modulesDir string, idx *store.Index, v *visited, newKeys *[]Key) error {
	entries, err := os.ReadDir(modulesDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("absorb: reading %s: %w", modulesDir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		pkgDir := filepath.Join(modulesDir, name)
		if !v.mark(pkgDir) {
			continue
		}

		if strings.HasPrefix(name, "@") {
			if err := absorbScopedParent(pkgDir, idx, v, newKeys); err != nil {
				return err
			}
			continue
		}

		if err := absorbPackage(pkgDir, idx, v, newKeys); err != nil {
			return err
		}
	}

	return nil
}

func absorbScopedParent(scopedDir string, idx *store.Index, v *visited, newKeys *[]Key) error {
	entries, err := os.ReadDir(scopedDir)
	if err != nil {
		return fmt.Errorf("absorb: reading scoped dir %s: %w", scopedDir, err)
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		pkgDir := filepath.Join(scopedDir, e.Name())
		if !v.mark(pkgDir) {
			continue
		}
		if err := absorbPackage(pkgDir, idx, v, newKeys); err != nil {
			return err
		}
	}
	return nil
}

func absorbPackage(pkgDir string, idx *store.Index, v *visited, newKeys *[]Key) error {
	m, err := manifest.ReadFile(filepath.Join(pkgDir, manifest.FileName))
	if err != nil {
		return fmt.Errorf("absorb: reading manifest for %s: %w", pkgDir, err)
	}
	if m.Name == "" || m.Version == "" {
		return fmt.Errorf("absorb: %s has no name or version in its manifest", pkgDir)
	}

	nestedModules := filepath.Join(pkgDir, "node_modules")

	if idx.Has(m.Name, m.Version) {
		// The store copy is kept, but packages nested under the redundant
		// scratch copy may still be new to the store.
		if err := absorbDir(nestedModules, idx, v, newKeys); err != nil {
			return err
		}
		if err := os.RemoveAll(pkgDir); err != nil {
			return fmt.Errorf("absorb: removing redundant scratch copy %s: %w", pkgDir, err)
		}
		return nil
	}

	targetDir := idx.EntryDir(m.Name, m.Version)
	if err := os.MkdirAll(filepath.Dir(targetDir), 0755); err != nil {
		return fmt.Errorf("absorb: creating store parent for %s: %w", targetDir, err)
	}

	// The nested node_modules moves together with pkgDir, so it is
	// absorbed from its new place under the store once the rename is done.
	if err := moveIntoStore(pkgDir, targetDir); err != nil {
		return err
	}
	idx.Add(m.Name, m.Version)
	*newKeys = append(*newKeys, Key{Name: m.Name, Version: m.Version})

	nestedModules = filepath.Join(targetDir, "node_modules")
	return absorbDir(nestedModules, idx, v, newKeys)
}

// moveIntoStore renames src onto dst. An error saying dst already exists or
// is a non-empty directory means a concurrent absorb already created dst;
// that is benign, and the scratch copy is dropped.
func moveIntoStore(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		if os.IsExist(err) || strings.Contains(strings.ToLower(err.Error()), "directory not empty") {
			return os.RemoveAll(src)
		}
		if err2 := copyThenRemove(src, dst); err2 != nil {
			return fmt.Errorf("absorb: moving %s to %s: %w", src, dst, err)
		}
	}
	return nil
}

// copyThenRemove is the cross-device fallback for moveIntoStore, used when
// src and dst are not on the same filesystem and os.Rename cannot succeed.
func copyThenRemove(src, dst string) error {
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return err
	}
	return os.RemoveAll(src)
}
