// Package store maintains the in-memory index of the content-addressed
// package store: packageName -> set<exactVersion>. The index is seeded by
// scanning the store directory on disk and mutated as new packages are
// absorbed into it during a run.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Key identifies one store entry on disk: Name@Version, or (for scoped
// packages) @org/Name@Version.
type Key struct {
	Name    string
	Version string
}

// Path returns the store entry's path relative to a store directory root.
func (k Key) Path() string {
	if strings.HasPrefix(k.Name, "@") {
		org, simple, ok := splitScope(k.Name)
		if ok {
			return filepath.Join(org, simple+"@"+k.Version)
		}
	}
	return k.Name + "@" + k.Version
}

func splitScope(name string) (org, simple string, ok bool) {
	idx := strings.Index(name, "/")
	if idx <= 0 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// Index is a process-wide, concurrency-safe view of what's in the store.
// Entries are only ever added during a run; removal only happens across
// runs, via the store directory itself.
type Index struct {
	mu       sync.RWMutex
	storeDir string
	versions map[string]map[string]bool
}

// New returns an empty index rooted at storeDir.
func New(storeDir string) *Index {
	return &Index{
		storeDir: storeDir,
		versions: make(map[string]map[string]bool),
	}
}

// Scan walks the store directory and populates an index. A child named
// "@org" is descended into one level. Entries whose terminal name has no
// "@", or whose name/version half is empty, are skipped rather than treated
// as fatal - they may be in-flight writes from a concurrent install.
func Scan(storeDir string) (*Index, error) {
	idx := New(storeDir)

	entries, err := os.ReadDir(storeDir)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := os.ReadDir(filepath.Join(storeDir, e.Name()))
			if err != nil {
				continue
			}
			for _, s := range scoped {
				idx.addTerminal(e.Name(), s.Name())
			}
			continue
		}
		idx.addTerminal("", e.Name())
	}

	return idx, nil
}

// addTerminal parses a terminal directory name ("name@version") and adds it
// to the index, prefixing org when the entry came from a scoped parent dir.
func (idx *Index) addTerminal(org, terminal string) {
	at := strings.LastIndex(terminal, "@")
	if at <= 0 || at == len(terminal)-1 {
		return
	}
	name, ver := terminal[:at], terminal[at+1:]
	if name == "" || ver == "" {
		return
	}
	if org != "" {
		name = org + "/" + name
	}
	idx.Add(name, ver)
}

// Add records name@version in the index. Idempotent.
func (idx *Index) Add(name, version string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	set, ok := idx.versions[name]
	if !ok {
		set = make(map[string]bool)
		idx.versions[name] = set
	}
	set[version] = true
}

// Has reports whether name@version is present in the index.
func (idx *Index) Has(name, version string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.versions[name][version]
}

// Any reports whether any version of name is present in the index.
func (idx *Index) Any(name string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.versions[name]) > 0
}

// Versions returns every version recorded for name, in no particular order.
func (idx *Index) Versions(name string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.versions[name]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// StoreDir returns the root directory this index was scanned from.
func (idx *Index) StoreDir() string {
	return idx.storeDir
}

// EntryDir returns the absolute on-disk path of name@version under the
// index's store directory.
func (idx *Index) EntryDir(name, version string) string {
	return filepath.Join(idx.storeDir, Key{Name: name, Version: version}.Path())
}
