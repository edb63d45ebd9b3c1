// Package linker builds the visible node_modules layout after the store has
// been populated: top-level links to declared dependencies, transitive
// links for each linked dependency's own dependencies, and peer links
// resolved against each package's parent in the link tree.
package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snpm-dev/snpm/depspec"
	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/store"
	"github.com/snpm-dev/snpm/version"
)

// LinkedPackage is one package directory that received a link during
// passes A or B, recorded so the executable shim handler (C9) can process
// its bin field afterward.
type LinkedPackage struct {
	Dir      string
	Manifest *manifest.Manifest
}

// Plan tracks the state needed across the three linking passes: which
// package directories have already been visited (so transitive and peer
// recursion terminate on cycles), and a table, per node_modules directory,
// of which package directory each declared name resolved to - consulted by
// Pass C to find a peer's resolution in the consuming package's parent.
type Plan struct {
	idx *store.Index

	visited        map[string]bool
	depPackageDirs map[string]map[string]string
	linked         []LinkedPackage
	linkedSeen     map[string]bool
}

// New returns an empty linking plan over idx.
func New(idx *store.Index) *Plan {
	return &Plan{
		idx:            idx,
		visited:        make(map[string]bool),
		depPackageDirs: make(map[string]map[string]string),
		linkedSeen:     make(map[string]bool),
	}
}

// Linked returns every package directory that received a link during
// passes A or B, in link order.
func (p *Plan) Linked() []LinkedPackage {
	return p.linked
}

// LinkProject runs passes A and B for projectDir's own manifest, creating
// projectDir/node_modules as needed. includeDev also links devDependencies
// at the top level.
func (p *Plan) LinkProject(projectDir string, m *manifest.Manifest, includeDev bool) error {
	deps := mergeDeps(m.Dependencies, nil)
	if includeDev {
		deps = mergeDeps(deps, m.DevDependencies)
	}

	nodeModules := filepath.Join(projectDir, "node_modules")
	return p.linkInto(nodeModules, deps, projectDir)
}

// LinkPeers runs pass C over every package directory linked so far.
func (p *Plan) LinkPeers() error {
	for nodeModulesDir, table := range p.depPackageDirs {
		for name, pkgDir := range table {
			_ = name
			if err := p.linkPeersForPackage(pkgDir, nodeModulesDir, make(map[string]bool)); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkInto is passes A and B combined: link every declared dependency
// under nodeModulesDir, then (unless the dependency is a LinkSpec) recurse
// into its own node_modules with its own dependencies.
func (p *Plan) linkInto(nodeModulesDir string, deps map[string]string, baseDir string) error {
	for _, name := range sortedKeys(deps) {
		value := deps[name]

		target, isLink, err := p.resolveTarget(name, value, baseDir)
		if err != nil {
			return err
		}

		linkPath := packageLinkPath(nodeModulesDir, name)
		if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
			return fmt.Errorf("linker: creating %s: %w", filepath.Dir(linkPath), err)
		}
		if err := os.Symlink(target, linkPath); err != nil && !os.IsExist(err) {
			return fmt.Errorf("linker: linking %s: %w", linkPath, err)
		}

		p.record(nodeModulesDir, name, target)

		if isLink {
			// LinkSpec manifests are read only for bin entries; their own
			// dependencies are never followed.
			if m, err := manifest.ReadFile(filepath.Join(target, manifest.FileName)); err == nil {
				p.trackLinked(target, m)
			}
			continue
		}

		canon := canonicalPath(target)
		if p.visited[canon] {
			continue
		}
		p.visited[canon] = true

		m, err := manifest.ReadFile(filepath.Join(target, manifest.FileName))
		if err != nil {
			return fmt.Errorf("linker: reading manifest for %s: %w", target, err)
		}
		p.trackLinked(target, m)

		childNodeModules := filepath.Join(target, "node_modules")
		if err := p.linkInto(childNodeModules, m.Dependencies, target); err != nil {
			return err
		}
	}
	return nil
}

// linkPeersForPackage links pkgDir's declared peers against
// parentNodeModulesDir's resolution table, then recurses into each linked
// peer's own peer edges. Every recursion gets its own copy of visited,
// holding the packages on the path that led to it, so cycles between
// libraries terminate without suppressing a legitimate revisit via a
// different branch.
func (p *Plan) linkPeersForPackage(pkgDir, parentNodeModulesDir string, visited map[string]bool) error {
	canon := canonicalPath(pkgDir)
	if visited[canon] {
		return nil
	}
	visited[canon] = true

	m, err := manifest.ReadFile(filepath.Join(pkgDir, manifest.FileName))
	if err != nil {
		return nil
	}
	if len(m.PeerDependencies) == 0 {
		return nil
	}

	parentTable := p.depPackageDirs[parentNodeModulesDir]
	childNodeModules := filepath.Join(pkgDir, "node_modules")

	for _, peerName := range sortedKeys(m.PeerDependencies) {
		peerDir, ok := parentTable[peerName]
		if !ok {
			continue
		}

		linkPath := packageLinkPath(childNodeModules, peerName)
		if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
			return fmt.Errorf("linker: creating %s: %w", filepath.Dir(linkPath), err)
		}
		if err := os.Symlink(peerDir, linkPath); err != nil && !os.IsExist(err) {
			return fmt.Errorf("linker: linking peer %s: %w", linkPath, err)
		}
		p.record(childNodeModules, peerName, peerDir)

		branch := make(map[string]bool, len(visited))
		for k := range visited {
			branch[k] = true
		}
		if err := p.linkPeersForPackage(peerDir, childNodeModules, branch); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plan) resolveTarget(name, value, baseDir string) (target string, isLink bool, err error) {
	spec, err := depspec.ParseValue(name, value)
	if err != nil {
		return "", false, fmt.Errorf("linker: parsing %s@%s: %w", name, value, err)
	}

	if spec.Link != nil {
		path := spec.Link.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return path, true, nil
	}

	lookupName, rng := name, spec.Range
	if spec.Alias != nil {
		lookupName, rng = spec.Alias.Package, spec.Alias.Range
	}

	if spec.GitHub != nil {
		versions := p.idx.Versions(lookupName)
		if len(versions) == 0 {
			return "", false, fmt.Errorf("linker: no store entry for github dependency %s", lookupName)
		}
		return p.idx.EntryDir(lookupName, versions[0]), false, nil
	}

	versions := p.idx.Versions(lookupName)
	best, ok, err := version.MaxSatisfying(versions, rng)
	if err != nil {
		return "", false, fmt.Errorf("linker: %s: %w", lookupName, err)
	}
	if !ok {
		return "", false, fmt.Errorf("linker: no store version of %s satisfies %s", lookupName, rng)
	}
	return p.idx.EntryDir(lookupName, best), false, nil
}

func (p *Plan) record(nodeModulesDir, name, dir string) {
	table, ok := p.depPackageDirs[nodeModulesDir]
	if !ok {
		table = make(map[string]string)
		p.depPackageDirs[nodeModulesDir] = table
	}
	table[name] = dir
}

func (p *Plan) trackLinked(dir string, m *manifest.Manifest) {
	if p.linkedSeen[dir] {
		return
	}
	p.linkedSeen[dir] = true
	p.linked = append(p.linked, LinkedPackage{Dir: dir, Manifest: m})
}

// packageLinkPath returns the node_modules path a package's symlink must
// be created at: nodeModulesDir/name for unscoped packages, or
// nodeModulesDir/org/simple for scoped ones.
func packageLinkPath(nodeModulesDir, name string) string {
	if org, simple, ok := splitScope(name); ok {
		return filepath.Join(nodeModulesDir, org, simple)
	}
	return filepath.Join(nodeModulesDir, name)
}

func splitScope(name string) (org, simple string, ok bool) {
	if !strings.HasPrefix(name, "@") {
		return "", "", false
	}
	idx := strings.Index(name, "/")
	if idx <= 0 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

func canonicalPath(dir string) string {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return real
	}
	return dir
}

func mergeDeps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
