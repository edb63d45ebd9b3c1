// Package list prints the installed dependency tree of a project by
// walking its node_modules symlinks, in the style of "npm list".
package list

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snpm-dev/snpm/manifest"
)

// Lister prints a project's dependency tree by reading its manifest and
// following the node_modules symlinks the linker created, rather than any
// lock file.
type Lister struct {
	ProjectDir  string
	ProjectName string
	Version     string
	ShowAll     bool
}

// New returns a Lister rooted at projectDir.
func New(projectDir, projectName, version string) *Lister {
	return &Lister{
		ProjectDir:  projectDir,
		ProjectName: projectName,
		Version:     version,
	}
}

// Print writes the header, dependency tree, and package-count summary to
// stdout.
func (l *Lister) Print() {
	l.printHeader()
	seen := make(map[string]bool)
	l.printDependencies(seen)
	fmt.Printf("\n%d packages\n", len(seen))
}

func (l *Lister) printHeader() {
	if l.Version != "" {
		fmt.Printf("%s@%s\n", l.ProjectName, l.Version)
	} else {
		fmt.Println(l.ProjectName)
	}
}

func (l *Lister) printDependencies(seen map[string]bool) {
	m, err := manifest.Read(l.ProjectDir)
	if err != nil {
		return
	}

	isDev := make(map[string]bool)
	for name := range m.Dependencies {
		isDev[name] = false
	}
	for name := range m.DevDependencies {
		if _, exists := isDev[name]; !exists {
			isDev[name] = true
		}
	}

	names := sortedBoolKeys(isDev)
	nodeModules := filepath.Join(l.ProjectDir, "node_modules")

	for i, name := range names {
		prefix := "├──"
		if i == len(names)-1 {
			prefix = "└──"
		}
		pkgDir := packageDir(nodeModules, name)
		l.printPackage(name, pkgDir, prefix, "", isDev[name], 0, seen)
	}
}

func (l *Lister) printPackage(name, pkgDir, prefix, indent string, isDev bool, depth int, seen map[string]bool) {
	m, err := manifest.ReadFile(filepath.Join(pkgDir, manifest.FileName))
	if err != nil {
		return
	}

	// Without ShowAll only top-level entries are printed, but every reachable
	// package is still walked once so the summary counts it.
	canon := canonicalPath(pkgDir)
	if depth == 0 || l.ShowAll {
		devLabel := ""
		if isDev && depth == 0 {
			devLabel = " (dev)"
		}
		fmt.Printf("%s%s %s@%s%s\n", indent, prefix, name, m.Version, devLabel)
	} else if seen[canon] {
		return
	}
	seen[canon] = true

	subDeps := sortedStringKeys(m.Dependencies)
	newIndent := indent
	if strings.HasPrefix(prefix, "├") {
		newIndent += "│   "
	} else {
		newIndent += "    "
	}

	ownNodeModules := filepath.Join(pkgDir, "node_modules")
	rootNodeModules := filepath.Join(l.ProjectDir, "node_modules")

	for i, depName := range subDeps {
		subPrefix := "├──"
		if i == len(subDeps)-1 {
			subPrefix = "└──"
		}

		depDir := packageDir(ownNodeModules, depName)
		if !hasManifest(depDir) {
			depDir = packageDir(rootNodeModules, depName)
			if !hasManifest(depDir) {
				continue
			}
		}
		l.printPackage(depName, depDir, subPrefix, newIndent, false, depth+1, seen)
	}
}

// packageDir resolves name's symlink path under nodeModulesDir, handling the
// scoped @org/name layout the same way the linker writes it.
func packageDir(nodeModulesDir, name string) string {
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

func hasManifest(pkgDir string) bool {
	_, err := os.Stat(filepath.Join(pkgDir, manifest.FileName))
	return err == nil
}

// canonicalPath resolves symlinks so that a package hoisted into several
// places in the tree is only counted once.
func canonicalPath(dir string) string {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		return real
	}
	return dir
}

func sortedBoolKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
