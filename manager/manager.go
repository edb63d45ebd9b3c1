// Package manager orchestrates an install or uninstall end to end: it turns
// a project manifest and a set of CLI tokens into a fully linked
// node_modules tree, delegating version resolution to the registry, tarball
// materialization to direct fetch or an external bootstrap installer,
// relocation into the store to C6, and symlink planning to C7/C9.
package manager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/snpm-dev/snpm/binlink"
	"github.com/snpm-dev/snpm/config"
	"github.com/snpm-dev/snpm/depspec"
	"github.com/snpm-dev/snpm/linker"
	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/progress"
	"github.com/snpm-dev/snpm/registry"
	"github.com/snpm-dev/snpm/store"
	"github.com/snpm-dev/snpm/workspace"
)

// Options configures a PackageManager's behavior across every install it
// drives.
type Options struct {
	// Recursive installs every manifest-bearing subdirectory under the
	// project root as well, depth first.
	Recursive bool

	// IncludeDev links and resolves devDependencies alongside dependencies.
	// Set to false for --prod/--production installs.
	IncludeDev bool

	// LegacyPeerDeps is forwarded to a configured Bootstrapper.
	LegacyPeerDeps bool

	Verbose bool
	Quiet   bool
}

// PackageManager drives an install/uninstall against one content-addressed
// store, shared registry client, and progress reporter across however many
// projects a single CLI invocation touches.
type PackageManager struct {
	cfg       *config.Config
	idx       *store.Index
	registry  *registry.Client
	bootstrap registry.Bootstrapper
	bin       *binlink.Linker
	progress  *progress.Progress
	opts      Options

	resolveFlight singleflight.Group
	resolveMu     sync.Mutex
	resolveCache  map[string]string
}

// New builds a PackageManager from cfg, scanning the existing store into an
// index and wiring a registry client over it. bootstrap may be
// registry.NoBootstrap{} to force direct fetch mode.
func New(cfg *config.Config, bootstrap registry.Bootstrapper, appVersion string, opts Options) (*PackageManager, error) {
	idx, err := store.Scan(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("manager: scanning store %s: %w", cfg.StoreDir, err)
	}

	return &PackageManager{
		cfg:          cfg,
		idx:          idx,
		registry:     registry.New(cfg.RegistryURL, cfg.ManifestDir, cfg.EtagDir),
		bootstrap:    bootstrap,
		bin:          binlink.New(),
		progress:     progress.New(appVersion, opts.Verbose, opts.Quiet),
		opts:         opts,
		resolveCache: make(map[string]string),
	}, nil
}

// InstallRequest describes one install invocation: either a bare install
// from the manifest already on disk (Tokens empty), or one or more CLI
// tokens to add before installing (Tokens non-empty).
type InstallRequest struct {
	ProjectDir string
	Tokens     []string
	SaveDev    bool
}

// Install runs a full install for req, and for every workspace project
// discovered under it when Options.Recursive is set.
func (pm *PackageManager) Install(ctx context.Context, req InstallRequest) error {
	pm.progress.Start()
	defer pm.progress.Finish()

	if err := pm.installOne(ctx, req); err != nil {
		return err
	}

	if !pm.opts.Recursive {
		return nil
	}

	projects, err := workspace.Discover(req.ProjectDir)
	if err != nil {
		return fmt.Errorf("manager: discovering workspace projects under %s: %w", req.ProjectDir, err)
	}

	for _, dir := range projects {
		sub := InstallRequest{ProjectDir: dir}
		if err := pm.installOne(ctx, sub); err != nil {
			return fmt.Errorf("manager: installing %s: %w", dir, err)
		}
	}
	return nil
}

func (pm *PackageManager) installOne(ctx context.Context, req InstallRequest) error {
	if err := manifest.EnsureExists(req.ProjectDir); err != nil {
		return fmt.Errorf("manager: ensuring manifest in %s: %w", req.ProjectDir, err)
	}

	m, err := manifest.Read(req.ProjectDir)
	if err != nil {
		return err
	}

	pm.progress.SetStatus("resolving dependencies")

	roots := make(map[string]string)

	if len(req.Tokens) > 0 {
		if m.Dependencies == nil {
			m.Dependencies = make(map[string]string)
		}
		if m.DevDependencies == nil {
			m.DevDependencies = make(map[string]string)
		}

		for _, token := range req.Tokens {
			emissions, err := emitDependencies(token, req.SaveDev)
			if err != nil {
				return err
			}
			for _, e := range emissions {
				value, err := pm.writtenRange(ctx, e.Name, e.Range)
				if err != nil {
					return err
				}

				if e.Dev {
					if err := manifest.AddDevDependency(req.ProjectDir, e.Name, value); err != nil {
						return err
					}
					m.DevDependencies[e.Name] = value
				} else {
					if err := manifest.AddDependency(req.ProjectDir, e.Name, value); err != nil {
						return err
					}
					m.Dependencies[e.Name] = value
				}
				roots[e.Name] = value
				pm.progress.AddTopLevel(e.Name, value)
			}
		}
	} else {
		for name, v := range m.Dependencies {
			roots[name] = v
		}
		if pm.opts.IncludeDev {
			for name, v := range m.DevDependencies {
				roots[name] = v
			}
		}
	}

	if err := pm.resolveAll(ctx, roots); err != nil {
		return err
	}

	pm.progress.SetStatus("linking packages")

	plan := linker.New(pm.idx)
	if err := plan.LinkProject(req.ProjectDir, m, pm.opts.IncludeDev || req.SaveDev); err != nil {
		return fmt.Errorf("manager: linking %s: %w", req.ProjectDir, err)
	}

	if err := pm.installShims(req.ProjectDir, plan); err != nil {
		return err
	}

	if err := plan.LinkPeers(); err != nil {
		return fmt.Errorf("manager: linking peers for %s: %w", req.ProjectDir, err)
	}

	return nil
}

// installShims materializes node_modules/.bin entries for every package
// linked into req's project tree during passes A and B.
func (pm *PackageManager) installShims(projectDir string, plan *linker.Plan) error {
	binDir := filepath.Join(projectDir, "node_modules", ".bin")
	for _, lp := range plan.Linked() {
		if lp.Manifest.Bin == nil {
			continue
		}
		if err := pm.bin.LinkPackage(lp.Dir, lp.Manifest.Name, lp.Manifest.Bin, binDir); err != nil {
			return fmt.Errorf("manager: installing shims for %s: %w", lp.Manifest.Name, err)
		}
	}
	return nil
}

// writtenRange decides what value gets recorded in the manifest for a
// freshly added dependency: the range the user typed, verbatim, for
// link:/github:/npm: values and explicit ranges, or a caret range pinned to
// the resolved version when the user gave none.
func (pm *PackageManager) writtenRange(ctx context.Context, name, value string) (string, error) {
	if strings.HasPrefix(value, "link:") || strings.HasPrefix(value, "file:") ||
		strings.HasPrefix(value, "github:") || strings.HasPrefix(value, "npm:") {
		return value, nil
	}
	if value != "" && value != "*" && value != "latest" {
		return value, nil
	}

	exact, err := pm.resolveExactVersion(ctx, name, "*")
	if err != nil {
		return "", err
	}
	return "^" + exact, nil
}

// Uninstall removes names from projectDir's node_modules tree and manifest.
// The store is never touched: other projects may still reference what's
// there.
func (pm *PackageManager) Uninstall(projectDir string, names []string) error {
	if _, err := manifest.Read(projectDir); err != nil {
		return err
	}

	nodeModules := filepath.Join(projectDir, "node_modules")
	for _, name := range names {
		linkPath := packageLinkPath(nodeModules, name)
		if err := os.RemoveAll(linkPath); err != nil {
			return fmt.Errorf("manager: removing %s: %w", linkPath, err)
		}
		if err := manifest.RemoveDependency(projectDir, name); err != nil {
			return err
		}
	}
	return nil
}

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

// emitDependencies turns one CLI token into the dependency emissions it
// produces, expanding the :ts/:dts shorthand when present.
func emitDependencies(token string, saveDev bool) ([]depspec.Emission, error) {
	if strings.HasSuffix(token, ":ts") || strings.HasSuffix(token, ":dts") {
		return depspec.ExpandShorthand(token, saveDev)
	}

	spec, err := depspec.Parse(token)
	if err != nil {
		return nil, err
	}

	value := spec.Range
	switch {
	case spec.Link != nil:
		prefix := "link:"
		if strings.HasPrefix(token, "file:") || strings.Contains(token, "@file:") {
			prefix = "file:"
		}
		value = prefix + spec.Link.Path
	case spec.GitHub != nil:
		value = "github:" + spec.GitHub.Owner + "/" + spec.GitHub.Repo
		if spec.GitHub.Ref != "" {
			value += "#" + spec.GitHub.Ref
		}
	case spec.Alias != nil:
		value = "npm:" + spec.Alias.Package + "@" + spec.Alias.Range
	}

	return []depspec.Emission{{Name: spec.Name, Range: value, Dev: saveDev}}, nil
}
