package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snpm-dev/snpm/absorb"
	"github.com/snpm-dev/snpm/depspec"
	"github.com/snpm-dev/snpm/integrity"
	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/registry"
	"github.com/snpm-dev/snpm/tarball"
	"github.com/snpm-dev/snpm/version"
)

// resolveAll ensures every root dependency - and everything it transitively
// depends on, in direct fetch mode - is present in the store before the
// linker runs. Which resolution style is used is selected by whether a real
// Bootstrapper was configured.
func (pm *PackageManager) resolveAll(ctx context.Context, roots map[string]string) error {
	if _, noBootstrap := pm.bootstrap.(registry.NoBootstrap); noBootstrap {
		return pm.resolveDirect(ctx, roots)
	}
	return pm.resolveViaBootstrap(ctx, roots)
}

// resolveViaBootstrap hands every root dependency not already satisfied by
// the store to the configured external installer in one batch, then
// absorbs whatever it produced. It does not walk transitive dependencies
// itself - the bootstrap installer resolves those as part of its own run.
func (pm *PackageManager) resolveViaBootstrap(ctx context.Context, roots map[string]string) error {
	missing := make(map[string]string)
	for name, value := range roots {
		spec, err := depspec.ParseValue(name, value)
		if err != nil {
			return err
		}
		if spec.Link != nil {
			continue
		}
		if pm.storeSatisfies(spec) {
			continue
		}
		missing[name] = value
	}
	if len(missing) == 0 {
		return nil
	}

	pm.progress.SetStatus(fmt.Sprintf("bootstrapping %d package(s)", len(missing)))

	scratchDir := filepath.Join(pm.cfg.TarballDir, ".bootstrap-scratch")
	defer os.RemoveAll(scratchDir)

	stdout, stderr, err := pm.bootstrap.Install(ctx, scratchDir, missing, pm.opts.LegacyPeerDeps)
	if err != nil {
		return fmt.Errorf("manager: bootstrap install failed (stdout=%s stderr=%s): %w", stdout, stderr, err)
	}

	newKeys, err := absorb.Absorb(filepath.Join(scratchDir, "node_modules"), pm.idx)
	if err != nil {
		return fmt.Errorf("manager: absorbing bootstrap output: %w", err)
	}
	for range newKeys {
		pm.progress.IncrementCount()
	}
	return nil
}

func (pm *PackageManager) storeSatisfies(spec depspec.Spec) bool {
	if spec.Link != nil {
		return true
	}
	if spec.GitHub != nil {
		return pm.idx.Any(spec.Name)
	}

	lookupName, rng := spec.Name, spec.Range
	if spec.Alias != nil {
		lookupName, rng = spec.Alias.Package, spec.Alias.Range
	}
	_, ok, _ := version.MaxSatisfying(pm.idx.Versions(lookupName), rng)
	return ok
}

// resolveDirect walks the dependency graph rooted at roots concurrently,
// fetching and absorbing whatever the store doesn't already have.
func (pm *PackageManager) resolveDirect(ctx context.Context, roots map[string]string) error {
	r := newResolver(ctx, pm)
	for name, value := range roots {
		r.enqueue(name, value)
	}
	r.wait()
	return r.firstError()
}

// resolver fans a dependency graph walk out across bounded goroutines,
// deduplicating (name, value) edges so a diamond dependency is only
// resolved once.
type resolver struct {
	pm  *PackageManager
	ctx context.Context
	sem chan struct{}
	wg  sync.WaitGroup

	mu   sync.Mutex
	seen map[string]bool
	errs []error
}

func newResolver(ctx context.Context, pm *PackageManager) *resolver {
	return &resolver{
		pm:   pm,
		ctx:  ctx,
		sem:  make(chan struct{}, 8),
		seen: make(map[string]bool),
	}
}

func (r *resolver) enqueue(name, value string) {
	key := name + "\x00" + value
	r.mu.Lock()
	if r.seen[key] {
		r.mu.Unlock()
		return
	}
	r.seen[key] = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		if err := r.pm.resolveDep(r.ctx, name, value, r); err != nil {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		}
	}()
}

func (r *resolver) wait() { r.wg.Wait() }

func (r *resolver) firstError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}

func (pm *PackageManager) resolveDep(ctx context.Context, name, value string, r *resolver) error {
	spec, err := depspec.ParseValue(name, value)
	if err != nil {
		return err
	}

	switch {
	case spec.Link != nil:
		return nil
	case spec.GitHub != nil:
		return pm.resolveGitHubDep(ctx, name, spec.GitHub, r)
	case spec.Alias != nil:
		return pm.resolveVersionedDep(ctx, spec.Alias.Package, spec.Alias.Range, r)
	default:
		return pm.resolveVersionedDep(ctx, name, spec.Range, r)
	}
}

func (pm *PackageManager) resolveVersionedDep(ctx context.Context, name, rng string, r *resolver) error {
	if best, ok, err := version.MaxSatisfying(pm.idx.Versions(name), rng); err != nil {
		return fmt.Errorf("manager: %s: %w", name, err)
	} else if ok {
		return pm.recurseInto(name, best, r)
	}

	exact, err := pm.resolveExactVersion(ctx, name, rng)
	if err != nil {
		return err
	}

	if !pm.idx.Has(name, exact) {
		if err := pm.fetchAndAbsorb(ctx, name, exact); err != nil {
			return err
		}
	}
	return pm.recurseInto(name, exact, r)
}

// resolveExactVersion resolves name@rng to a concrete version via the
// registry, memoizing concurrent requests for the same (name, rng) pair
// with a singleflight group backed by a small result cache (I5).
func (pm *PackageManager) resolveExactVersion(ctx context.Context, name, rng string) (string, error) {
	key := name + "@" + rng

	pm.resolveMu.Lock()
	if cached, ok := pm.resolveCache[key]; ok {
		pm.resolveMu.Unlock()
		return cached, nil
	}
	pm.resolveMu.Unlock()

	v, err, _ := pm.resolveFlight.Do(key, func() (interface{}, error) {
		info, err := pm.registry.Info(ctx, name)
		if err != nil {
			return nil, err
		}

		target := rng
		if resolved, ok := info.DistTags[rng]; ok {
			target = resolved
		}

		versions := make([]string, 0, len(info.Versions))
		for v := range info.Versions {
			versions = append(versions, v)
		}

		best, ok, err := version.MaxSatisfying(versions, target)
		if err != nil {
			return nil, fmt.Errorf("manager: %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("manager: no version of %s satisfies %s", name, rng)
		}

		pm.resolveMu.Lock()
		pm.resolveCache[key] = best
		pm.resolveMu.Unlock()
		return best, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fetchAndAbsorb downloads name@version's tarball, unpacks it into a
// scratch node_modules tree, and absorbs it into the store through C6 -
// the same materializer a bootstrap installer's output goes through, so
// both resolution styles share one atomic move-into-store path.
func (pm *PackageManager) fetchAndAbsorb(ctx context.Context, name, exactVersion string) error {
	info, err := pm.registry.Info(ctx, name)
	if err != nil {
		return err
	}
	tarballURL, err := pm.registry.TarballURL(info, exactVersion)
	if err != nil {
		return err
	}

	pm.progress.SetStatus(fmt.Sprintf("fetching %s@%s", name, exactVersion))

	fetcher := tarball.New(pm.cfg.TarballDir)
	tarballPath, err := fetcher.Download(tarballURL)
	if err != nil {
		return err
	}
	defer os.Remove(tarballPath)

	scratchDir, err := pm.stageDir(name, exactVersion)
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	scratchModules := filepath.Join(scratchDir, "node_modules")
	if err := tarball.Unpack(tarballPath, packageLinkPath(scratchModules, name)); err != nil {
		return err
	}

	if _, err := absorb.Absorb(scratchModules, pm.idx); err != nil {
		return fmt.Errorf("manager: absorbing %s@%s: %w", name, exactVersion, err)
	}
	pm.progress.IncrementCount()
	return nil
}

// resolveGitHubDep pins a github: dependency to a commit SHA and fetches
// its tarball, rewriting the extracted manifest's name/version so the
// store key matches what the linker will look up under name.
func (pm *PackageManager) resolveGitHubDep(ctx context.Context, name string, gh *depspec.GitHubSpec, r *resolver) error {
	sha, err := resolveGitHubRef(ctx, gh.Owner, gh.Repo, gh.Ref)
	if err != nil {
		return fmt.Errorf("manager: resolving github dependency %s: %w", name, err)
	}
	pinnedVersion := "0.0.0-github." + sha[:12]

	if pm.idx.Has(name, pinnedVersion) {
		return pm.recurseInto(name, pinnedVersion, r)
	}

	pm.progress.SetStatus(fmt.Sprintf("fetching %s from github.com/%s/%s", name, gh.Owner, gh.Repo))

	tarballURL := depspec.GitHubTarballURL(gh, sha)
	fetcher := tarball.New(pm.cfg.TarballDir)
	tarballPath, err := fetcher.Download(tarballURL)
	if err != nil {
		return err
	}
	defer os.Remove(tarballPath)

	scratchDir, err := pm.stageDir(name, pinnedVersion)
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	scratchModules := filepath.Join(scratchDir, "node_modules")
	pkgDir := packageLinkPath(scratchModules, name)
	if err := tarball.Unpack(tarballPath, pkgDir); err != nil {
		return err
	}
	if err := pinManifest(pkgDir, name, pinnedVersion); err != nil {
		return err
	}

	if _, err := absorb.Absorb(scratchModules, pm.idx); err != nil {
		return fmt.Errorf("manager: absorbing github dependency %s: %w", name, err)
	}
	pm.progress.IncrementCount()
	return pm.recurseInto(name, pinnedVersion, r)
}

// pinManifest overwrites an extracted package's name/version so it absorbs
// into the store under the key the consuming manifest's dependency entry
// expects, regardless of what the tarball's own package.json declared.
func pinManifest(pkgDir, name, pinnedVersion string) error {
	m, err := manifest.ReadFile(filepath.Join(pkgDir, manifest.FileName))
	if err != nil {
		return fmt.Errorf("manager: reading extracted manifest for %s: %w", name, err)
	}
	m.Name = name
	m.Version = pinnedVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manager: encoding pinned manifest for %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(pkgDir, manifest.FileName), data, 0644)
}

// recurseInto enqueues name@version's own dependencies for resolution,
// keeping the walk going even when the store already satisfied this edge
// so a partially-populated store from a prior interrupted run still gets
// completed.
func (pm *PackageManager) recurseInto(name, exactVersion string, r *resolver) error {
	path := filepath.Join(pm.idx.EntryDir(name, exactVersion), manifest.FileName)
	m, err := manifest.ReadFile(path)
	if err != nil {
		return fmt.Errorf("manager: reading manifest for %s@%s: %w", name, exactVersion, err)
	}

	for depName, depValue := range m.Dependencies {
		r.enqueue(depName, depValue)
	}
	return nil
}

// stageDir returns the scratch directory for one package's fetch, named
// after a hash of name@version so fetches of different packages never share
// one; the same name@version always maps to the same directory.
func (pm *PackageManager) stageDir(name, exactVersion string) (string, error) {
	digest, err := integrity.HashString(name+"@"+exactVersion, "sha256")
	if err != nil {
		return "", fmt.Errorf("manager: naming scratch dir for %s@%s: %w", name, exactVersion, err)
	}
	dir := filepath.Join(pm.cfg.TarballDir, ".fetch-"+digest[:16])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("manager: creating scratch dir %s: %w", dir, err)
	}
	return dir, nil
}
