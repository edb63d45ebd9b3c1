package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/snpm-dev/snpm/config"
	"github.com/snpm-dev/snpm/manager"
	"github.com/snpm-dev/snpm/registry"
)

var (
	storeDirFlag       string
	bootstrapBinFlag   string
	recursiveFlag      bool
	legacyPeerDepsFlag bool
	verboseFlag        bool
	quietFlag          bool
)

func registerPersistentFlags() {
	rootCmd.PersistentFlags().StringVar(&storeDirFlag, "store-dir", "", "override the base directory holding the content-addressed store (<dir>/store) and the registry caches (default $SNPM_STORE_DIR or ~/.snpm-store)")
	rootCmd.PersistentFlags().StringVar(&bootstrapBinFlag, "bootstrap-bin", "", "delegate dependency resolution to an external installer binary (e.g. npm) instead of direct fetch mode (default $SNPM_BOOTSTRAP_BIN, unset)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print each resolved dependency as it is processed")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress progress output")
}

// resolveBootstrapper picks bootstrap mode over direct fetch mode when
// --bootstrap-bin (or SNPM_BOOTSTRAP_BIN) names an installer binary to
// delegate to; otherwise every command resolves dependencies directly
// against the registry, as it always has.
func resolveBootstrapper() registry.Bootstrapper {
	bin := bootstrapBinFlag
	if bin == "" {
		bin = os.Getenv("SNPM_BOOTSTRAP_BIN")
	}
	if bin == "" {
		return registry.NoBootstrap{}
	}
	return &registry.ExecBootstrapper{Bin: bin}
}

// buildConfig resolves a Config from the environment, honoring a
// --store-dir override.
func buildConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}
	if storeDirFlag != "" {
		cfg.BaseDir = storeDirFlag
		cfg.StoreDir = storeDirFlag + "/store"
		cfg.ManifestDir = storeDirFlag + "/manifest"
		cfg.TarballDir = storeDirFlag + "/tarball"
		cfg.EtagDir = storeDirFlag + "/etag"
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// buildManager wires a PackageManager for the current invocation, folding
// in the persistent flags every install/add/uninstall command shares.
func buildManager(includeDev bool) (*manager.PackageManager, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}

	opts := manager.Options{
		Recursive:      recursiveFlag,
		IncludeDev:     includeDev,
		LegacyPeerDeps: legacyPeerDepsFlag,
		Verbose:        verboseFlag,
		Quiet:          quietFlag,
	}

	return manager.New(cfg, resolveBootstrapper(), getVersion(), opts)
}

func projectDir() (string, error) {
	return os.Getwd()
}

// managerInstallRequest builds an InstallRequest for dir, carrying tokens
// (if any) as packages to add before resolving.
func managerInstallRequest(dir string, tokens []string, saveDev bool) manager.InstallRequest {
	return manager.InstallRequest{
		ProjectDir: dir,
		Tokens:     tokens,
		SaveDev:    saveDev,
	}
}

// parsePackageArg splits a "name@version" CLI token into its name and
// version parts, for commands that look a single package up rather than
// add it as a dependency.
func parsePackageArg(pkgArg string) (string, string) {
	if strings.HasPrefix(pkgArg, "@") {
		rest := pkgArg[1:]
		if idx := strings.Index(rest, "@"); idx >= 0 {
			return "@" + rest[:idx], rest[idx+1:]
		}
		return pkgArg, ""
	}
	parts := strings.SplitN(pkgArg, "@", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
