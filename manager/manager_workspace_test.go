package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpm-dev/snpm/config"
	"github.com/snpm-dev/snpm/registry"
)

func newTestManager(t *testing.T, opts Options) *PackageManager {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{
		BaseDir:     base,
		StoreDir:    filepath.Join(base, "store"),
		ManifestDir: filepath.Join(base, "manifest"),
		TarballDir:  filepath.Join(base, "tarball"),
		EtagDir:     filepath.Join(base, "etag"),
		RegistryURL: config.DefaultRegistryURL,
	}
	require.NoError(t, cfg.EnsureDirectories())

	pm, err := New(cfg, registry.NoBootstrap{}, "test", opts)
	require.NoError(t, err)
	return pm
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0644))
}

// TestInstallLinksLocalWorkspacePackage exercises a root project depending
// on a sibling package via link:, so the whole resolve -> link path runs
// without touching the registry.
func TestInstallLinksLocalWorkspacePackage(t *testing.T) {
	root := t.TempDir()
	uiDir := filepath.Join(root, "packages", "ui")
	require.NoError(t, os.MkdirAll(uiDir, 0755))

	writeManifest(t, uiDir, `{
		"name": "@myorg/ui",
		"version": "1.5.0"
	}`)
	writeManifest(t, root, `{
		"name": "test-app",
		"version": "1.0.0",
		"dependencies": {
			"@myorg/ui": "link:packages/ui"
		}
	}`)

	pm := newTestManager(t, Options{IncludeDev: true})

	err := pm.Install(context.Background(), InstallRequest{ProjectDir: root})
	require.NoError(t, err)

	linkPath := filepath.Join(root, "node_modules", "@myorg", "ui")
	info, err := os.Lstat(linkPath)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0, "@myorg/ui should be linked as a symlink")

	resolved, err := filepath.EvalSymlinks(linkPath)
	require.NoError(t, err)
	assert.Equal(t, uiDir, resolved)
}

// TestInstallRecursiveDiscoversWorkspaces confirms --recursive installs
// every workspace project under the root, not just the root itself.
func TestInstallRecursiveDiscoversWorkspaces(t *testing.T) {
	root := t.TempDir()
	uiDir := filepath.Join(root, "packages", "ui")
	apiDir := filepath.Join(root, "packages", "api")
	sharedDir := filepath.Join(root, "libs", "shared")
	require.NoError(t, os.MkdirAll(uiDir, 0755))
	require.NoError(t, os.MkdirAll(apiDir, 0755))
	require.NoError(t, os.MkdirAll(sharedDir, 0755))

	writeManifest(t, root, `{
		"name": "test-app",
		"version": "1.0.0",
		"workspaces": ["packages/*"]
	}`)
	writeManifest(t, sharedDir, `{"name": "shared", "version": "1.0.0"}`)
	writeManifest(t, uiDir, `{
		"name": "@myorg/ui",
		"version": "1.0.0",
		"dependencies": {"shared": "link:../../libs/shared"}
	}`)
	writeManifest(t, apiDir, `{
		"name": "@myorg/api",
		"version": "1.0.0",
		"dependencies": {"shared": "link:../../libs/shared"}
	}`)

	pm := newTestManager(t, Options{IncludeDev: true, Recursive: true})

	err := pm.Install(context.Background(), InstallRequest{ProjectDir: root})
	require.NoError(t, err)

	// Each workspace project links its own "shared" dependency, proving
	// installOne ran against ui and api, not just the root.
	assert.FileExists(t, filepath.Join(uiDir, "node_modules", "shared", "package.json"))
	assert.FileExists(t, filepath.Join(apiDir, "node_modules", "shared", "package.json"))
}
