package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
  "name": "left-pad",
  "version": "1.3.0",
  "bin": "bin/cli.js",
  "dependencies": { "tar": "^6.0.0" },
  "peerDependencies": { "react": "^18" },
  "peerDependenciesMeta": { "react": { "optional": true } }
}`)

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "left-pad", m.Name)
	assert.Equal(t, "1.3.0", m.Version)
	assert.Equal(t, "bin/cli.js", m.Bin)
	assert.Equal(t, "^6.0.0", m.Dependencies["tar"])
	assert.Equal(t, "^18", m.PeerDependencies["react"])
	assert.True(t, m.PeerDependenciesMeta["react"].Optional)
}

func TestReadMissingManifestIsAnError(t *testing.T) {
	_, err := Read(t.TempDir())
	require.Error(t, err)
}

func TestEnsureExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureExists(dir))
	require.NoError(t, EnsureExists(dir)) // idempotent, does not clobber

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Empty(t, m.Name)
}

func TestAddDependencyPreservesOtherFieldsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
  "name": "my-app",
  "version": "1.0.0",
  "scripts": { "test": "go test ./..." },
  "dependencies": { "zeta": "^1.0.0" }
}`)

	require.NoError(t, AddDependency(dir, "alpha", "^2.0.0"))

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "my-app", m.Name)
	assert.Equal(t, "^2.0.0", m.Dependencies["alpha"])
	assert.Equal(t, "^1.0.0", m.Dependencies["zeta"])
	// "scripts" must survive a dependency-only mutation untouched.
	assert.Contains(t, string(raw), `"scripts"`)

	alphaIdx := indexOf(string(raw), `"alpha"`)
	zetaIdx := indexOf(string(raw), `"zeta"`)
	assert.Less(t, alphaIdx, zetaIdx, "dependencies must be written in sorted order")
}

func TestAddDevDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{}`)

	require.NoError(t, AddDevDependency(dir, "@types/express", "^4.17.0"))

	m, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "^4.17.0", m.DevDependencies["@types/express"])
	assert.Empty(t, m.Dependencies)
}

func TestRemoveDependencyRemovesFromBothSections(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
  "dependencies": { "tar": "^6.0.0" },
  "devDependencies": { "tar": "^6.0.0" }
}`)

	require.NoError(t, RemoveDependency(dir, "tar"))

	m, err := Read(dir)
	require.NoError(t, err)
	assert.NotContains(t, m.Dependencies, "tar")
	assert.NotContains(t, m.DevDependencies, "tar")
}

func TestRemoveDependencyNotPresentIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{}`)
	require.NoError(t, RemoveDependency(dir, "nonexistent"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
