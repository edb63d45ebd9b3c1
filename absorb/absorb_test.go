package absorb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpm-dev/snpm/store"
)

func writePkg(t *testing.T, dir, name, version string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	doc := `{"name":"` + name + `","version":"` + version + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(doc), 0644))
}

func TestAbsorbMovesSimplePackage(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	writePkg(t, filepath.Join(scratch, "left-pad"), "left-pad", "1.3.0")

	idx := store.New(storeDir)
	keys, err := Absorb(scratch, idx)
	require.NoError(t, err)

	assert.Len(t, keys, 1)
	assert.True(t, idx.Has("left-pad", "1.3.0"))
	assert.DirExists(t, idx.EntryDir("left-pad", "1.3.0"))
	assert.NoDirExists(t, filepath.Join(scratch, "left-pad"))
}

func TestAbsorbScopedPackage(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	writePkg(t, filepath.Join(scratch, "@babel", "core"), "@babel/core", "7.0.0")

	idx := store.New(storeDir)
	_, err := Absorb(scratch, idx)
	require.NoError(t, err)

	assert.True(t, idx.Has("@babel/core", "7.0.0"))
	assert.DirExists(t, idx.EntryDir("@babel/core", "7.0.0"))
}

func TestAbsorbRecursesIntoNestedModules(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	writePkg(t, filepath.Join(scratch, "a"), "a", "1.0.0")
	writePkg(t, filepath.Join(scratch, "a", "node_modules", "b"), "b", "2.0.0")

	idx := store.New(storeDir)
	keys, err := Absorb(scratch, idx)
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.True(t, idx.Has("a", "1.0.0"))
	assert.True(t, idx.Has("b", "2.0.0"))
	assert.DirExists(t, idx.EntryDir("b", "2.0.0"))
}

func TestAbsorbRemovesRedundantScratchCopyWhenAlreadyInStore(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	idx := store.New(storeDir)
	existing := idx.EntryDir("left-pad", "1.3.0")
	writePkg(t, existing, "left-pad", "1.3.0")
	idx.Add("left-pad", "1.3.0")

	writePkg(t, filepath.Join(scratch, "left-pad"), "left-pad", "1.3.0")

	keys, err := Absorb(scratch, idx)
	require.NoError(t, err)
	assert.Empty(t, keys, "already-present package must not be reported as newly absorbed")
	assert.NoDirExists(t, filepath.Join(scratch, "left-pad"))
}

func TestAbsorbMissingManifestIsFatal(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "broken"), 0755))

	idx := store.New(storeDir)
	_, err := Absorb(scratch, idx)
	require.Error(t, err)
}

func TestAbsorbOnMissingScratchDirIsNotAnError(t *testing.T) {
	idx := store.New(t.TempDir())
	keys, err := Absorb(filepath.Join(t.TempDir(), "does-not-exist"), idx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAbsorbBreaksSymlinkCycles(t *testing.T) {
	scratch := t.TempDir()
	storeDir := t.TempDir()

	selfLoop := filepath.Join(scratch, "loop")
	require.NoError(t, os.Symlink(selfLoop, selfLoop))

	idx := store.New(storeDir)
	done := make(chan struct{})
	go func() {
		Absorb(scratch, idx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Absorb did not terminate on a self-referencing symlink")
	}
}
