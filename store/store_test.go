package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEntry(t *testing.T, storeDir, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(storeDir, name), 0755))
}

func TestScan(t *testing.T) {
	testCases := []struct {
		name      string
		setupFunc func(t *testing.T, storeDir string)
		validate  func(t *testing.T, idx *Index)
	}{
		{
			name:      "empty store scans to an empty index without error",
			setupFunc: func(t *testing.T, storeDir string) {},
			validate: func(t *testing.T, idx *Index) {
				assert.False(t, idx.Any("left-pad"))
			},
		},
		{
			name: "simple package is indexed",
			setupFunc: func(t *testing.T, storeDir string) {
				mkEntry(t, storeDir, "left-pad@1.3.0")
			},
			validate: func(t *testing.T, idx *Index) {
				assert.True(t, idx.Has("left-pad", "1.3.0"))
				assert.Equal(t, []string{"1.3.0"}, idx.Versions("left-pad"))
			},
		},
		{
			name: "scoped package descends one level into @org",
			setupFunc: func(t *testing.T, storeDir string) {
				mkEntry(t, storeDir, filepath.Join("@scope", "pkg@2.1.3"))
				mkEntry(t, storeDir, filepath.Join("@scope", "pkg@2.2.0"))
			},
			validate: func(t *testing.T, idx *Index) {
				assert.True(t, idx.Has("@scope/pkg", "2.1.3"))
				assert.True(t, idx.Has("@scope/pkg", "2.2.0"))
			},
		},
		{
			name: "malformed entry with no @ is skipped, not fatal",
			setupFunc: func(t *testing.T, storeDir string) {
				mkEntry(t, storeDir, "not-a-store-entry")
				mkEntry(t, storeDir, "tar@1.0.0")
			},
			validate: func(t *testing.T, idx *Index) {
				assert.False(t, idx.Any("not-a-store-entry"))
				assert.True(t, idx.Has("tar", "1.0.0"))
			},
		},
		{
			name: "dotfiles at the top level are ignored",
			setupFunc: func(t *testing.T, storeDir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(storeDir, ".tmp"), 0755))
			},
			validate: func(t *testing.T, idx *Index) {
				assert.False(t, idx.Any(".tmp"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			storeDir := t.TempDir()
			tc.setupFunc(t, storeDir)

			idx, err := Scan(storeDir)
			require.NoError(t, err)
			tc.validate(t, idx)
		})
	}
}

func TestScanNonexistentStoreDir(t *testing.T) {
	idx, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.False(t, idx.Any("anything"))
}

func TestAddIsIdempotent(t *testing.T) {
	idx := New(t.TempDir())
	idx.Add("express", "4.18.2")
	idx.Add("express", "4.18.2")
	assert.Equal(t, []string{"4.18.2"}, idx.Versions("express"))
}

func TestKeyPath(t *testing.T) {
	assert.Equal(t, "express@4.18.2", Key{Name: "express", Version: "4.18.2"}.Path())
	assert.Equal(t, filepath.Join("@scope", "pkg@1.0.0"), Key{Name: "@scope/pkg", Version: "1.0.0"}.Path())
}

func TestEntryDir(t *testing.T) {
	idx := New("/store")
	idx.Add("express", "4.18.2")
	assert.Equal(t, filepath.Join("/store", "express@4.18.2"), idx.EntryDir("express", "4.18.2"))
}
