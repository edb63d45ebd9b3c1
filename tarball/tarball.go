// Package tarball fetches and unpacks npm-style package tarballs for
// direct fetch mode: a tarball is downloaded, then unpacked with its
// single top-level "package/" directory stripped into a target directory
// (in an install, a scratch node_modules entry that is later absorbed into
// the store).
package tarball

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/snpm-dev/snpm/utils"
)

// Fetcher downloads tarballs into a scratch directory.
type Fetcher struct {
	scratchDir string
}

// New returns a Fetcher that stages downloaded tarballs under scratchDir.
func New(scratchDir string) *Fetcher {
	return &Fetcher{scratchDir: scratchDir}
}

// Download fetches url into the fetcher's scratch directory, returning the
// path to the downloaded file.
func (f *Fetcher) Download(url string) (string, error) {
	filePath := filepath.Join(f.scratchDir, path.Base(url))
	if _, _, err := utils.DownloadFile(url, filePath, ""); err != nil {
		return "", fmt.Errorf("tarball: downloading %s: %w", url, err)
	}
	return filePath, nil
}

// Unpack extracts the gzip-compressed tar archive at tarballPath into
// targetDir, stripping the single top-level directory every npm tarball is
// packed with (conventionally "package/").
func Unpack(tarballPath, targetDir string) error {
	f, err := os.Open(tarballPath)
	if err != nil {
		return fmt.Errorf("tarball: opening %s: %w", tarballPath, err)
	}
	defer f.Close()

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("tarball: creating %s: %w", targetDir, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("tarball: %s is not a valid gzip stream: %w", tarballPath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tarball: reading %s: %w", tarballPath, err)
		}
		if err := extractEntry(tr, header, targetDir); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, header *tar.Header, targetDir string) error {
	relPath := stripTopLevelDir(header.Name)
	if relPath == "" {
		return nil
	}

	targetPath := filepath.Join(targetDir, relPath)
	if !strings.HasPrefix(filepath.Clean(targetPath), filepath.Clean(targetDir)) {
		return fmt.Errorf("tarball: entry %q escapes target directory", header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(targetPath, 0755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
			return err
		}
		out, err := os.Create(targetPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := io.Copy(out, tr); err != nil {
			return fmt.Errorf("tarball: writing %s: %w", targetPath, err)
		}
		return os.Chmod(targetPath, os.FileMode(header.Mode))
	case tar.TypeSymlink:
		return os.Symlink(header.Linkname, targetPath)
	default:
		return nil
	}
}

// stripTopLevelDir drops the first path component of name ("package/lib/x.js"
// -> "lib/x.js"), skipping entries with no component to strip.
func stripTopLevelDir(name string) string {
	parts := strings.SplitN(filepath.ToSlash(name), "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
