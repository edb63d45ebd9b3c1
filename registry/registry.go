// Package registry adapts the installer to an npm-style registry: fetching
// per-package metadata, resolving a version's tarball URL, and - for
// environments that prefer to hydrate the store via an external installer
// binary rather than direct fetches - driving that bootstrap subprocess.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/utils"
)

var (
	// ErrVersionGone is returned when a version was listed in a package's
	// dist-tags/versions map but carries no usable dist record - it was
	// unpublished or otherwise dropped from the registry after listing.
	ErrVersionGone = errors.New("registry: version dropped from the registry after being listed")

	// ErrNotFound is returned when the registry has no record of a package.
	ErrNotFound = errors.New("registry: package not found")
)

// Dist is the tarball download record for one published version.
type Dist struct {
	Tarball      string `json:"tarball"`
	Shasum       string `json:"shasum"`
	Integrity    string `json:"integrity"`
	UnpackedSize int    `json:"unpackedSize"`
}

// Version is one entry of a package's "versions" map.
type Version struct {
	Name                 string                       `json:"name"`
	Version              string                       `json:"version"`
	Dependencies         map[string]string            `json:"dependencies,omitempty"`
	PeerDependencies     map[string]string            `json:"peerDependencies,omitempty"`
	PeerDependenciesMeta map[string]manifest.PeerMeta `json:"peerDependenciesMeta,omitempty"`
	Bin                  any                          `json:"bin,omitempty"`
	Dist                 Dist                         `json:"dist"`
	License              any                          `json:"license,omitempty"`
	OS                   []string                     `json:"os,omitempty"`
	CPU                  []string                     `json:"cpu,omitempty"`
}

// DistTags maps a registry-side alias (e.g. "latest") to an exact version.
type DistTags map[string]string

// Maintainer is one entry of a package's "maintainers" array.
type Maintainer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PackageInfo is the full per-package document the registry returns.
type PackageInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	DistTags    DistTags           `json:"dist-tags"`
	Versions    map[string]Version `json:"versions"`
	Time        map[string]string  `json:"time,omitempty"`
	Homepage    any                `json:"homepage,omitempty"`
	Keywords    any                `json:"keywords,omitempty"`
	License     any                `json:"license,omitempty"`
	Maintainers any                `json:"maintainers,omitempty"`
}

// Client fetches and caches per-package registry documents. Concurrent
// callers requesting the same package name share the same in-flight fetch.
type Client struct {
	registryURL string
	manifestDir string
	etagDir     string

	flight singleflight.Group

	mu    sync.Mutex
	cache map[string]*PackageInfo
}

// New returns a Client that caches registry documents under manifestDir and
// persists ETags under etagDir, so a second run can send a conditional GET.
func New(registryURL, manifestDir, etagDir string) *Client {
	return &Client{
		registryURL: registryURL,
		manifestDir: manifestDir,
		etagDir:     etagDir,
		cache:       make(map[string]*PackageInfo),
	}
}

// Info returns the registry document for name, fetching and caching it on
// first use. Concurrent requests for the same name share one fetch (I5).
func (c *Client) Info(ctx context.Context, name string) (*PackageInfo, error) {
	v, err, _ := c.flight.Do(name, func() (interface{}, error) {
		return c.fetchInfo(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*PackageInfo), nil
}

func (c *Client) fetchInfo(ctx context.Context, name string) (*PackageInfo, error) {
	c.mu.Lock()
	if cached, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	manifestPath := filepath.Join(c.manifestDir, name+".json")
	etag := c.readETag(name)

	reqURL := c.registryURL + url.PathEscape(name)
	newEtag, status, err := utils.DownloadFile(reqURL, manifestPath, etag)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("registry: fetching %s: %w", name, err)
	}
	if status != http.StatusNotModified && newEtag != "" {
		c.writeETag(name, newEtag)
	}

	info, err := parsePackageInfo(manifestPath)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[name] = info
	c.mu.Unlock()
	return info, nil
}

func parsePackageInfo(path string) (*PackageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading cached manifest %s: %w", path, err)
	}

	var info PackageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("registry: parsing cached manifest %s: %w", path, err)
	}
	return &info, nil
}

// TarballURL returns the dist tarball URL for exactVersion, or
// ErrVersionGone if the version has no tarball record - it was listed but
// dropped from the registry after being listed.
func (c *Client) TarballURL(info *PackageInfo, exactVersion string) (string, error) {
	v, ok := info.Versions[exactVersion]
	if !ok || v.Dist.Tarball == "" {
		return "", fmt.Errorf("%w: %s@%s", ErrVersionGone, info.Name, exactVersion)
	}
	return v.Dist.Tarball, nil
}

// AvailableVersions lists every version a package has ever published,
// without regard to any range - used when the caller has no cached or
// store candidate to pick from.
func (c *Client) AvailableVersions(ctx context.Context, name string) ([]string, error) {
	info, err := c.Info(ctx, name)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(info.Versions))
	for v := range info.Versions {
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) etagPath(name string) string {
	return filepath.Join(c.etagDir, name+".etag")
}

func (c *Client) readETag(name string) string {
	data, err := os.ReadFile(c.etagPath(name))
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *Client) writeETag(name, etag string) {
	path := c.etagPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(etag), 0644)
}
