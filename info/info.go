// Package info fetches and prints a registry package's metadata, in the
// style of "npm info".
package info

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/snpm-dev/snpm/registry"
	"github.com/snpm-dev/snpm/version"
)

var (
	nameStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("cyan"))
	versionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	licenseStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("magenta"))
	keyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	urlStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("blue")).Underline(true)
	keywordStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	maintainerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("251"))
	dateStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Info fetches and prints package metadata from a registry.Client.
type Info struct {
	client *registry.Client
}

// New wraps client for metadata lookups.
func New(client *registry.Client) *Info {
	return &Info{client: client}
}

// Show fetches pkgName's registry document and prints requestedVersion's
// (or, if empty, the "latest" dist-tag's) metadata to stdout.
func (i *Info) Show(ctx context.Context, pkgName, requestedVersion string) error {
	pkg, err := i.client.Info(ctx, pkgName)
	if err != nil {
		return fmt.Errorf("package %q not found on the registry: %w", pkgName, err)
	}

	resolvedVersion, err := resolveVersion(pkg, requestedVersion)
	if err != nil {
		return err
	}

	ver, exists := pkg.Versions[resolvedVersion]
	if !exists {
		return fmt.Errorf("version %q not found for package %q", resolvedVersion, pkgName)
	}

	printPackageInfo(pkg, &ver, resolvedVersion)
	return nil
}

// resolveVersion substitutes a dist-tag for requestedVersion if it names
// one, otherwise picks the best store-free match among every published
// version, defaulting to "latest" when requestedVersion is empty.
func resolveVersion(pkg *registry.PackageInfo, requestedVersion string) (string, error) {
	if requestedVersion == "" {
		requestedVersion = "latest"
	}
	if tagged, ok := pkg.DistTags[requestedVersion]; ok {
		return tagged, nil
	}

	versions := make([]string, 0, len(pkg.Versions))
	for v := range pkg.Versions {
		versions = append(versions, v)
	}

	best, ok, err := version.MaxSatisfying(versions, requestedVersion)
	if err != nil {
		return "", fmt.Errorf("info: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("no version of %q satisfies %q", pkg.Name, requestedVersion)
	}
	return best, nil
}

func printPackageInfo(pkg *registry.PackageInfo, ver *registry.Version, resolvedVersion string) {
	license := extractLicense(pkg.License, ver.License)
	depsCount := len(ver.Dependencies)
	versionsCount := len(pkg.Versions)

	fmt.Printf("%s@%s | %s | %s %d | %s %d\n",
		nameStyle.Render(pkg.Name),
		versionStyle.Render(resolvedVersion),
		licenseStyle.Render(license),
		keyStyle.Render("deps:"), depsCount,
		keyStyle.Render("versions:"), versionsCount)

	if pkg.Description != "" {
		fmt.Println(pkg.Description)
	}

	if homepage := extractString(pkg.Homepage); homepage != "" {
		fmt.Println(urlStyle.Render(homepage))
	}

	if keywords := extractKeywords(pkg.Keywords); len(keywords) > 0 {
		fmt.Printf("%s %s\n", keyStyle.Render("keywords:"), keywordStyle.Render(strings.Join(keywords, ", ")))
	}

	fmt.Println()

	fmt.Println(headerStyle.Render("dist"))
	fmt.Printf(" %s %s\n", keyStyle.Render(".tarball:"), urlStyle.Render(ver.Dist.Tarball))
	fmt.Printf(" %s %s\n", keyStyle.Render(".shasum:"), ver.Dist.Shasum)
	if ver.Dist.Integrity != "" {
		fmt.Printf(" %s %s\n", keyStyle.Render(".integrity:"), ver.Dist.Integrity)
	}
	if ver.Dist.UnpackedSize > 0 {
		fmt.Printf(" %s %s\n", keyStyle.Render(".unpackedSize:"), versionStyle.Render(formatBytes(ver.Dist.UnpackedSize)))
	}

	fmt.Println()

	fmt.Println(headerStyle.Render("dist-tags:"))
	printDistTags(pkg.DistTags)

	fmt.Println()

	if maintainers := extractMaintainers(pkg.Maintainers); len(maintainers) > 0 {
		fmt.Println(headerStyle.Render("maintainers:"))
		for _, m := range maintainers {
			if m.Email != "" {
				fmt.Printf("- %s %s\n", maintainerStyle.Render(m.Name), keyStyle.Render("<"+m.Email+">"))
			} else {
				fmt.Printf("- %s\n", maintainerStyle.Render(m.Name))
			}
		}
		fmt.Println()
	}

	if pubDate, ok := pkg.Time[resolvedVersion]; ok {
		fmt.Printf("%s %s\n", keyStyle.Render("Published:"), dateStyle.Render(pubDate))
	}
}

func extractLicense(pkgLicense, verLicense any) string {
	for _, lic := range []any{verLicense, pkgLicense} {
		switch v := lic.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if t, ok := v["type"].(string); ok {
				return t
			}
		}
	}
	return "Unknown"
}

func extractString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func extractKeywords(v any) []string {
	switch kw := v.(type) {
	case []interface{}:
		result := make([]string, 0, len(kw))
		for _, k := range kw {
			if s, ok := k.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return kw
	}
	return nil
}

func extractMaintainers(v any) []registry.Maintainer {
	switch m := v.(type) {
	case []interface{}:
		result := make([]registry.Maintainer, 0, len(m))
		for _, item := range m {
			if obj, ok := item.(map[string]interface{}); ok {
				info := registry.Maintainer{}
				if name, ok := obj["name"].(string); ok {
					info.Name = name
				}
				if email, ok := obj["email"].(string); ok {
					info.Email = email
				}
				if info.Name != "" {
					result = append(result, info)
				}
			}
		}
		return result
	}
	return nil
}

func printDistTags(tags registry.DistTags) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%s %s\n", keyStyle.Render(k+":"), versionStyle.Render(tags[k]))
	}
}

func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
