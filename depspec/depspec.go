// Package depspec parses dependency tokens - both the ones a user types on
// the command line and the ones already sitting in a manifest's
// dependencies/devDependencies sections - into a tagged Spec the rest of
// the installer can act on without re-parsing strings.
package depspec

import (
	"fmt"
	"regexp"
	"strings"
)

// LinkSpec is a dependency value of the form link:<path> or file:<path>.
// Both mean "treat <path> as an already-built package; do not resolve its
// transitive dependencies."
type LinkSpec struct {
	Path string
}

// GitHubSpec is a dependency pinned to a GitHub repository ref.
type GitHubSpec struct {
	Owner string
	Repo  string
	Ref   string // tag, branch, or commit SHA; empty means the default branch
}

// AliasSpec is an npm-style alias: the manifest key is the name the
// consumer imports under, Package/Range identify what actually gets fetched.
type AliasSpec struct {
	Package string
	Range   string
}

// Spec is the tagged union of everything a dependency value can mean. Only
// one of Link, GitHub, or Alias is ever set; when none are, Range holds a
// version range (or the literal "*"/"latest").
type Spec struct {
	Name   string
	Range  string
	Link   *LinkSpec
	GitHub *GitHubSpec
	Alias  *AliasSpec
}

var githubRefPattern = regexp.MustCompile(`^git\+?(?:ssh|https)?://(?:git@)?github\.com[:/]([^/]+)/([^#]+?)(?:\.git)?#(.+)$`)

// Parse parses a full CLI token - "name", "name@range", "@org/name@range",
// "link:<path>", or "file:<path>" - into a Spec.
func Parse(token string) (Spec, error) {
	if path, ok := stripPrefix(token, "link:"); ok {
		return Spec{Name: nameFromLinkPath(path), Link: &LinkSpec{Path: path}}, nil
	}
	if path, ok := stripPrefix(token, "file:"); ok {
		return Spec{Name: nameFromLinkPath(path), Link: &LinkSpec{Path: path}}, nil
	}

	name, rng := splitNameRange(token)
	if name == "" {
		return Spec{}, fmt.Errorf("depspec: empty package name in token %q", token)
	}
	return ParseValue(name, rng)
}

// ParseValue interprets value - already separated from its name, e.g. the
// value half of a manifest dependencies entry - as a Spec for name.
func ParseValue(name, value string) (Spec, error) {
	if path, ok := stripPrefix(value, "link:"); ok {
		return Spec{Name: name, Link: &LinkSpec{Path: path}}, nil
	}
	if path, ok := stripPrefix(value, "file:"); ok {
		return Spec{Name: name, Link: &LinkSpec{Path: path}}, nil
	}
	if gh, ok := parseGitHubSpec(value); ok {
		return Spec{Name: name, GitHub: gh}, nil
	}
	if alias, ok := parseAliasSpec(value); ok {
		return Spec{Name: name, Alias: alias}, nil
	}
	if tarballURL, filename, ok := convertGitURLToTarball(value); ok {
		_ = filename
		return Spec{}, fmt.Errorf("depspec: git URL dependency %q requires github: shorthand (resolved tarball would be %s)", value, tarballURL)
	}

	if value == "" {
		value = "*"
	}
	return Spec{Name: name, Range: value}, nil
}

// splitNameRange splits a CLI token on the first "@" that isn't at position
// 0, so a leading "@" (the scope marker) is never mistaken for a range
// separator. The first "@" rather than the last one matters for tokens
// whose range embeds its own "@", such as "alias@npm:real-package@^2.0.0".
func splitNameRange(token string) (name, rng string) {
	if token == "" {
		return "", "*"
	}

	search := token
	offset := 0
	if strings.HasPrefix(token, "@") {
		search = token[1:]
		offset = 1
	}

	at := strings.Index(search, "@")
	if at < 0 {
		return token, "*"
	}

	return token[:at+offset], token[at+offset+1:]
}

func stripPrefix(value, prefix string) (string, bool) {
	if !strings.HasPrefix(value, prefix) {
		return "", false
	}
	return strings.TrimPrefix(value, prefix), true
}

// nameFromLinkPath derives a best-effort package name from a link/file
// target's final path segment; callers typically overwrite this once the
// target's own manifest has been read.
func nameFromLinkPath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// parseAliasSpec recognizes "npm:package@range" aliasing, e.g.
// "npm:@babel/traverse@^7.25.3" or "npm:lodash@^4.17.21".
func parseAliasSpec(value string) (*AliasSpec, bool) {
	if !strings.HasPrefix(value, "npm:") {
		return nil, false
	}

	name, rng := splitNameRange(strings.TrimPrefix(value, "npm:"))
	if name == "" {
		return nil, false
	}
	if rng == "*" {
		// splitNameRange's default for "no @ present" is indistinguishable
		// from an explicit "*"; the alias grammar instead defaults to latest.
		rng = "latest"
	}
	return &AliasSpec{Package: name, Range: rng}, true
}

// parseGitHubSpec recognizes "github:owner/repo[#ref]".
func parseGitHubSpec(value string) (*GitHubSpec, bool) {
	if !strings.HasPrefix(value, "github:") {
		return nil, false
	}

	spec := strings.TrimPrefix(value, "github:")
	parts := strings.SplitN(spec, "#", 2)

	repoPath := parts[0]
	var ref string
	if len(parts) == 2 {
		ref = parts[1]
	}

	repoParts := strings.SplitN(repoPath, "/", 2)
	if len(repoParts) != 2 || repoParts[0] == "" || repoParts[1] == "" {
		return nil, false
	}

	return &GitHubSpec{Owner: repoParts[0], Repo: repoParts[1], Ref: ref}, true
}

// convertGitURLToTarball recognizes git+ssh/git+https/git GitHub URLs with a
// trailing #ref and turns them into a tarball download URL, so a manifest
// written by another tool (which records the fully resolved git URL rather
// than the github: shorthand) still fails with an actionable message.
func convertGitURLToTarball(gitURL string) (tarballURL, filename string, ok bool) {
	matches := githubRefPattern.FindStringSubmatch(gitURL)
	if len(matches) != 4 {
		return "", "", false
	}

	owner := matches[1]
	repo := strings.TrimSuffix(matches[2], ".git")
	commitSHA := matches[3]

	tarballURL = fmt.Sprintf("https://github.com/%s/%s/archive/%s.tar.gz", owner, repo, commitSHA)
	filename = fmt.Sprintf("%s.tar.gz", commitSHA)
	return tarballURL, filename, true
}

// GitHubTarballURL builds the tarball download URL for a resolved commit.
func GitHubTarballURL(spec *GitHubSpec, commitSHA string) string {
	return fmt.Sprintf("https://github.com/%s/%s/archive/%s.tar.gz", spec.Owner, spec.Repo, commitSHA)
}

// Emission is one (name, range, target) triple produced by ExpandShorthand.
type Emission struct {
	Name  string
	Range string
	Dev   bool
}

// ExpandShorthand expands the add-time CLI shorthands ":ts" and ":dts" into
// one or more dependency emissions. The suffix is recognized on the whole
// token (which may itself carry "@range"); the range is split out once,
// before the @types name is derived, so a range is never mistaken for part
// of a scoped name. originalIsDev reports which section the bare token
// itself (absent any shorthand) would have targeted, e.g. from a
// --save-dev flag.
func ExpandShorthand(token string, originalIsDev bool) ([]Emission, error) {
	suffix := ""
	rest := token
	switch {
	case strings.HasSuffix(token, ":ts"):
		suffix, rest = ":ts", strings.TrimSuffix(token, ":ts")
	case strings.HasSuffix(token, ":dts"):
		suffix, rest = ":dts", strings.TrimSuffix(token, ":dts")
	default:
		name, rng := splitNameRange(token)
		return []Emission{{Name: name, Range: rng, Dev: originalIsDev}}, nil
	}

	name, rng := splitNameRange(rest)
	if name == "" {
		return nil, fmt.Errorf("depspec: empty package name in token %q", token)
	}
	types := typesPackageName(name)

	if suffix == ":ts" {
		return []Emission{
			{Name: name, Range: rng, Dev: originalIsDev},
			{Name: types, Range: "latest", Dev: false},
			{Name: types, Range: "latest", Dev: true},
		}, nil
	}

	return []Emission{
		{Name: name, Range: rng, Dev: originalIsDev},
		{Name: types, Range: "latest", Dev: true},
	}, nil
}

func stripSuffix(token, suffix string) (string, bool) {
	if !strings.HasSuffix(token, suffix) {
		return "", false
	}
	return strings.TrimSuffix(token, suffix), true
}

// typesPackageName maps a package name to its @types equivalent: scoped
// packages collapse the "/" into "__" ("@babel/core" -> "@types/babel__core").
func typesPackageName(name string) string {
	if strings.HasPrefix(name, "@") {
		if idx := strings.Index(name, "/"); idx > 0 {
			org := name[1:idx]
			simple := name[idx+1:]
			return "@types/" + org + "__" + simple
		}
	}
	return "@types/" + name
}
