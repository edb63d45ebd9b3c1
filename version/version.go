// Package version implements the range-satisfaction algebra the rest of the
// installer relies on to turn a declared dependency range into a concrete
// version: satisfies(), maxSatisfying(), and the "latest"/"*" normalization
// rule used whenever a caller has no store or registry candidate yet.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// normalizeRange maps the npm-ism "latest" onto the wildcard range every
// semver implementation already understands.
func normalizeRange(rng string) string {
	if rng == "" || rng == "latest" {
		return "*"
	}
	return rng
}

// Satisfies reports whether version satisfies rng. An unparseable range is
// returned as an error rather than silently treated as a non-match.
func Satisfies(ver, rng string) (bool, error) {
	rng = normalizeRange(rng)

	v, err := semver.NewVersion(ver)
	if err != nil {
		return false, fmt.Errorf("version: unparseable version %q: %w", ver, err)
	}

	constraint, err := semver.NewConstraint(rng)
	if err != nil {
		return false, fmt.Errorf("version: unparseable range %q: %w", rng, err)
	}

	return constraint.Check(v), nil
}

// MaxSatisfying returns the highest-precedence version among candidates that
// satisfies rng. Ties are broken by semver precedence (prerelease < release).
// An empty candidate set returns ("", false, nil). An unparseable range is a
// fatal error, never silently swallowed.
func MaxSatisfying(candidates []string, rng string) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}

	rng = normalizeRange(rng)
	constraint, err := semver.NewConstraint(rng)
	if err != nil {
		return "", false, fmt.Errorf("version: unparseable range %q: %w", rng, err)
	}

	type candidate struct {
		raw string
		sem *semver.Version
	}

	var matching []candidate
	for _, raw := range candidates {
		sv, err := semver.NewVersion(raw)
		if err != nil {
			// A malformed entry in the candidate set is skipped, not fatal:
			// it reflects a store/registry record, not caller input.
			continue
		}
		if constraint.Check(sv) {
			matching = append(matching, candidate{raw: raw, sem: sv})
		}
	}

	if len(matching) == 0 {
		return "", false, nil
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].sem.LessThan(matching[j].sem)
	})

	return matching[len(matching)-1].raw, true, nil
}
