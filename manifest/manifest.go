// Package manifest reads and writes package.json-shaped manifest documents:
// both a project's own manifest (mutated on install/uninstall) and the
// manifests of arbitrary packages sitting in the store or a scratch tree
// (read-only, consulted for name/version/bin/dependencies).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FileName is the manifest's filename within a package or project directory.
const FileName = "package.json"

// PeerMeta is one entry of peerDependenciesMeta.
type PeerMeta struct {
	Optional bool `json:"optional"`
}

// Manifest is the subset of package.json the installer cares about.
type Manifest struct {
	Name                 string              `json:"name"`
	Version              string              `json:"version"`
	Bin                  any                 `json:"bin,omitempty"`
	Scripts              map[string]string   `json:"scripts,omitempty"`
	Dependencies         map[string]string   `json:"dependencies,omitempty"`
	DevDependencies      map[string]string   `json:"devDependencies,omitempty"`
	PeerDependencies     map[string]string   `json:"peerDependencies,omitempty"`
	PeerDependenciesMeta map[string]PeerMeta `json:"peerDependenciesMeta,omitempty"`
}

// ReadFile parses the manifest at path.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Read loads projectDir's manifest. A missing manifest is returned as an
// error - the caller (the orchestrator) decides whether to create one.
func Read(projectDir string) (*Manifest, error) {
	m, err := ReadFile(filepath.Join(projectDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest: %s has no %s: %w", projectDir, FileName, err)
		}
		return nil, err
	}
	return m, nil
}

// EnsureExists writes an empty "{}" manifest into projectDir if one isn't
// already present.
func EnsureExists(projectDir string) error {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("{}\n"), 0644)
}

// Write syncs m.Dependencies and m.DevDependencies onto projectDir's
// manifest file, leaving every other field of the document untouched.
// Within each section, keys are written in sorted order with 2-space
// indentation.
func Write(projectDir string, m *Manifest) error {
	return mutate(projectDir, func(jsonStr string) (string, error) {
		var err error
		jsonStr, err = replaceSection(jsonStr, "dependencies", m.Dependencies)
		if err != nil {
			return "", err
		}
		return replaceSection(jsonStr, "devDependencies", m.DevDependencies)
	})
}

// AddDependency records name at rng under dependencies, re-sorting the
// section's keys.
func AddDependency(projectDir, name, rng string) error {
	return setDep(projectDir, "dependencies", name, rng)
}

// AddDevDependency records name at rng under devDependencies, re-sorting
// the section's keys.
func AddDevDependency(projectDir, name, rng string) error {
	return setDep(projectDir, "devDependencies", name, rng)
}

// RemoveDependency deletes name from both dependencies and devDependencies,
// if present in either.
func RemoveDependency(projectDir, name string) error {
	return mutate(projectDir, func(jsonStr string) (string, error) {
		var err error
		jsonStr, err = sjson.Delete(jsonStr, "dependencies."+pathKey(name))
		if err != nil {
			return "", fmt.Errorf("failed to remove %s from dependencies: %w", name, err)
		}
		jsonStr, err = sjson.Delete(jsonStr, "devDependencies."+pathKey(name))
		if err != nil {
			return "", fmt.Errorf("failed to remove %s from devDependencies: %w", name, err)
		}
		return jsonStr, nil
	})
}

func setDep(projectDir, section, name, rng string) error {
	return mutate(projectDir, func(jsonStr string) (string, error) {
		jsonStr, err := sjson.Set(jsonStr, section+"."+pathKey(name), rng)
		if err != nil {
			return "", fmt.Errorf("failed to set %s.%s: %w", section, name, err)
		}
		return sortSection(jsonStr, section)
	})
}

// pathKey escapes name for use as one component of a gjson/sjson path, so a
// scoped ("@types/node") or dotted ("lodash.merge") name addresses one key.
func pathKey(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '\\', '.', '|', '#', '@', '*', '?':
			b.WriteByte('\\')
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

func mutate(projectDir string, fn func(jsonStr string) (string, error)) error {
	path := filepath.Join(projectDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	updated, err := fn(string(data))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// replaceSection overwrites an entire dependency section with deps, sorted.
// A nil/empty deps map removes the section entirely.
func replaceSection(jsonStr, section string, deps map[string]string) (string, error) {
	if len(deps) == 0 {
		if !gjson.Get(jsonStr, section).Exists() {
			return jsonStr, nil
		}
		return sjson.Delete(jsonStr, section)
	}

	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	jsonStr, err := sjson.Delete(jsonStr, section)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		jsonStr, err = sjson.Set(jsonStr, section+"."+pathKey(k), deps[k])
		if err != nil {
			return "", err
		}
	}
	return jsonStr, nil
}

// sortSection rewrites section's keys in lexicographic order, preserving
// each value's raw JSON (so non-string dependency values, were they ever
// present, survive unchanged).
func sortSection(jsonStr, section string) (string, error) {
	result := gjson.Get(jsonStr, section)
	if !result.Exists() || !result.IsObject() {
		return jsonStr, nil
	}

	entries := result.Map()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		keyJSON, _ := json.Marshal(k)
		b.WriteString("\n    ")
		b.Write(keyJSON)
		b.WriteString(": ")
		b.WriteString(entries[k].Raw)
	}
	if len(keys) > 0 {
		b.WriteString("\n  ")
	}
	b.WriteString("}")

	return sjson.SetRaw(jsonStr, section, b.String())
}
