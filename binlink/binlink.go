// Package binlink materializes executable shims under node_modules/.bin for
// every linked package that declares a bin field, prepending an interpreter
// directive to targets that lack one.
package binlink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultInterpreter is prepended to a bin target that has no shebang line
// of its own.
const DefaultInterpreter = "#!/usr/bin/env node\n"

// Linker installs executable shims into a project's node_modules/.bin,
// deduplicating work across a single run: a given target file is only ever
// made executable and shimmed once.
type Linker struct {
	mu        sync.Mutex
	processed map[string]bool
}

// New returns an empty, run-scoped Linker.
func New() *Linker {
	return &Linker{processed: make(map[string]bool)}
}

// LinkPackage installs shims for pkgDir's bin field (if any) into
// binDir (typically <node_modules>/.bin). bin may be a plain JSON string
// (one shim named after the simple part of pkgName) or an object mapping
// shim names to target paths.
func (l *Linker) LinkPackage(pkgDir, pkgName string, bin any, binDir string) error {
	if bin == nil {
		return nil
	}

	shims, err := shimTargets(pkgName, bin)
	if err != nil {
		return fmt.Errorf("binlink: %s: %w", pkgName, err)
	}
	if len(shims) == 0 {
		return nil
	}

	if err := os.MkdirAll(binDir, 0755); err != nil {
		return fmt.Errorf("binlink: creating %s: %w", binDir, err)
	}

	for shimName, relTarget := range shims {
		target := filepath.Join(pkgDir, relTarget)
		if err := l.prepare(target); err != nil {
			return fmt.Errorf("binlink: preparing %s: %w", target, err)
		}

		shimPath := filepath.Join(binDir, shimName)
		if err := os.Symlink(target, shimPath); err != nil && !os.IsExist(err) {
			return fmt.Errorf("binlink: linking shim %s: %w", shimPath, err)
		}
	}
	return nil
}

// prepare ensures target has an interpreter directive and is executable.
// Each target is processed at most once per Linker.
func (l *Linker) prepare(target string) error {
	l.mu.Lock()
	if l.processed[target] {
		l.mu.Unlock()
		return nil
	}
	l.processed[target] = true
	l.mu.Unlock()

	f, err := os.Open(target)
	if err != nil {
		return err
	}
	var first [1]byte
	n, readErr := f.Read(first[:])
	f.Close()
	if readErr != nil && n == 0 {
		return readErr
	}

	if n == 0 || first[0] != '#' {
		if err := prependInterpreter(target); err != nil {
			return err
		}
	}

	return os.Chmod(target, 0755)
}

func prependInterpreter(target string) error {
	original, err := os.ReadFile(target)
	if err != nil {
		return err
	}

	tmp := target + ".snpm-shim-tmp"
	content := append([]byte(DefaultInterpreter), original...)
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// shimTargets normalizes a manifest's bin field into shimName -> relative
// target path. A string value names one shim after pkgName's simple part
// (the scope prefix, if any, is stripped). An object value names one shim
// per entry.
func shimTargets(pkgName string, bin any) (map[string]string, error) {
	switch v := bin.(type) {
	case string:
		return map[string]string{simpleName(pkgName): v}, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for name, target := range v {
			s, ok := target.(string)
			if !ok {
				continue
			}
			out[name] = s
		}
		return out, nil
	case json.RawMessage:
		var asString string
		if err := json.Unmarshal(v, &asString); err == nil {
			return map[string]string{simpleName(pkgName): asString}, nil
		}
		var asMap map[string]string
		if err := json.Unmarshal(v, &asMap); err == nil {
			return asMap, nil
		}
		return nil, fmt.Errorf("unrecognized bin field shape")
	default:
		return nil, fmt.Errorf("unrecognized bin field shape %T", bin)
	}
}

func simpleName(pkgName string) string {
	if idx := strings.Index(pkgName, "/"); strings.HasPrefix(pkgName, "@") && idx > 0 {
		return pkgName[idx+1:]
	}
	return pkgName
}
