package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/snpm-dev/snpm/manifest"
	"github.com/snpm-dev/snpm/scripts"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script defined in package.json",
	Long:  `Execute a script defined in the "scripts" section of package.json, with node_modules/.bin prepended to PATH.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	scriptName := args[0]

	dir, err := projectDir()
	if err != nil {
		return err
	}

	m, err := manifest.Read(dir)
	if err != nil {
		return fmt.Errorf("failed to read package.json: %w", err)
	}

	if len(m.Scripts) == 0 {
		return fmt.Errorf("no scripts defined in package.json")
	}

	script, exists := m.Scripts[scriptName]
	if !exists {
		return fmt.Errorf("script %q not found in package.json\n\nAvailable scripts:\n%s",
			scriptName, formatAvailableScripts(m.Scripts))
	}

	nodeModulesPath := filepath.Join(dir, "node_modules")
	executor := scripts.NewScriptExecutor(nodeModulesPath)

	fmt.Printf("\n> %s@%s %s\n", m.Name, m.Version, scriptName)

	return executor.Execute(script, dir, m.Name, m.Version, scriptName)
}

func formatAvailableScripts(scripts map[string]string) string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	result := ""
	for _, name := range names {
		result += fmt.Sprintf("  %s: %s\n", name, scripts[name])
	}
	return result
}
