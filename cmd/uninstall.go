package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <package...>",
	Aliases: []string{"u", "remove", "r"},
	Short:   "Remove packages from package.json and node_modules",
	Long:    `Remove one or more packages from package.json dependencies and unlink them from node_modules. The store itself is never touched.`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	pm, err := buildManager(true)
	if err != nil {
		return fmt.Errorf("error creating package manager: %w", err)
	}

	dir, err := projectDir()
	if err != nil {
		return err
	}

	if err := pm.Uninstall(dir, args); err != nil {
		return fmt.Errorf("error removing package: %w", err)
	}

	fmt.Println("Package removed successfully")
	return nil
}
