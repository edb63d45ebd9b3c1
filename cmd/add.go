package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:     "add <package[@version]...>",
	Aliases: []string{"a"},
	Short:   "Add packages to package.json and install them",
	Long:    `Add one or more packages to package.json dependencies (or devDependencies, with -D) and install them.`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVarP(&saveDevFlag, "save-dev", "D", false, "save to devDependencies instead of dependencies")
	addCmd.Flags().BoolVarP(&saveProdFlag, "save-prod", "P", false, "save to dependencies (default)")
	addCmd.Flags().BoolVarP(&recursiveFlag, "recursive", "r", false, "also install every workspace project found under the current directory")
	addCmd.Flags().BoolVar(&legacyPeerDepsFlag, "legacy-peer-deps", false, "forward --legacy-peer-deps to a configured bootstrap installer")
}

func runAdd(cmd *cobra.Command, args []string) error {
	pm, err := buildManager(true)
	if err != nil {
		return fmt.Errorf("error creating package manager: %w", err)
	}

	dir, err := projectDir()
	if err != nil {
		return err
	}

	req := managerInstallRequest(dir, args, saveDevFlag)
	return pm.Install(context.Background(), req)
}
