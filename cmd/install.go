package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	devFlag      bool
	prodFlag     bool
	saveDevFlag  bool
	saveProdFlag bool
)

var installCmd = &cobra.Command{
	Use:     "install [package[@version]...]",
	Aliases: []string{"i"},
	Short:   "Install dependencies",
	Long:    `Install every dependency listed in package.json, or add and install the packages named on the command line.`,
	RunE:    runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVar(&devFlag, "dev", false, "(no effect beyond the default) include devDependencies")
	installCmd.Flags().BoolVar(&prodFlag, "prod", false, "skip devDependencies")
	installCmd.Flags().BoolVarP(&saveDevFlag, "save-dev", "D", false, "save added packages to devDependencies")
	installCmd.Flags().BoolVarP(&saveProdFlag, "save-prod", "P", false, "save added packages to dependencies (default)")
	installCmd.Flags().BoolVarP(&recursiveFlag, "recursive", "r", false, "also install every workspace project found under the current directory")
	installCmd.Flags().BoolVar(&legacyPeerDepsFlag, "legacy-peer-deps", false, "forward --legacy-peer-deps to a configured bootstrap installer")
}

func runInstall(cmd *cobra.Command, args []string) error {
	start := time.Now()

	pm, err := buildManager(!prodFlag)
	if err != nil {
		return fmt.Errorf("error creating package manager: %w", err)
	}

	dir, err := projectDir()
	if err != nil {
		return err
	}

	req := managerInstallRequest(dir, args, saveDevFlag)
	if err := pm.Install(context.Background(), req); err != nil {
		return err
	}

	if !quietFlag {
		fmt.Printf("done in %v\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
