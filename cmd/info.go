package cmd

import (
	"context"
	"fmt"

	"github.com/snpm-dev/snpm/info"
	"github.com/snpm-dev/snpm/registry"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <package[@version]>",
	Short: "Show information about a package",
	Long:  `Display detailed metadata about an npm package including version, license, description, dist-tags, maintainers, and more.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	pkgName, version := parsePackageArg(args[0])

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	client := registry.New(cfg.RegistryURL, cfg.ManifestDir, cfg.EtagDir)
	infoService := info.New(client)

	return infoService.Show(context.Background(), pkgName, version)
}
