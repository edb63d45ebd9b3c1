package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage package cache",
	Long:  `Manage the package cache directories.`,
}

var clearStoreFlag bool

var cacheRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove cached registry data, or the whole package store with --store",
	Long:  `Remove cached registry manifests, ETags, and tarball scratch files. Pass --store for the separate, destructive step of wiping the content-addressed store itself, discarding every absorbed package.`,
	RunE:  runCacheRm,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheRmCmd.Flags().BoolVar(&clearStoreFlag, "store", false, "wipe the content-addressed store instead of the registry caches")
}

func runCacheRm(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	if clearStoreFlag {
		if err := cfg.ClearStore(); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		fmt.Println("Store cleared successfully")
		return nil
	}

	if err := cfg.ClearCache(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Println("Cache cleared successfully")
	return nil
}
