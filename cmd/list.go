package cmd

import (
	"fmt"

	"github.com/snpm-dev/snpm/list"
	"github.com/snpm-dev/snpm/manifest"
	"github.com/spf13/cobra"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed packages",
	Long:    `Display a tree of installed packages and their dependencies, following the node_modules symlinks directly.`,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listAll, "all", false, "show the full recursive dependency tree")
}

func runList(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	m, err := manifest.Read(dir)
	if err != nil {
		return fmt.Errorf("failed to read package.json: %w", err)
	}

	projectName := m.Name
	if projectName == "" {
		projectName = "project"
	}

	lister := list.New(dir, projectName, m.Version)
	lister.ShowAll = listAll
	lister.Print()

	return nil
}
