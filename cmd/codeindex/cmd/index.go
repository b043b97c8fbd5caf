package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coderidge/codeindex/internal/output"
)

func newIndexCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a repository's files",
		Long: `Registers the repository rooted at path (the current directory by
default) and walks it, dispatching every survivor file to the matching
language parser.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, recursive)
		},
	}

	cmd.Flags().BoolVar(&recursive, "recursive", true, "Walk subdirectories")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, recursive bool) error {
	d := buildDispatcher()
	defer func() { _ = d.Close() }()

	entry, err := resolveRepository(d, path)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "indexing %s", entry.Path)

	stats, err := d.IndexDirectory(cmd.Context(), entry.RepositoryID, entry.Path, recursive)
	if err != nil {
		return fmt.Errorf("index %s: %w", entry.Path, err)
	}

	out.Success(fmt.Sprintf("indexed %d/%d files (%d ignored, %d failed)",
		stats.Indexed, stats.Total, stats.Ignored, stats.Failed))
	if stats.Cancelled {
		out.Warning("cancelled before completion")
	}
	return nil
}
