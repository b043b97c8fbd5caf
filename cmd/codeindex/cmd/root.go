// Package cmd provides the CLI commands for codeindex: status,
// list-plugins, search symbol_lookup, search search_code, plus an index
// command so the surface is usable end to end.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/coderidge/codeindex/internal/logging"
	"github.com/coderidge/codeindex/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codeindex CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codeindex",
		Short: "Multi-language source-code indexing and retrieval engine",
		Long: `codeindex parses source files per language, extracts symbols,
persists them in a per-repository on-disk index, and answers symbol
lookup and BM25 code-search queries across one or many repositories.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate("codeindex version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	root.PersistentPreRunE = startLogging
	root.PersistentPostRunE = stopLogging

	root.AddCommand(newStatusCmd())
	root.AddCommand(newListPluginsCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// startLogging wires debug logging to the rotating-file writer when
// --debug is set; silent otherwise so stdout stays reserved for command
// output.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled")
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
