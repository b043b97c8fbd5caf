package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coderidge/codeindex/internal/corerr"
	"github.com/coderidge/codeindex/internal/dispatcher"
	"github.com/coderidge/codeindex/internal/output"
	"github.com/coderidge/codeindex/internal/store"
)

// newSearchCmd is the "search" parent; it has no RunE of its own, only
// the symbol_lookup and search_code subcommands.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the index: symbol lookup or BM25 code search",
	}
	cmd.AddCommand(newSymbolLookupCmd())
	cmd.AddCommand(newSearchCodeCmd())
	return cmd
}

func newSymbolLookupCmd() *cobra.Command {
	var kind string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "symbol_lookup <name>",
		Short: "Find the definition of a symbol by exact name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := buildDispatcher()
			defer func() { _ = d.Close() }()

			def, err := d.Lookup(cmd.Context(), args[0], store.SymbolKind(kind))
			if err != nil && !corerr.IsKind(err, corerr.KindNotFound) {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(def)
			}

			out := output.New(cmd.OutOrStdout())
			if def == nil {
				// A missing symbol is a successful empty result, not an
				// invocation error.
				out.Warning(fmt.Sprintf("no symbol named %q found", args[0]))
				return nil
			}
			out.Success(fmt.Sprintf("%s (%s) in %s:%d", def.Symbol, def.Kind, def.DefinedIn, def.Line))
			if def.Signature != "" {
				out.Status("", def.Signature)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Restrict to a symbol kind (class, function, method, ...)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newSearchCodeCmd() *cobra.Command {
	var (
		limit      int
		semantic   bool
		repository string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search_code <query>",
		Short: "Full-text BM25 search over indexed code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			opts := dispatcher.SearchOptions{
				Semantic: semantic,
				Limit:    limit,
			}
			if repository != "" {
				opts.RepositoryFilter = []string{repository}
			}

			d := buildDispatcher()
			defer func() { _ = d.Close() }()

			outcome, err := d.Search(cmd.Context(), query, opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(outcome)
			}

			out := output.New(cmd.OutOrStdout())
			if len(outcome.Results) == 0 {
				out.Warning("no matches")
				return nil
			}
			for _, r := range outcome.Results {
				out.Status("", fmt.Sprintf("%s:%d  %s", r.File, r.Line, r.Snippet))
			}
			if outcome.Truncated {
				out.Warning("results truncated by deadline")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Use semantic (vector) search when available, falling back to BM25")
	cmd.Flags().StringVar(&repository, "repository", "", "Restrict search to a single repository id")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
