package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coderidge/codeindex/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display the dispatcher's health_check result: whether the registry
loads, how many repositories are indexed, their total file count, and
any warnings raised by the sampled BM25-content sanity check.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	d := buildDispatcher()
	defer func() { _ = d.Close() }()

	report, err := d.HealthCheck(cmd.Context())
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())
	switch report.Status {
	case "healthy":
		out.Success(fmt.Sprintf("%d repositories indexed, %d files total", report.IndexedRepos, report.TotalFiles))
	default:
		out.Warning(fmt.Sprintf("status: %s (%d repositories, %d files)", report.Status, report.IndexedRepos, report.TotalFiles))
	}
	for _, w := range report.Warnings {
		out.Warning(w)
	}
	return nil
}
