package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coderidge/codeindex/internal/lang"
)

func newListPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-plugins",
		Short: "List every language the plugin registry can dispatch to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := lang.NewRegistry()
			out := cmd.OutOrStdout()
			for _, l := range reg.Languages() {
				if _, err := fmt.Fprintln(out, l); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
