package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coderidge/codeindex/internal/config"
	"github.com/coderidge/codeindex/internal/output"
	"github.com/coderidge/codeindex/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(paths.WorkspaceRoot())
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the user config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backupPath, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if backupPath == "" {
				out.Warning("no user config to back up")
				return nil
			}
			out.Success("backed up to " + backupPath)
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore the user config from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RestoreUserConfig(args[0]); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Success("restored from " + args[0])
			return nil
		},
	}
}
