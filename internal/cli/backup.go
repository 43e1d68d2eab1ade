package cli

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/mesh-intelligence/repbook/pkg/types"
)

func (a *app) newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore all data",
	}
	cmd.AddCommand(a.newBackupExportCmd(), a.newBackupRestoreCmd())
	return cmd
}

func (a *app) newBackupExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write a backup document to a file or stdout",
		Args:  rangeArgs(0, 1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			data, err := s.Backup()
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal backup: %w", err)
			}
			if err := os.WriteFile(args[0], out, 0o644); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			log.WithField("file", args[0]).Info("backup written")
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s\n", args[0])
			return nil
		}),
	}
}

func (a *app) newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file|->",
		Short: "Load a backup document into the store",
		Long: "Restore applies the settings, appends the logs and imports the records\n" +
			"of a backup. Records that fail validation are skipped and reported.",
		Args: exactArgs(1),
		RunE: a.withStore(func(cmd *cobra.Command, args []string, s *store) error {
			src := args[0]
			if src != "-" {
				src = "@" + src
			}
			raw, err := readInput(cmd, src)
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			var data types.BackupData
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("%w: parse backup: %v", types.ErrInvalidData, err)
			}
			if err := s.Restore(&data); err != nil {
				for _, e := range multierr.Errors(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "restore:", e)
				}
				return fmt.Errorf("restore: %d problem(s): %w", len(multierr.Errors(err)), err)
			}
			okStyle.Fprintln(cmd.OutOrStdout(), "Backup restored")
			return nil
		}),
	}
}
