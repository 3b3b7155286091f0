package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/sydlexius/artbrowser/internal/config"
	"github.com/sydlexius/artbrowser/internal/maintenance"
)

func newBackupCmd(configPath *string) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database and prune old snapshots",
		Example: `  # Take a snapshot now
  artbrowser backup

  # Show existing snapshots
  artbrowser backup --list`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			svc := maintenance.NewService(db, cfg.Database.BackupPath(), cfg.Database.BackupRetention, logger)
			out := cmd.OutOrStdout()

			if !list {
				snap, err := svc.Backup(cmd.Context())
				if err != nil {
					return err
				}
				removed, err := svc.Prune()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s (%s), pruned %d\n", snap.Filename, units.BytesSize(float64(snap.Size)), removed)
				return nil
			}

			snaps, err := svc.List()
			if err != nil {
				return err
			}
			return printSnapshots(out, snaps)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list snapshots instead of taking one")
	return cmd
}

func printSnapshots(w io.Writer, snaps []maintenance.Snapshot) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tCREATED")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Filename, units.BytesSize(float64(s.Size)), s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
