package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/config"
	"github.com/ctxengine/ctxengine/pkg/presenter"
	"github.com/ctxengine/ctxengine/pkg/store"
)

func newMigrateCmd() *cobra.Command {
	var opts store.MigrationOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy flat-layout session files into the tiered history/checkpoints/snapshots layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fail(cmd, err)
			}

			st, err := store.Open(ctx, cfg.StorageRoot)
			if err != nil {
				return fail(cmd, err)
			}
			defer st.Close()

			result, err := st.MigrateLegacyLayout(ctx, opts)
			if err != nil {
				return fail(cmd, err)
			}

			if result.TotalSessions == 0 {
				presenter.Info("no legacy session files found")
				return nil
			}
			verb := "migrated"
			if opts.DryRun {
				verb = "would migrate"
			}
			presenter.Success(fmt.Sprintf("%s %d/%d legacy sessions (%d skipped, %d failed)",
				verb, result.MigratedCount, result.TotalSessions, result.SkippedCount, result.FailedCount))
			for _, id := range result.FailedIDs {
				presenter.Error(fmt.Errorf("migration failed"), id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate and count legacy sessions without writing anything")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-migrate sessions that already have a tiered directory")
	cmd.Flags().StringVar(&opts.BackupDir, "backup", "", "directory to copy legacy files into before they are removed")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "log per-session migration progress")
	return cmd
}
