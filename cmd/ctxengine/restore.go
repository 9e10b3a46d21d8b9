package main

import (
	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Restore the current session's active context from a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()
			if err := a.orchestrator.Restore(ctx, args[0]); err != nil {
				return fail(cmd, err)
			}
			if err := persistSession(a); err != nil {
				return fail(cmd, err)
			}
			presenter.Success("restored from snapshot " + args[0])
			return nil
		},
	}
}
