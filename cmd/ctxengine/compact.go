package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Manually run one compression cycle on the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()
			checkpoint, err := a.orchestrator.Compact(ctx)
			if err != nil {
				return fail(cmd, err)
			}
			if err := persistSession(a); err != nil {
				return fail(cmd, err)
			}
			presenter.Success("created checkpoint " + checkpoint.ID)
			presenter.Info("level=" + strconv.Itoa(int(checkpoint.Level)))
			return nil
		},
	}
}
