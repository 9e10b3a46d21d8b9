package main

import (
	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the current session's conversation, keeping the session and its mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()
			if err := a.orchestrator.Clear(ctx); err != nil {
				return fail(cmd, err)
			}
			presenter.Success("cleared active context")
			return nil
		},
	}
}
