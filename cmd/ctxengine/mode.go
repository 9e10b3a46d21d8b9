package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [assistant|planning|developer|debugger]",
		Short: "Show the current mode, or transition to a new one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()

			if len(args) == 0 {
				fmt.Println(a.modes.Current().Mode)
				return nil
			}

			to := model.Mode(args[0])
			transition, err := a.orchestrator.TransitionMode(ctx, to, "manual")
			if err != nil {
				return fail(cmd, err)
			}
			if err := persistSession(a); err != nil {
				return fail(cmd, err)
			}
			presenter.Success(fmt.Sprintf("switched mode %s -> %s", transition.From, transition.To))
			return nil
		},
	}
	return cmd
}
