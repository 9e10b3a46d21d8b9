package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create or list recovery snapshots of the current session",
	}
	cmd.AddCommand(newSnapshotCreateCmd(), newSnapshotListCmd())
	return cmd
}

func newSnapshotCreateCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Take a user-requested snapshot of the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()
			descriptor, err := a.orchestrator.TakeSnapshot(ctx, model.SnapshotUserRequest, tag)
			if err != nil {
				return fail(cmd, err)
			}
			presenter.Success("created snapshot " + descriptor.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "optional human-readable tag for this snapshot")
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recovery snapshots for the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()
			descriptors, err := a.orchestrator.ListSnapshots(ctx, model.SnapshotFilter{})
			if err != nil {
				return fail(cmd, err)
			}
			if len(descriptors) == 0 {
				presenter.Info("no snapshots")
				return nil
			}
			for _, d := range descriptors {
				fmt.Printf("%s\t%s\t%s\t%s\t%d messages\n", d.ID, d.Purpose, d.Tag, d.Timestamp.Format("2006-01-02T15:04:05"), d.MessageCount)
			}
			return nil
		},
	}
	return cmd
}
