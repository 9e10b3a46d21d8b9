package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/presenter"
	"github.com/ctxengine/ctxengine/pkg/prompt"
)

func newNewCmd() *cobra.Command {
	var windowCeiling int
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new session, sizing its window from current VRAM and the chosen model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()

			modelID := cfgFlags.model
			if modelID == "" {
				modelID = "fake-model"
			}

			assembler, err := prompt.NewAssembler()
			if err != nil {
				return fail(cmd, err)
			}
			prelimPrompt, err := assembler.Assemble(model.ModeAssistant, 0, nil)
			if err != nil {
				return fail(cmd, err)
			}

			sess, err := a.sessions.NewSession(ctx, modelID, prelimPrompt, windowCeiling)
			if err != nil {
				return fail(cmd, err)
			}

			systemPrompt, err := assembler.Assemble(model.ModeAssistant, sess.WindowTokens, nil)
			if err != nil {
				return fail(cmd, err)
			}
			a.sessions.ActiveContext().SetSystemPrompt(systemPrompt)

			if err := writeCurrentSession(a.st.Layout.Root, sess); err != nil {
				return fail(cmd, err)
			}

			presenter.Success("started session " + sess.ID)
			presenter.Info("window_tokens=" + strconv.Itoa(sess.WindowTokens))
			return nil
		},
	}
	cmd.Flags().IntVar(&windowCeiling, "max-window", 0, "optional user-imposed ceiling on window_tokens")
	return cmd
}
