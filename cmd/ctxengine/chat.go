package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/presenter"
)

func newChatCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a turn to the current session, or start an interactive loop with no --message",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, cfgFlags.model)
			if err != nil {
				return fail(cmd, err)
			}
			defer a.Close()

			if message != "" {
				reply, err := a.orchestrator.SendTurn(ctx, message)
				if err != nil {
					return fail(cmd, err)
				}
				fmt.Println(reply.Content)
				return persistSession(a)
			}

			scanner := bufio.NewScanner(os.Stdin)
			presenter.Info("interactive mode, Ctrl-D to exit")
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				reply, err := a.orchestrator.SendTurn(ctx, line)
				if err != nil {
					presenter.Error(err, "turn failed")
					continue
				}
				fmt.Println(reply.Content)
			}
			return persistSession(a)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "single-shot message to send instead of entering interactive mode")
	return cmd
}

// persistSession re-reads the current session from the manager and
// writes it back to the pointer file, since window_tokens and other
// fields don't change mid-session but the pointer must still exist for
// the next CLI invocation to find.
func persistSession(a *app) error {
	sess, ok := a.sessions.Current()
	if !ok {
		return nil
	}
	return writeCurrentSession(a.st.Layout.Root, sess)
}
