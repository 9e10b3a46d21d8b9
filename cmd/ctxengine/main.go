// Package main provides the entry point for the ctxengine CLI, which
// drives a ContextOrchestrator from the terminal: starting sessions,
// sending turns, and issuing the clear/snapshot/restore/mode/compact
// maintenance operations (spec §6 CLI surface). Command wiring follows
// the teacher's cmd/kodelet/main.go: a cobra root command, a persistent
// --model flag, and viper-backed defaults loaded by config.Load at
// startup.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctxengine/ctxengine/pkg/config"
	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/presenter"
	"github.com/ctxengine/ctxengine/pkg/telemetry"
	"github.com/ctxengine/ctxengine/pkg/version"
)

var (
	cfgFlags struct {
		model string
	}
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctxengine",
		Short: "Conversational context engine: windowed compression and snapshot recovery for local LLM chat sessions",
	}
	root.PersistentFlags().StringVar(&cfgFlags.model, "model", "", "model id to use for this invocation")

	root.AddCommand(
		newChatCmd(),
		newClearCmd(),
		newNewCmd(),
		newSnapshotCmd(),
		newRestoreCmd(),
		newModeCmd(),
		newCompactCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			presenter.Info(fmt.Sprintf("%s (%s, built %s, %s)", info.Version, info.GitCommit, info.BuildTime, info.GoVersion))
			return nil
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		presenter.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
		logger.L.Warnf("invalid log level %q, defaulting to info", cfg.LogLevel)
		_ = logger.SetLogLevel("info")
	}
	logger.SetLogFormat(cfg.LogFormat)

	ctx := context.Background()
	shutdown, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "ctxengine",
		ServiceVersion: version.Get().Version,
	})
	if err != nil {
		presenter.Error(err, "failed to initialize tracing")
		os.Exit(1)
	}
	defer func() { _ = shutdown(ctx) }()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		presenter.Error(err, "command failed")
		os.Exit(1)
	}
}

func fail(cmd *cobra.Command, err error) error {
	return fmt.Errorf("%s: %w", cmd.Name(), err)
}
