package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/compression"
	"github.com/ctxengine/ctxengine/pkg/config"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/orchestrator"
	"github.com/ctxengine/ctxengine/pkg/prompt"
	"github.com/ctxengine/ctxengine/pkg/provider"
	"github.com/ctxengine/ctxengine/pkg/session"
	"github.com/ctxengine/ctxengine/pkg/sizing"
	"github.com/ctxengine/ctxengine/pkg/snapshot"
	"github.com/ctxengine/ctxengine/pkg/snapshotstore"
	"github.com/ctxengine/ctxengine/pkg/store"
	"github.com/ctxengine/ctxengine/pkg/tokencount"
)

// app bundles the wired components a CLI command needs. Each CLI
// invocation is its own process; currentSessionPointer persists just
// enough (model.Session) to resume the previously-started session
// across invocations, reconstructing ActiveContext from the flat-file
// history and checkpoint state.
type app struct {
	cfg          config.Config
	bus          *events.Bus
	st           *store.SessionStore
	sessions     *session.Manager
	orchestrator *orchestrator.Orchestrator
	modes        *prompt.StateMachine
	monitor      *sizing.Monitor
}

// Close stops any background work the app started (the VRAM poller).
func (a *app) Close() {
	if a.monitor != nil {
		a.monitor.StopPolling()
	}
}

func bootstrap(ctx context.Context, modelOverride string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.StorageRoot)
	if err != nil {
		return nil, err
	}

	if _, err := st.MigrateLegacyLayout(ctx, store.MigrationOptions{}); err != nil {
		return nil, errors.Wrap(err, "migrate legacy session layout")
	}

	bus := events.New()
	counter := tokencount.NewTiktokenCounter()
	chat := resolveProvider()

	monitor := sizing.NewMonitor(sizing.HostMemoryProber{}, bus, cfg.Sizing.LowFreeRatio, cfg.Sizing.CriticalFreeRatio)
	sizingController := sizing.NewController(monitor, chat, cfg.Sizing.OverheadMultiplier)
	sessions := session.New(st, sizingController, session.WithBus(bus))

	assembler, err := prompt.NewAssembler()
	if err != nil {
		return nil, errors.Wrap(err, "build prompt assembler")
	}

	sess, resumed := readCurrentSession(st.Layout.Root)
	if modelOverride != "" {
		sess.ModelID = modelOverride
	}

	var modeState model.ModeState
	if resumed {
		if err := resumeSession(ctx, sessions, st, sess); err != nil {
			return nil, err
		}
		modeState, err = st.History.LoadModeState(sess.ID)
		if err != nil {
			return nil, err
		}
	}

	snapDir, err := st.Layout.SnapshotDir(sess.ID)
	if err != nil && resumed {
		return nil, err
	}
	snapStore := snapshotstore.New(snapDir)
	snapshots := snapshot.New(snapStore, sessions.ActiveContext(), bus, model.DefaultRetentionPolicy())
	modes := prompt.NewStateMachine(modeState, snapshots, bus)
	pipeline := compression.New(cfg.Compression, counter, chat, sessions.ActiveContext(), st.History, bus)

	orch := orchestrator.New(cfg.Orchestrator, sessions, st, pipeline, snapshots, modes, assembler, chat, counter, bus)

	if err := monitor.StartPolling(ctx, cfg.Sizing.PollSchedule, sess.ID); err != nil {
		return nil, errors.Wrap(err, "start VRAM poller")
	}

	return &app{cfg: cfg, bus: bus, st: st, sessions: sessions, orchestrator: orch, modes: modes, monitor: monitor}, nil
}

// resumeSession rebuilds an in-memory session and ActiveContext from
// persisted history and checkpoint state, without re-running
// session-start sizing (window_tokens is fixed for a session's
// lifetime, spec §3 invariant 4, so it is read back verbatim).
func resumeSession(ctx context.Context, sessions *session.Manager, st *store.SessionStore, sess model.Session) error {
	messages, err := st.History.LoadMessages(sess.ID)
	if err != nil {
		return errors.Wrap(err, "load session history")
	}
	checkpoints, _, err := st.History.LoadCheckpoints(sess.ID)
	if err != nil {
		return errors.Wrap(err, "load checkpoints")
	}

	// Re-seed the manager's bookkeeping directly: NewSession would
	// recompute window_tokens, which must not change mid-session.
	sessions.Restore(sess, model.ActiveContext{
		RecentMessages:      messages,
		CheckpointSummaries: checkpoints,
	})
	return nil
}

func resolveProvider() provider.ChatProvider {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return provider.NewAnthropicProvider(4096)
	}
	return provider.NewFake()
}

func currentSessionPointerPath(root string) string {
	return filepath.Join(root, "current_session.json")
}

func readCurrentSession(root string) (model.Session, bool) {
	data, err := os.ReadFile(currentSessionPointerPath(root))
	if err != nil {
		return model.Session{}, false
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return model.Session{}, false
	}
	return sess, true
}

func writeCurrentSession(root string, sess model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return os.WriteFile(currentSessionPointerPath(root), data, 0o644)
}
