package orchestrator

import (
	"context"
	"testing"

	"github.com/ctxengine/ctxengine/pkg/compression"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/prompt"
	"github.com/ctxengine/ctxengine/pkg/provider"
	"github.com/ctxengine/ctxengine/pkg/session"
	"github.com/ctxengine/ctxengine/pkg/sizing"
	"github.com/ctxengine/ctxengine/pkg/snapshot"
	"github.com/ctxengine/ctxengine/pkg/snapshotstore"
	"github.com/ctxengine/ctxengine/pkg/store"
	"github.com/ctxengine/ctxengine/pkg/tokencount"
)

// testHarness wires a full Orchestrator exactly the way cmd/ctxengine's
// bootstrap does for an already-started session: the session is created
// before the pipeline/snapshot coordinator capture its ActiveContext.
type testHarness struct {
	orch     *Orchestrator
	sessions *session.Manager
	bus      *events.Bus
	chat     *provider.Fake
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	return newHarnessWithWindow(t, cfg, 0)
}

func newHarnessWithWindow(t *testing.T, cfg Config, windowCeiling int) *testHarness {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.New()
	chat := provider.NewFake()
	counter := tokencount.EstimateCounter{}
	controller := sizing.NewController(nil, chat, 0)
	sessions := session.New(st, controller, session.WithBus(bus))

	if _, err := sessions.NewSession(ctx, "fake-model", "system prompt", windowCeiling); err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	assembler, err := prompt.NewAssembler()
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	snapStore := snapshotstore.New(t.TempDir())
	snapshots := snapshot.New(snapStore, sessions.ActiveContext(), bus, model.DefaultRetentionPolicy())
	modes := prompt.NewStateMachine(model.ModeState{}, snapshots, bus)

	compressionCfg := compression.DefaultConfig()
	compressionCfg.KeepRecent = 2
	pipeline := compression.New(compressionCfg, counter, chat, sessions.ActiveContext(), st.History, bus)

	orch := New(cfg, sessions, st, pipeline, snapshots, modes, assembler, chat, counter, bus)
	return &testHarness{orch: orch, sessions: sessions, bus: bus, chat: chat}
}

func TestSendTurnAppendsMessagesAndReturnsReply(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	reply, err := h.orch.SendTurn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if reply.Content == "" {
		t.Error("expected a non-empty reply")
	}

	view := h.sessions.ActiveContext().View()
	if len(view.RecentMessages) != 2 {
		t.Fatalf("recent messages = %d, want 2 (user + assistant)", len(view.RecentMessages))
	}
	if view.RecentMessages[0].Role != model.RoleUser || view.RecentMessages[1].Role != model.RoleAssistant {
		t.Errorf("unexpected message roles: %+v", view.RecentMessages)
	}
}

func TestSendTurnWithoutCurrentSessionFails(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	chat := provider.NewFake()
	counter := tokencount.EstimateCounter{}
	controller := sizing.NewController(nil, chat, 0)
	sessions := session.New(st, controller)
	assembler, err := prompt.NewAssembler()
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	snapshots := snapshot.New(snapshotstore.New(t.TempDir()), sessions.ActiveContext(), nil, model.DefaultRetentionPolicy())
	modes := prompt.NewStateMachine(model.ModeState{}, snapshots, nil)
	pipeline := compression.New(compression.DefaultConfig(), counter, chat, sessions.ActiveContext(), st.History, nil)
	orch := New(DefaultConfig(), sessions, st, pipeline, snapshots, modes, assembler, chat, counter, nil)

	_, err = orch.SendTurn(ctx, "hello")
	if err == nil {
		t.Fatal("expected ErrSessionNotFound")
	}
}

func TestSendTurnTriggersCompactionWhenOverWatermark(t *testing.T) {
	cfg := Config{TriggerRatio: 0.5, ReserveTokens: 20, MaxCompactionAttemptsPerTurn: 4}
	h := newHarnessWithWindow(t, cfg, 200) // small window so a handful of turns crosses the watermark

	for i := 0; i < 20; i++ {
		if _, err := h.orch.SendTurn(context.Background(), "message number"); err != nil {
			t.Fatalf("SendTurn(%d): %v", i, err)
		}
	}

	view := h.sessions.ActiveContext().View()
	if len(view.CheckpointSummaries) == 0 {
		t.Error("expected at least one checkpoint once the recent-message watermark was crossed")
	}
}

func TestCompactProducesCheckpoint(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	for i := 0; i < 4; i++ {
		if _, err := h.orch.SendTurn(context.Background(), "filler message"); err != nil {
			t.Fatalf("SendTurn(%d): %v", i, err)
		}
	}

	cp, err := h.orch.Compact(context.Background())
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if cp.ID == "" {
		t.Error("expected a non-empty checkpoint ID")
	}
}

func TestTransitionModeUpdatesSystemPrompt(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	before := h.sessions.ActiveContext().View().SystemPrompt

	transition, err := h.orch.TransitionMode(context.Background(), model.ModeDeveloper, "manual")
	if err != nil {
		t.Fatalf("TransitionMode: %v", err)
	}
	if transition.To != model.ModeDeveloper {
		t.Errorf("transition.To = %q, want developer", transition.To)
	}

	after := h.sessions.ActiveContext().View().SystemPrompt
	if after == before {
		t.Error("expected system prompt to change after mode transition")
	}
}

func TestTakeSnapshotThenListSnapshots(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	descriptor, err := h.orch.TakeSnapshot(context.Background(), model.SnapshotUserRequest, "checkpoint-tag")
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}

	list, err := h.orch.ListSnapshots(context.Background(), model.SnapshotFilter{})
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	found := false
	for _, d := range list {
		if d.ID == descriptor.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected descriptor %s in list %+v", descriptor.ID, list)
	}
}

func TestRestoreReplacesActiveContext(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if _, err := h.orch.SendTurn(context.Background(), "message before snapshot"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	descriptor, err := h.orch.TakeSnapshot(context.Background(), model.SnapshotMilestone, "")
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if _, err := h.orch.SendTurn(context.Background(), "message after snapshot"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	if err := h.orch.Restore(context.Background(), descriptor.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	view := h.sessions.ActiveContext().View()
	if len(view.RecentMessages) != 2 {
		t.Errorf("recent messages after restore = %d, want 2 (the pre-snapshot turn)", len(view.RecentMessages))
	}
}

func TestClearResetsConversationButKeepsSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if _, err := h.orch.SendTurn(context.Background(), "hello"); err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	if err := h.orch.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	view := h.sessions.ActiveContext().View()
	if len(view.RecentMessages) != 0 {
		t.Errorf("recent messages after Clear = %d, want 0", len(view.RecentMessages))
	}
	if _, ok := h.sessions.Current(); !ok {
		t.Error("expected the session itself to survive Clear")
	}
}
