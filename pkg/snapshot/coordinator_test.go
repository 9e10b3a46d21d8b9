package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/ctxengine/ctxengine/pkg/activecontext"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/snapshotstore"
)

func newTestCoordinator(t *testing.T, policy model.RetentionPolicy) (*Coordinator, *activecontext.Store) {
	t.Helper()
	active := activecontext.New("system prompt")
	store := snapshotstore.New(t.TempDir())
	bus := events.New()
	return New(store, active, bus, policy), active
}

func TestCreatePersistsAndPublishesEvent(t *testing.T) {
	coordinator, active := newTestCoordinator(t, model.DefaultRetentionPolicy())
	active.Append(model.Message{ID: "m1", Content: "hi"})

	descriptor, err := coordinator.Create(context.Background(), "sess-1", model.SnapshotUserRequest, "tag-1", model.ModeState{Mode: model.ModeAssistant})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if descriptor.SessionID != "sess-1" || descriptor.Tag != "tag-1" {
		t.Errorf("descriptor = %+v, unexpected", descriptor)
	}
	if descriptor.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", descriptor.MessageCount)
	}

	list, err := coordinator.List(model.SnapshotFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != descriptor.ID {
		t.Errorf("List = %+v, want one entry matching the created descriptor", list)
	}
}

func TestRestoreReplacesActiveContextAndReturnsModeState(t *testing.T) {
	coordinator, active := newTestCoordinator(t, model.DefaultRetentionPolicy())
	active.Append(model.Message{ID: "m1", Content: "before snapshot"})

	descriptor, err := coordinator.Create(context.Background(), "sess-1", model.SnapshotMilestone, "", model.ModeState{Mode: model.ModeDeveloper})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active.Append(model.Message{ID: "m2", Content: "after snapshot, should be discarded on restore"})

	modeState, err := coordinator.Restore(context.Background(), "sess-1", descriptor.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if modeState.Mode != model.ModeDeveloper {
		t.Errorf("restored mode = %q, want developer", modeState.Mode)
	}

	view := active.View()
	if len(view.RecentMessages) != 1 || view.RecentMessages[0].ID != "m1" {
		t.Errorf("recent messages after restore = %+v, want only m1", view.RecentMessages)
	}
}

func TestLatestReturnsSnapshotNotFoundWhenEmpty(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, model.DefaultRetentionPolicy())
	_, err := coordinator.Latest(model.SnapshotFilter{})
	if err == nil {
		t.Fatal("expected ErrSnapshotNotFound, got nil")
	}
}

func TestCreatePrunesModeTransitionsBeyondPolicy(t *testing.T) {
	policy := model.RetentionPolicy{KeepModeTransitions: 2}
	coordinator, _ := newTestCoordinator(t, policy)

	for i := 0; i < 4; i++ {
		if _, err := coordinator.Create(context.Background(), "sess-1", model.SnapshotModeTransition, "", model.ModeState{Mode: model.ModeAssistant}); err != nil {
			t.Fatalf("Create(%d): %v", i, err)
		}
	}

	list, err := coordinator.List(model.SnapshotFilter{Purpose: model.SnapshotModeTransition})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != policy.KeepModeTransitions {
		t.Errorf("got %d mode-transition snapshots, want %d after pruning", len(list), policy.KeepModeTransitions)
	}
}

func TestPruneEmergenciesRemovesOnlyStaleOnes(t *testing.T) {
	coordinator, _ := newTestCoordinator(t, model.RetentionPolicy{EmergencyMaxAge: time.Hour})

	fresh, err := coordinator.Create(context.Background(), "sess-1", model.SnapshotEmergency, "", model.ModeState{})
	if err != nil {
		t.Fatalf("Create(fresh): %v", err)
	}

	if err := coordinator.PruneEmergencies(); err != nil {
		t.Fatalf("PruneEmergencies: %v", err)
	}

	list, err := coordinator.List(model.SnapshotFilter{Purpose: model.SnapshotEmergency})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Errorf("expected the fresh emergency snapshot to survive pruning, got %+v", list)
	}
}
