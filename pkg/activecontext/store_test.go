package activecontext

import (
	"testing"

	"github.com/ctxengine/ctxengine/pkg/model"
)

func TestAppendAddsToRecentMessages(t *testing.T) {
	s := New("you are a helpful assistant")
	s.Append(model.Message{ID: "m1", Role: model.RoleUser, Content: "hi"})
	s.Append(model.Message{ID: "m2", Role: model.RoleAssistant, Content: "hello"})

	view := s.View()
	if len(view.RecentMessages) != 2 {
		t.Fatalf("got %d recent messages, want 2", len(view.RecentMessages))
	}
	if view.SystemPrompt != "you are a helpful assistant" {
		t.Errorf("system prompt = %q, unexpected", view.SystemPrompt)
	}
}

func TestReplaceRangeCollapsesMessagesIntoCheckpoint(t *testing.T) {
	s := New("")
	s.Append(model.Message{ID: "m1", Content: "a"})
	s.Append(model.Message{ID: "m2", Content: "b"})
	s.Append(model.Message{ID: "m3", Content: "c"})

	cp := model.CheckpointSummary{ID: "cp1", SummaryText: "a and b summarized"}
	s.ReplaceRange(map[string]bool{"m1": true, "m2": true}, cp)

	view := s.View()
	if len(view.RecentMessages) != 1 || view.RecentMessages[0].ID != "m3" {
		t.Errorf("recent messages after replace = %+v, want only m3", view.RecentMessages)
	}
	if len(view.CheckpointSummaries) != 1 || view.CheckpointSummaries[0].ID != "cp1" {
		t.Errorf("checkpoint summaries = %+v, want one cp1", view.CheckpointSummaries)
	}
}

func TestReplaceCheckpointUpdatesInPlace(t *testing.T) {
	s := New("")
	s.ReplaceRange(map[string]bool{}, model.CheckpointSummary{ID: "cp1", Level: model.CompressionLevel1})
	s.ReplaceCheckpoint(model.CheckpointSummary{ID: "cp1", Level: model.CompressionLevel2})

	view := s.View()
	if len(view.CheckpointSummaries) != 1 || view.CheckpointSummaries[0].Level != model.CompressionLevel2 {
		t.Errorf("checkpoint after ReplaceCheckpoint = %+v, want level 2", view.CheckpointSummaries)
	}
}

func TestClearKeepsSystemPrompt(t *testing.T) {
	s := New("system prompt text")
	s.Append(model.Message{ID: "m1"})
	s.ReplaceRange(map[string]bool{"m1": true}, model.CheckpointSummary{ID: "cp1"})

	s.Clear()

	view := s.View()
	if view.SystemPrompt != "system prompt text" {
		t.Errorf("system prompt lost after Clear(): %q", view.SystemPrompt)
	}
	if len(view.RecentMessages) != 0 || len(view.CheckpointSummaries) != 0 {
		t.Errorf("Clear() left state behind: %+v", view)
	}
}

func TestSnapshotIsIndependentOfFurtherMutation(t *testing.T) {
	s := New("prompt")
	s.Append(model.Message{ID: "m1", Content: "original"})

	snap := s.Snapshot()
	s.Append(model.Message{ID: "m2", Content: "added after snapshot"})

	if len(snap.RecentMessages) != 1 {
		t.Errorf("snapshot mutated by later Append: got %d messages, want 1", len(snap.RecentMessages))
	}
}

func TestSetSystemPromptUpdatesInPlace(t *testing.T) {
	s := New("old prompt")
	s.SetSystemPrompt("new prompt")
	if got := s.View().SystemPrompt; got != "new prompt" {
		t.Errorf("system prompt = %q, want %q", got, "new prompt")
	}
}

func TestRestoreReplacesEntireContext(t *testing.T) {
	s := New("prompt")
	s.Append(model.Message{ID: "m1"})

	s.Restore(model.ActiveContext{
		SystemPrompt:   "restored prompt",
		RecentMessages: []model.Message{{ID: "restored-1"}},
	})

	view := s.View()
	if view.SystemPrompt != "restored prompt" {
		t.Errorf("system prompt = %q, want restored prompt", view.SystemPrompt)
	}
	if len(view.RecentMessages) != 1 || view.RecentMessages[0].ID != "restored-1" {
		t.Errorf("recent messages = %+v, want only restored-1", view.RecentMessages)
	}
}
