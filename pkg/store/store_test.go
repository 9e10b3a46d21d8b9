package store

import (
	"context"
	"testing"
	"time"

	"github.com/ctxengine/ctxengine/pkg/model"
)

func TestOpenAppendMessageRefreshesCatalog(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sess := model.Session{ID: "sess-1", ModelID: "fake-model", CreatedAt: time.Now()}
	if err := s.AppendMessage(ctx, sess, model.Message{ID: "m1", Role: model.RoleUser, Content: "hello world"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	result, err := s.QuerySessions(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("QuerySessions: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}
	if result.Summaries[0].FirstMessage != "hello world" {
		t.Errorf("FirstMessage = %q, want %q", result.Summaries[0].FirstMessage, "hello world")
	}
	if result.Summaries[0].MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", result.Summaries[0].MessageCount)
	}

	messages, err := s.History.LoadMessages("sess-1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Errorf("history messages = %+v, want one m1", messages)
	}
}

func TestAppendMessageUsesFirstUserPromptOnly(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sess := model.Session{ID: "sess-1", ModelID: "fake-model", CreatedAt: time.Now()}
	if err := s.AppendMessage(ctx, sess, model.Message{ID: "m1", Role: model.RoleSystem, Content: "system setup"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.AppendMessage(ctx, sess, model.Message{ID: "m2", Role: model.RoleUser, Content: "first user turn"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	result, err := s.QuerySessions(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("QuerySessions: %v", err)
	}
	if result.Summaries[0].FirstMessage != "first user turn" {
		t.Errorf("FirstMessage = %q, want the first user message, not the system one", result.Summaries[0].FirstMessage)
	}
	if result.Summaries[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", result.Summaries[0].MessageCount)
	}
}

func TestDeleteSessionRemovesCatalogEntryButKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sess := model.Session{ID: "sess-1", ModelID: "fake-model", CreatedAt: time.Now()}
	if err := s.AppendMessage(ctx, sess, model.Message{ID: "m1", Role: model.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := s.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	result, err := s.QuerySessions(ctx, model.QueryOptions{})
	if err != nil {
		t.Fatalf("QuerySessions: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0 after DeleteSession", result.Total)
	}

	messages, err := s.History.LoadMessages("sess-1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("expected history to survive DeleteSession, got %d messages", len(messages))
	}
}
