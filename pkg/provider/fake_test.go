package provider

import (
	"context"
	"testing"

	"github.com/ctxengine/ctxengine/pkg/model"
)

func TestFakeSendEchoesLastMessageByDefault(t *testing.T) {
	f := NewFake()
	reply, usage, err := f.Send(context.Background(), "fake-model", []model.Message{
		{Role: model.RoleUser, Content: "hello there"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Role != model.RoleAssistant {
		t.Errorf("reply role = %q, want assistant", reply.Role)
	}
	if reply.Content != "ack: hello there" {
		t.Errorf("reply content = %q, want echo of last message", reply.Content)
	}
	if usage.InputTokens < 0 || usage.OutputTokens <= 0 {
		t.Errorf("usage = %+v, expected positive output tokens", usage)
	}
	if f.Calls != 1 {
		t.Errorf("Calls = %d, want 1", f.Calls)
	}
}

func TestFakeSendUsesOverrideWhenSet(t *testing.T) {
	f := NewFake()
	f.SendFn = func(ctx context.Context, modelID string, messages []model.Message) (model.Message, model.Usage, error) {
		return model.Message{Role: model.RoleAssistant, Content: "overridden"}, model.Usage{}, nil
	}

	reply, _, err := f.Send(context.Background(), "fake-model", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "overridden" {
		t.Errorf("reply content = %q, want overridden", reply.Content)
	}
}

func TestFakeSummarizeTruncatesToTargetRatio(t *testing.T) {
	f := NewFake()
	messages := []model.Message{{Content: "0123456789"}}

	summary, _, err := f.Summarize(context.Background(), "fake-model", messages, 0.5)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(summary) != 5 {
		t.Errorf("summary = %q (len %d), want length 5 (50%% of 10 chars)", summary, len(summary))
	}
}

func TestFakeSummarizeFloorsAtOneCharForNonEmptyInput(t *testing.T) {
	f := NewFake()
	summary, _, err := f.Summarize(context.Background(), "fake-model", []model.Message{{Content: "x"}}, 0.0)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "x" {
		t.Errorf("summary = %q, want at least one char kept", summary)
	}
}

func TestFakeModelInfoKnownAndUnknown(t *testing.T) {
	f := NewFake()
	info, err := f.ModelInfo(context.Background(), "fake-model")
	if err != nil {
		t.Fatalf("ModelInfo: %v", err)
	}
	if info.WindowTokens != 32_000 {
		t.Errorf("WindowTokens = %d, want 32000", info.WindowTokens)
	}

	if _, err := f.ModelInfo(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for unknown model")
	}
}
