package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// Fake is an in-memory ChatProvider used by tests throughout the engine
// (sizing, compression, orchestrator), so they never depend on network
// access or API credentials. Its summarization is deterministic:
// truncate joined content to roughly targetRatio of its length, which is
// enough to exercise the pipeline's ratio bookkeeping without an LLM.
type Fake struct {
	mu      sync.Mutex
	Models  map[string]ModelInfo
	SendFn  func(ctx context.Context, modelID string, messages []model.Message) (model.Message, model.Usage, error)
	Calls   int
}

// NewFake builds a Fake seeded with one default model.
func NewFake() *Fake {
	return &Fake{
		Models: map[string]ModelInfo{
			"fake-model": {ID: "fake-model", DisplayName: "Fake Model", WindowTokens: 32_000},
		},
	}
}

// Send implements ChatProvider. Without a SendFn override it replies
// "ack: " followed by the last message's content, and reports usage
// estimated at 4 characters per token for the input and the reply so
// callers exercising usage accounting see non-trivial numbers.
func (f *Fake) Send(ctx context.Context, modelID string, messages []model.Message) (model.Message, model.Usage, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()

	if f.SendFn != nil {
		return f.SendFn(ctx, modelID, messages)
	}

	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	reply := model.Message{Role: model.RoleAssistant, Content: fmt.Sprintf("ack: %s", last)}
	usage := model.Usage{InputTokens: totalChars(messages) / 4, OutputTokens: len(reply.Content) / 4}
	return reply, usage, nil
}

// Summarize implements ChatProvider by truncating the joined message
// content to roughly targetRatio of its length.
func (f *Fake) Summarize(ctx context.Context, modelID string, messages []model.Message, targetRatio float64) (string, model.Usage, error) {
	var joined strings.Builder
	for i, m := range messages {
		if i > 0 {
			joined.WriteByte('\n')
		}
		joined.WriteString(m.Content)
	}
	full := joined.String()
	keep := int(float64(len(full)) * targetRatio)
	if keep < 1 && len(full) > 0 {
		keep = 1
	}
	if keep > len(full) {
		keep = len(full)
	}
	summary := full[:keep]
	usage := model.Usage{InputTokens: len(full) / 4, OutputTokens: len(summary) / 4}
	return summary, usage, nil
}

// ModelInfo implements ChatProvider from the Models table.
func (f *Fake) ModelInfo(ctx context.Context, modelID string) (ModelInfo, error) {
	info, ok := f.Models[modelID]
	if !ok {
		return ModelInfo{}, model.NewEngineError(model.ErrModelUnavailable, fmt.Errorf("unknown model %q", modelID))
	}
	return info, nil
}

func totalChars(messages []model.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}
