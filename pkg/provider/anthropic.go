package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// AnthropicProvider implements ChatProvider against Claude models,
// adapted from the teacher's pkg/llm/anthropic.go: the request-building
// and response-unwrapping shape survives, stripped of the tool-calling
// path (anthropicTools, ToolUseBlock handling) since the engine never
// executes tools, only composes and compresses conversational turns.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider builds a provider using ANTHROPIC_API_KEY from
// the environment, matching anthropic.NewClient()'s default resolution.
func NewAnthropicProvider(maxTokens int64) *AnthropicProvider {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{client: anthropic.NewClient(), maxTokens: maxTokens}
}

func toAnthropicMessages(messages []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser, model.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case model.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

// Send implements provider.ChatProvider.
func (p *AnthropicProvider) Send(ctx context.Context, modelID string, messages []model.Message) (model.Message, model.Usage, error) {
	return p.call(ctx, modelID, "", messages)
}

// Summarize implements provider.ChatProvider using the same call path as
// Send, with a summarization instruction as the system prompt.
func (p *AnthropicProvider) Summarize(ctx context.Context, modelID string, messages []model.Message, targetRatio float64) (string, model.Usage, error) {
	instruction := fmt.Sprintf(
		"Summarize the following conversation excerpt, targeting roughly %.0f%% of its original length while preserving every fact a future turn would need.",
		targetRatio*100,
	)
	reply, usage, err := p.call(ctx, modelID, instruction, messages)
	if err != nil {
		return "", model.Usage{}, err
	}
	return reply.Content, usage, nil
}

func (p *AnthropicProvider) call(ctx context.Context, modelID, systemPrompt string, messages []model.Message) (model.Message, model.Usage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: p.maxTokens,
		Messages:  toAnthropicMessages(messages),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return model.Message{}, model.Usage{}, errors.Wrap(model.NewEngineError(model.ErrModelUnavailable, err), "anthropic messages.new")
	}

	var content string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += tb.Text
		}
	}

	usage := model.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	return model.Message{Role: model.RoleAssistant, Content: content}, usage, nil
}

// ModelInfo implements provider.ChatProvider with a static table, since
// the Anthropic API has no endpoint to query a model's context window.
func (p *AnthropicProvider) ModelInfo(ctx context.Context, modelID string) (ModelInfo, error) {
	info, ok := knownModels[modelID]
	if !ok {
		return ModelInfo{}, model.NewEngineError(model.ErrModelUnavailable, fmt.Errorf("unknown model %q", modelID))
	}
	return info, nil
}

var knownModels = map[string]ModelInfo{
	string(anthropic.ModelClaude3_7SonnetLatest): {ID: string(anthropic.ModelClaude3_7SonnetLatest), DisplayName: "Claude 3.7 Sonnet", WindowTokens: 200_000},
	string(anthropic.ModelClaude3_5SonnetLatest): {ID: string(anthropic.ModelClaude3_5SonnetLatest), DisplayName: "Claude 3.5 Sonnet", WindowTokens: 200_000},
	string(anthropic.ModelClaude3_5HaikuLatest):  {ID: string(anthropic.ModelClaude3_5HaikuLatest), DisplayName: "Claude 3.5 Haiku", WindowTokens: 200_000},
	string(anthropic.ModelClaude3OpusLatest):     {ID: string(anthropic.ModelClaude3OpusLatest), DisplayName: "Claude 3 Opus", WindowTokens: 200_000},
}
