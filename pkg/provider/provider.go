// Package provider defines the boundary between the context engine and
// the LLM runtime it talks to (spec §6 external interfaces): sending a
// turn's messages and receiving a reply, summarizing a range of
// messages during compression, and reporting model metadata
// (context-window size, a human name). The shape is grounded in the
// teacher's pkg/llm/anthropic.go call pattern (building an
// anthropic.MessageNewParams from []model.Message and reading back
// TextBlock/ToolUseBlock content), generalized to an interface so the
// engine isn't compiled against any one vendor SDK.
package provider

import (
	"context"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// ModelInfo describes the static characteristics of a model the engine
// needs for sizing (spec §4.1): its context window, plus a display
// name.
type ModelInfo struct {
	ID           string
	DisplayName  string
	WindowTokens int
}

// ChatProvider is the engine's sole dependency on an LLM runtime.
// Implementations must be safe for concurrent use; the orchestrator may
// call Summarize for compression concurrently with Send for the active
// turn since they operate on disjoint message ranges.
type ChatProvider interface {
	// Send issues one conversational turn and returns the assistant's
	// reply along with token usage for the call.
	Send(ctx context.Context, modelID string, messages []model.Message) (model.Message, model.Usage, error)

	// Summarize asks the model to compress messages into a single
	// summary string at approximately targetRatio of their combined
	// token count. Used exclusively by the compression pipeline.
	Summarize(ctx context.Context, modelID string, messages []model.Message, targetRatio float64) (string, model.Usage, error)

	// ModelInfo returns static metadata for modelID, used once at
	// session-start sizing (spec §4.1 invariant: window fixed for a
	// session's lifetime).
	ModelInfo(ctx context.Context, modelID string) (ModelInfo, error)
}
