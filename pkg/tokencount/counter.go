// Package tokencount implements model.TokenCounter. The primary
// implementation is grounded in teradata-labs/loom's
// pkg/agent/token_counter.go: a singleton tiktoken-go encoder using the
// cl100k_base encoding as a Claude-compatible approximation, falling
// back to a constant chars-per-token estimate (the teacher's own
// EstimateContextWindowFromMessages heuristic in pkg/llm/base/base.go)
// when no encoder is available for a model.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerTokenEstimate is the fallback ratio used when no tiktoken
// encoding can be resolved for a model, matching the teacher's
// ~4-chars-per-token rule of thumb.
const charsPerTokenEstimate = 4

// TiktokenCounter counts tokens with a cached cl100k_base BPE encoder,
// falling back to a character-ratio estimate if the encoder could not be
// loaded (e.g. offline, embedded dictionary missing).
type TiktokenCounter struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

// NewTiktokenCounter builds a counter, attempting to load the
// cl100k_base encoding once. Construction never fails: if the encoding
// can't be loaded, Count degrades to the fallback estimator.
func NewTiktokenCounter() *TiktokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TiktokenCounter{}
	}
	return &TiktokenCounter{encoder: enc}
}

// Count implements model.TokenCounter. modelID is currently unused
// because cl100k_base is a reasonable approximation across the models
// this engine targets; it is part of the interface so a future
// per-model encoder table can be introduced without a call-site change.
func (c *TiktokenCounter) Count(modelID string, text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return max(len(text)/charsPerTokenEstimate, 1)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// EstimateCounter is a dependency-free fallback used in tests and in
// environments where loading the tiktoken dictionary is undesirable.
type EstimateCounter struct{}

// Count implements model.TokenCounter using the constant chars-per-token
// ratio only.
func (EstimateCounter) Count(_ string, text string) int {
	if text == "" {
		return 0
	}
	return max(len(text)/charsPerTokenEstimate, 1)
}
