package sizing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/provider"
)

// Controller computes a session's fixed window_tokens at session start
// (spec §4.1 invariant 4: the window never changes for a session's
// lifetime). It blends the model's advertised context window, the
// current VRAM reading, an overhead multiplier for KV-cache growth, and
// an optional user ceiling.
type Controller struct {
	monitor            *Monitor
	chat               provider.ChatProvider
	overheadMultiplier float64
}

// DefaultOverheadMultiplier reserves headroom for KV-cache growth beyond
// the raw prompt token count, the Open Question default recorded in
// DESIGN.md.
const DefaultOverheadMultiplier = 1.3

// NewController builds a Controller. overheadMultiplier of zero falls
// back to DefaultOverheadMultiplier.
func NewController(monitor *Monitor, chat provider.ChatProvider, overheadMultiplier float64) *Controller {
	if overheadMultiplier <= 0 {
		overheadMultiplier = DefaultOverheadMultiplier
	}
	return &Controller{monitor: monitor, chat: chat, overheadMultiplier: overheadMultiplier}
}

// ComputeWindow determines window_tokens for a new session on modelID.
// On a VRAMSourceUnknown reading it falls back to the model's
// conservative advertised default rather than trying to derive a size
// from degraded host-memory numbers (spec §8 boundary behavior).
func (c *Controller) ComputeWindow(ctx context.Context, modelID string, userCeiling int) (int, error) {
	info, err := c.chat.ModelInfo(ctx, modelID)
	if err != nil {
		return 0, errors.Wrap(err, "resolve model info")
	}

	window := info.WindowTokens

	if c.monitor != nil {
		reading := c.monitor.Latest()
		if reading.Source == model.VRAMSourceGPU && reading.TotalBytes > 0 {
			window = vramBoundedWindow(info.WindowTokens, reading, c.overheadMultiplier)
		}
	}

	if userCeiling > 0 {
		if userCeiling < window {
			window = userCeiling
		} else if userCeiling > window {
			logger.G(ctx).WithField("model", modelID).WithField("requested_ceiling", userCeiling).
				WithField("safe_window", window).
				Warn("sizing: requested window ceiling exceeds the VRAM/model-derived safe window, clamping down")
		}
	}
	if window <= 0 {
		window = info.WindowTokens
	}
	return window, nil
}

// vramBoundedWindow derives a token budget from free VRAM using a
// crude bytes-per-token heuristic (2 bytes/token, the common KV-cache
// estimate for fp16 activations), then applies the overhead multiplier
// as a safety margin before comparing against the model's ceiling.
func vramBoundedWindow(modelCeiling int, reading model.VRAMReading, overheadMultiplier float64) int {
	const bytesPerToken = 2
	usable := float64(reading.FreeBytes) / overheadMultiplier
	tokens := int(usable / bytesPerToken)
	if tokens <= 0 || tokens > modelCeiling {
		return modelCeiling
	}
	return tokens
}
