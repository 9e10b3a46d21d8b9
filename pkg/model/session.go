package model

import "time"

// Session is one conversation, pinned to one model, with a window size
// fixed for its entire lifetime (spec §3 invariant 4).
type Session struct {
	ID           string
	ModelID      string
	WindowTokens int
	CreatedAt    time.Time
	RootDir      string
	// TurnCount is the number of completed SendTurn calls, the clock
	// the compression pipeline's aging thresholds (T1/T2) measure
	// checkpoint age against (spec §4.3).
	TurnCount int
}

// Mode is the active persona/capability profile of a session.
type Mode string

const (
	ModeAssistant Mode = "assistant"
	ModePlanning  Mode = "planning"
	ModeDeveloper Mode = "developer"
	ModeDebugger  Mode = "debugger"
)

// ModeTransition records one historical mode change.
type ModeTransition struct {
	From        Mode      `json:"from"`
	To          Mode      `json:"to"`
	Cause       string    `json:"cause"` // "manual" or "auto:<heuristic-name>"
	TransitionedAt time.Time `json:"transitionedAt"`
}

// ModeState is the persisted, restorable persona/capability state of a
// session.
type ModeState struct {
	Mode            Mode             `json:"mode"`
	ActivatedAt     time.Time        `json:"activatedAt"`
	RecentTransitions []ModeTransition `json:"recentTransitions,omitempty"`
}

// Tier is a UI/template-selection label derived purely from WindowTokens
// (spec §9: "Ad-hoc tier state scattered across three variables... The
// tier label is a pure function of it"). It never drives sizing.
type Tier string

const (
	TierT1 Tier = "T1" // smallest
	TierT2 Tier = "T2"
	TierT3 Tier = "T3"
	TierT4 Tier = "T4"
	TierT5 Tier = "T5" // largest
)

// TierForWindow derives the display tier for a given window size. The
// thresholds are deliberately coarse: tiers exist for prompt-template
// selection and UI display only, never for sizing decisions.
func TierForWindow(windowTokens int) Tier {
	switch {
	case windowTokens < 8_000:
		return TierT1
	case windowTokens < 32_000:
		return TierT2
	case windowTokens < 100_000:
		return TierT3
	case windowTokens < 400_000:
		return TierT4
	default:
		return TierT5
	}
}

// VRAMSource distinguishes a real GPU probe reading from the degraded
// host-memory fallback (spec §4.5, SPEC_FULL §4.5).
type VRAMSource string

const (
	VRAMSourceGPU     VRAMSource = "gpu"
	VRAMSourceUnknown VRAMSource = "unknown"
)

// VRAMReading is a single GPU memory sample. A reading with
// Source == VRAMSourceUnknown carries a degraded estimate (or zero
// values) and must never be treated as authoritative GPU telemetry.
type VRAMReading struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
	Source     VRAMSource
	SampledAt  time.Time
}

// FreeRatio returns FreeBytes/TotalBytes, or 0 if TotalBytes is 0.
func (r VRAMReading) FreeRatio() float64 {
	if r.TotalBytes == 0 {
		return 0
	}
	return float64(r.FreeBytes) / float64(r.TotalBytes)
}
