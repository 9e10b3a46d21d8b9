// Package events implements the engine's internal event bus (spec §6,
// §9): "event emitter broadcasting typed payloads ... bounded
// per-subscriber queue provides back-pressure". It is a deliberately
// slimmed-down descendant of the teacher's pkg/hooks trigger/dispatch
// machinery (pkg/hooks/trigger.go, pkg/hooks/hooks.go): the teacher
// dispatches to external executables discovered on disk, which this
// engine has no use for (the hook protocol is explicitly out of scope);
// what survives is the typed-trigger, synchronous-listener shape.
package events

import (
	"time"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// Kind is the closed set of event kinds the bus can carry.
type Kind string

const (
	KindSessionChanged   Kind = "session_changed"
	KindMessageAppended  Kind = "message_appended"
	KindCheckpointCreated Kind = "checkpoint_created"
	KindSnapshotCreated  Kind = "snapshot_created"
	KindSessionRestored  Kind = "session_restored"
	KindModeChanged      Kind = "mode_changed"
	KindLowMemory        Kind = "low_memory"
	KindCriticalMemory   Kind = "critical_memory"
	KindContextUsage     Kind = "context_usage"
)

// Event is the envelope broadcast on the bus. Payload is one of the
// Kind-specific structs below; consumers type-switch on Kind before
// asserting Payload, mirroring the teacher's payload.go convention of a
// typed envelope over an interface{} body.
type Event struct {
	Kind      Kind
	SessionID string
	At        time.Time
	Payload   interface{}
}

// SessionChangedPayload accompanies KindSessionChanged.
type SessionChangedPayload struct {
	Previous *model.Session
	Current  model.Session
}

// MessageAppendedPayload accompanies KindMessageAppended.
type MessageAppendedPayload struct {
	Message model.Message
}

// CheckpointCreatedPayload accompanies KindCheckpointCreated.
type CheckpointCreatedPayload struct {
	Checkpoint model.CheckpointSummary
}

// SnapshotCreatedPayload accompanies KindSnapshotCreated.
type SnapshotCreatedPayload struct {
	Descriptor model.SnapshotDescriptor
}

// SessionRestoredPayload accompanies KindSessionRestored.
type SessionRestoredPayload struct {
	FromSnapshot model.SnapshotDescriptor
}

// ModeChangedPayload accompanies KindModeChanged.
type ModeChangedPayload struct {
	Transition model.ModeTransition
}

// LowMemoryPayload accompanies KindLowMemory and KindCriticalMemory.
type LowMemoryPayload struct {
	Reading model.VRAMReading
}

// ContextUsagePayload accompanies KindContextUsage, emitted after every
// turn so a UI can render a usage meter (spec §4.1).
type ContextUsagePayload struct {
	UsedTokens      int
	AvailableTokens int
	Ratio           float64
}
