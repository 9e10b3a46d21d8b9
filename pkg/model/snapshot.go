package model

import "time"

// SnapshotPurpose records why a Snapshot was created (spec §4.4).
type SnapshotPurpose string

const (
	SnapshotModeTransition SnapshotPurpose = "mode_transition"
	SnapshotMilestone      SnapshotPurpose = "milestone"
	SnapshotUserRequest    SnapshotPurpose = "user_request"
	SnapshotEmergency      SnapshotPurpose = "emergency"
)

// Snapshot is a full, uncompressed recovery point. It is never sent to
// the LLM; it exists only for restore (spec §3 invariant 1).
type Snapshot struct {
	ID              string                 `json:"id"`
	SessionID       string                 `json:"sessionId"`
	Purpose         SnapshotPurpose        `json:"purpose"`
	Tag             string                 `json:"tag,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Messages        []Message              `json:"messages"`
	CheckpointState []CheckpointSummary    `json:"checkpointState"`
	ModeState       ModeState              `json:"modeState"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// SnapshotDescriptor is the lightweight listing form of a Snapshot,
// returned by SnapshotCoordinator.List without loading the full payload
// (mirrors the ConversationRecord/ConversationSummary split the teacher
// uses for conversations).
type SnapshotDescriptor struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"sessionId"`
	Purpose       SnapshotPurpose `json:"purpose"`
	Tag           string          `json:"tag,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	MessageCount  int             `json:"messageCount"`
}

// SnapshotFilter narrows SnapshotCoordinator.List results.
type SnapshotFilter struct {
	Purpose SnapshotPurpose // zero value matches any purpose
	Tag     string          // empty matches any tag
}

// RetentionPolicy bounds how many snapshots of each purpose survive
// SnapshotCoordinator.Prune (spec §4.4).
type RetentionPolicy struct {
	KeepModeTransitions int           // keep last K mode-transition snapshots
	KeepAllMilestones   bool          // milestones for the current session are never pruned
	EmergencyMaxAge     time.Duration // keep emergencies newer than this
}

// DefaultRetentionPolicy mirrors the documented default in spec §4.4.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		KeepModeTransitions: 10,
		KeepAllMilestones:   true,
		EmergencyMaxAge:     14 * 24 * time.Hour,
	}
}
