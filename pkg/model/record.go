package model

import "time"

// SessionHistoryRecord is the durable, append-only record of a
// conversation (spec §3 "SessionHistory"). Unlike ActiveContext it is
// never compressed, and unlike Snapshot it is never a recovery payload —
// it exists purely for audit/history. Adapted from the teacher's
// ConversationRecord (pkg/conversations/conversation.go), trimmed of the
// tool-execution fields (ToolResults, BackgroundProcesses,
// FileLastAccess) that don't apply to a tool-free context engine, and
// extended with CheckpointRecords per spec §4.3 step 3.
type SessionHistoryRecord struct {
	SessionID        string                 `json:"sessionId"`
	ModelID          string                 `json:"modelId"`
	Messages         []Message              `json:"messages"` // full, uncompressed, append-only
	CheckpointRecords []CheckpointRecord    `json:"checkpointRecords"`
	Usage            Usage                  `json:"usage"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	FirstUserPrompt  string                 `json:"firstUserPrompt"`
}

// NewSessionHistoryRecord creates an empty history record for a new session.
func NewSessionHistoryRecord(sessionID, modelID string) SessionHistoryRecord {
	now := time.Now()
	return SessionHistoryRecord{
		SessionID: sessionID,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]interface{}),
	}
}

// SessionSummary is the lightweight listing form of a
// SessionHistoryRecord, returned by catalog queries without loading the
// full message log (mirrors ConversationSummary in the teacher).
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	ModelID      string    `json:"modelId"`
	MessageCount int       `json:"messageCount"`
	FirstMessage string    `json:"firstMessage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToSummary projects a SessionHistoryRecord down to a SessionSummary.
func (r SessionHistoryRecord) ToSummary() SessionSummary {
	first := r.FirstUserPrompt
	if len(first) > 100 {
		first = first[:97] + "..."
	}
	return SessionSummary{
		SessionID:    r.SessionID,
		ModelID:      r.ModelID,
		MessageCount: len(r.Messages),
		FirstMessage: first,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// QueryOptions filters and orders SessionSummary listings.
type QueryOptions struct {
	SearchTerm string
	ModelID    string
	Limit      int
	Offset     int
	SortBy     string // "created_at" | "updated_at"
	SortOrder  string // "asc" | "desc"
}

// QueryResult is the result of a catalog Query.
type QueryResult struct {
	Summaries []SessionSummary
	Total     int
}
