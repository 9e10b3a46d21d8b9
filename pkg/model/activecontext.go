package model

// ActiveContext is the exact message list that will be sent to the LLM
// on the next turn (spec §3). It is owned exclusively by
// pkg/activecontext.Store; this type is the plain value shape shared
// with snapshots and read-only views.
type ActiveContext struct {
	SystemPrompt         string
	CheckpointSummaries  []CheckpointSummary // ordered oldest-first, contiguous, non-overlapping
	RecentMessages       []Message
}

// ReadOnlyView is a cheap, borrowable, immutable copy of ActiveContext
// handed to readers (the PromptAssembler, usage estimators) so that
// writers never block readers of a prior view (spec §4.2 concurrency
// note). It is produced by value-copying slice headers; callers must not
// mutate the slices in place.
type ReadOnlyView struct {
	SystemPrompt        string
	CheckpointSummaries []CheckpointSummary
	RecentMessages      []Message
}

// AllMessages returns the checkpoint summaries rendered as synthetic
// assistant messages followed by the recent messages, in the order the
// LLM will see them. This is a read helper only; it does not mutate the
// view.
func (v ReadOnlyView) AllMessages() []Message {
	out := make([]Message, 0, len(v.CheckpointSummaries)+len(v.RecentMessages))
	for _, cp := range v.CheckpointSummaries {
		out = append(out, Message{
			ID:      cp.ID,
			Role:    RoleAssistant,
			Content: cp.SummaryText,
		})
	}
	out = append(out, v.RecentMessages...)
	return out
}
