// Package activecontext holds the single authoritative in-memory copy of
// ActiveContext for a running session (spec §3, §4.2). It follows the
// teacher's single-writer-mutex-guards-a-shared-slice pattern used
// throughout pkg/llm/base.Thread for message-list mutation, generalized
// to the engine's append/replace_range/clear operations.
package activecontext

import (
	"sync"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// Store owns the mutable ActiveContext for one session. All mutation
// goes through its methods so compression and normal message appends
// never race.
type Store struct {
	mu  sync.RWMutex
	ctx model.ActiveContext
}

// New builds a Store seeded with systemPrompt and no history.
func New(systemPrompt string) *Store {
	return &Store{ctx: model.ActiveContext{SystemPrompt: systemPrompt}}
}

// Append adds msg to the end of recent messages. Used for every new
// turn; never touches checkpoint summaries.
func (s *Store) Append(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.RecentMessages = append(s.ctx.RecentMessages, msg)
}

// ReplaceRange atomically swaps the prefix of messages identified by
// messageIDs (a contiguous, oldest-first range) for a single new
// CheckpointSummary, and drops those messages from RecentMessages. This
// is the only mutation the CompressionPipeline performs; it must never
// be observed half-applied (spec §4.3 step 3 "commit" requirement).
func (s *Store) ReplaceRange(messageIDs map[string]bool, summary model.CheckpointSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.ctx.RecentMessages[:0:0]
	for _, m := range s.ctx.RecentMessages {
		if !messageIDs[m.ID] {
			remaining = append(remaining, m)
		}
	}
	s.ctx.RecentMessages = remaining
	s.ctx.CheckpointSummaries = append(s.ctx.CheckpointSummaries, summary)
}

// ReplaceCheckpoint swaps an existing checkpoint summary in place (used
// by aging/recompression, which promotes a checkpoint's level without
// changing the range of original messages it represents).
func (s *Store) ReplaceCheckpoint(summary model.CheckpointSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cp := range s.ctx.CheckpointSummaries {
		if cp.ID == summary.ID {
			s.ctx.CheckpointSummaries[i] = summary
			return
		}
	}
}

// Clear resets RecentMessages and CheckpointSummaries, keeping the
// system prompt (used by the "clear" CLI operation).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.RecentMessages = nil
	s.ctx.CheckpointSummaries = nil
}

// Restore replaces the entire ActiveContext, used when restoring a
// snapshot or loading a session at startup.
func (s *Store) Restore(ctx model.ActiveContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// SetSystemPrompt updates the system prompt in place (mode transitions
// change the assembled prompt without touching message history).
func (s *Store) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.SystemPrompt = prompt
}

// View returns a cheap, immutable snapshot of the current state for
// readers. Returned slices must not be mutated by the caller: View only
// copies slice headers, not backing arrays (spec §4.2 concurrency note,
// model.ReadOnlyView doc comment).
func (s *Store) View() model.ReadOnlyView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ReadOnlyView{
		SystemPrompt:        s.ctx.SystemPrompt,
		CheckpointSummaries: s.ctx.CheckpointSummaries,
		RecentMessages:      s.ctx.RecentMessages,
	}
}

// Snapshot returns a deep-enough copy of ActiveContext suitable for
// embedding in a model.Snapshot: slices are copied so a later Append or
// ReplaceRange cannot mutate the snapshot's backing arrays.
func (s *Store) Snapshot() model.ActiveContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := model.ActiveContext{SystemPrompt: s.ctx.SystemPrompt}
	out.CheckpointSummaries = append([]model.CheckpointSummary(nil), s.ctx.CheckpointSummaries...)
	out.RecentMessages = append([]model.Message(nil), s.ctx.RecentMessages...)
	return out
}
