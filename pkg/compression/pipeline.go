// Package compression implements the three-level checkpoint
// compression/aging pipeline (spec §4.3): selecting a contiguous range
// of the oldest recent messages, summarizing it down to a target ratio,
// committing the result as a CheckpointSummary in place of the
// originals, and later recompressing (aging) that summary to a tighter
// ratio as the session accumulates more turns.
//
// The retry-wrapped provider call is grounded in the teacher's
// executeWithRetry (pkg/llm/google/google.go): exponential backoff,
// bounded attempts, context-aware cancellation. The summarization
// instruction text is adapted from pkg/llm/prompts.CompactPrompt.
package compression

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/activecontext"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/provider"
	"github.com/ctxengine/ctxengine/pkg/store"
)

// Config tunes selection and aging behavior. Defaults match the values
// recorded as Open Question decisions.
type Config struct {
	// KeepRecent is the number of most-recent messages never eligible
	// for compression, regardless of budget pressure.
	KeepRecent int
	// T1Turns/T2Turns are the turn-age thresholds (turns elapsed since
	// a checkpoint was created or last recompressed) at which it
	// becomes due for promotion to the next CompressionLevel.
	T1Turns int
	T2Turns int
	// RetryAttempts bounds the summarization call's retry budget.
	RetryAttempts uint
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// DefaultConfig returns the engine's Open Question decision values.
func DefaultConfig() Config {
	return Config{
		KeepRecent:        5,
		T1Turns:           6,
		T2Turns:           16,
		RetryAttempts:     3,
		RetryInitialDelay: 500 * time.Millisecond,
		RetryMaxDelay:     5 * time.Second,
	}
}

// Pipeline drives selection, summarization, and commit.
type Pipeline struct {
	cfg     Config
	counter model.TokenCounter
	chat    provider.ChatProvider
	active  *activecontext.Store
	history *store.HistoryStore
	bus     *events.Bus
}

// New builds a Pipeline.
func New(cfg Config, counter model.TokenCounter, chat provider.ChatProvider, active *activecontext.Store, history *store.HistoryStore, bus *events.Bus) *Pipeline {
	return &Pipeline{cfg: cfg, counter: counter, chat: chat, active: active, history: history, bus: bus}
}

// ErrNothingToCompress is returned when every recent message is within
// the KeepRecent tail and no range can be selected.
var ErrNothingToCompress = errors.New("compression: no eligible message range")

// selectRange picks the oldest contiguous range of recent messages
// eligible for compression: everything except the most recent
// keepRecent messages, extended past the cut when that would split a
// tool-call from its tool-result. The cut is not otherwise rounded, so
// it can fall between a user message and its reply.
func selectRange(recent []model.Message, keepRecent int) []model.Message {
	if len(recent) <= keepRecent {
		return nil
	}
	end := len(recent) - keepRecent

	// If the cut lands right after a tool call, pull its tool result
	// across the boundary too so the pair is never split (spec §4.3).
	for end > 0 && end < len(recent) && len(recent[end-1].ToolCalls) > 0 && recent[end].ToolResultRef != "" {
		end++
	}
	return recent[:end]
}

// Compress runs one Selecting->Summarizing->Committing cycle for
// sessionID, returning the newly created level-1 checkpoint. Callers
// (pkg/orchestrator) decide *when* to call this based on their own
// available-budget comparison; Compress itself only knows
// how to do the work once triggered.
func (p *Pipeline) Compress(ctx context.Context, sessionID, modelID string, currentTurn int) (model.CheckpointSummary, error) {
	view := p.active.View()
	selected := selectRange(view.RecentMessages, p.cfg.KeepRecent)
	if len(selected) == 0 {
		return model.CheckpointSummary{}, ErrNothingToCompress
	}

	originalTokens := 0
	ids := make(map[string]bool, len(selected))
	messageIDs := make([]string, 0, len(selected))
	for _, m := range selected {
		originalTokens += p.counter.Count(modelID, m.Content)
		ids[m.ID] = true
		messageIDs = append(messageIDs, m.ID)
	}

	targetRatio := model.CompressionLevel1.TargetRatio()
	var summaryText string
	var err error
	retryErr := retry.Do(
		func() error {
			summaryText, _, err = p.chat.Summarize(ctx, modelID, selected, targetRatio)
			return err
		},
		retry.Attempts(p.cfg.RetryAttempts),
		retry.Delay(p.cfg.RetryInitialDelay),
		retry.MaxDelay(p.cfg.RetryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("session", sessionID).WithField("attempt", n+1).
				Warn("compression: retrying summarization call")
		}),
	)
	if retryErr != nil {
		return model.CheckpointSummary{}, errors.Wrap(model.NewEngineError(model.ErrCompressionFailed, retryErr), "summarize message range")
	}

	now := time.Now()
	checkpoint := model.CheckpointSummary{
		ID:                     model.NewID("cp"),
		OriginalMessageIDs:     messageIDs,
		SummaryText:            summaryText,
		OriginalTokens:         originalTokens,
		CurrentTokens:          p.counter.Count(modelID, summaryText),
		Level:                  model.CompressionLevel1,
		CompressionNumber:      1,
		CreatedAt:              now,
		LastRecompressedAt:     now,
		LastRecompressedAtTurn: currentTurn,
	}

	p.active.ReplaceRange(ids, checkpoint)

	record := model.CheckpointRecord{
		ID:               checkpoint.ID,
		RangeMessageIDs:  messageIDs,
		Level:            checkpoint.Level,
		CompressionRatio: checkpoint.CompressionRatio(),
		CreatedAt:        now,
	}
	if err := p.appendCheckpointRecord(sessionID, checkpoint, record); err != nil {
		return model.CheckpointSummary{}, err
	}

	if p.bus != nil {
		p.bus.Publish(events.Event{
			Kind:      events.KindCheckpointCreated,
			SessionID: sessionID,
			At:        now,
			Payload:   events.CheckpointCreatedPayload{Checkpoint: checkpoint},
		})
	}

	return checkpoint, nil
}

// appendCheckpointRecord persists the updated active checkpoint list and
// the new audit record together.
func (p *Pipeline) appendCheckpointRecord(sessionID string, checkpoint model.CheckpointSummary, record model.CheckpointRecord) error {
	active := p.active.View().CheckpointSummaries
	_, records, err := p.history.LoadCheckpoints(sessionID)
	if err != nil {
		return errors.Wrap(err, "load checkpoint records")
	}
	records = append(records, record)
	if err := p.history.SaveCheckpoints(sessionID, active, records); err != nil {
		return errors.Wrap(model.NewEngineError(model.ErrStorageUnavailable, err), "persist checkpoints")
	}
	return nil
}

// DueForPromotion reports whether a checkpoint has aged past the turn
// threshold for its current level, measured against currentTurn (spec
// §4.3 aging: "exists for >= T1 turns since creation"; "a checkpoint's
// level only ever increases").
func (p *Pipeline) DueForPromotion(cp model.CheckpointSummary, currentTurn int) bool {
	turnsSinceLastRecompression := currentTurn - cp.LastRecompressedAtTurn
	switch cp.Level {
	case model.CompressionLevel1:
		return turnsSinceLastRecompression >= p.cfg.T1Turns
	case model.CompressionLevel2:
		return turnsSinceLastRecompression >= p.cfg.T2Turns
	default:
		return false // level 3 is terminal
	}
}

// Recompress re-summarizes an existing checkpoint's summary text down to
// its next level's target ratio, in place.
func (p *Pipeline) Recompress(ctx context.Context, sessionID, modelID string, cp model.CheckpointSummary, currentTurn int) (model.CheckpointSummary, error) {
	if cp.Level >= model.CompressionLevel3 {
		return cp, nil
	}
	nextLevel := cp.Level.Next()
	targetRatio := nextLevel.TargetRatio()

	asMessage := []model.Message{{Role: model.RoleAssistant, Content: cp.SummaryText}}
	var summaryText string
	var err error
	retryErr := retry.Do(
		func() error {
			summaryText, _, err = p.chat.Summarize(ctx, modelID, asMessage, targetRatio)
			return err
		},
		retry.Attempts(p.cfg.RetryAttempts),
		retry.Delay(p.cfg.RetryInitialDelay),
		retry.MaxDelay(p.cfg.RetryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	if retryErr != nil {
		return model.CheckpointSummary{}, errors.Wrap(model.NewEngineError(model.ErrCompressionFailed, retryErr), "recompress checkpoint")
	}

	now := time.Now()
	cp.SummaryText = summaryText
	cp.CurrentTokens = p.counter.Count(modelID, summaryText)
	cp.Level = nextLevel
	cp.CompressionNumber++
	cp.LastRecompressedAt = now
	cp.LastRecompressedAtTurn = currentTurn

	p.active.ReplaceCheckpoint(cp)

	record := model.CheckpointRecord{
		ID:               cp.ID,
		RangeMessageIDs:  cp.OriginalMessageIDs,
		Level:            cp.Level,
		CompressionRatio: cp.CompressionRatio(),
		CreatedAt:        now,
	}
	if err := p.appendCheckpointRecord(sessionID, cp, record); err != nil {
		return model.CheckpointSummary{}, err
	}

	if p.bus != nil {
		p.bus.Publish(events.Event{
			Kind:      events.KindCheckpointCreated,
			SessionID: sessionID,
			At:        now,
			Payload:   events.CheckpointCreatedPayload{Checkpoint: cp},
		})
	}

	return cp, nil
}
