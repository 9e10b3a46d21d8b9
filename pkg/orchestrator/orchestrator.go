// Package orchestrator implements the ContextOrchestrator (spec §4):
// the coordinator that ties SessionManager, ActiveContextStore,
// CompressionPipeline, SnapshotCoordinator, SizingController, and
// PromptAssembler together for one conversational turn.
//
// Turn-level tracing follows the teacher's Thread.CreateMessageSpan /
// FinalizeMessageSpan (pkg/llm/base/base.go): one OTel span per turn,
// annotated with usage and context-window attributes, closed with
// codes.Ok or codes.Error. The pre-send compaction trigger compares
// tokens(recent_messages) against trigger_ratio times the *available*
// budget, not window_tokens directly, to avoid recompressing
// immediately after a compression (spec §4.1).
package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ctxengine/ctxengine/pkg/compression"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/prompt"
	"github.com/ctxengine/ctxengine/pkg/provider"
	"github.com/ctxengine/ctxengine/pkg/session"
	"github.com/ctxengine/ctxengine/pkg/snapshot"
	"github.com/ctxengine/ctxengine/pkg/store"
)

var tracer = otel.Tracer("github.com/ctxengine/ctxengine/pkg/orchestrator")

// Config tunes the orchestrator's compaction trigger.
type Config struct {
	// TriggerRatio compares tokens(recent_messages) against
	// TriggerRatio * available_budget (spec §4.1). 0.80 is the
	// documented default watermark.
	TriggerRatio float64
	// ReserveTokens is subtracted from window_tokens before computing
	// the available budget, leaving headroom for the model's reply.
	ReserveTokens int
	// MaxCompactionAttemptsPerTurn bounds how many compress or
	// recompress cycles a single turn may run. Once they are used up,
	// the turn fails with ErrCompressionExhausted only if it is still
	// over the watermark and a level-3 checkpoint exists; otherwise the
	// turn goes ahead.
	MaxCompactionAttemptsPerTurn int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{TriggerRatio: 0.80, ReserveTokens: 1024, MaxCompactionAttemptsPerTurn: 4}
}

// Orchestrator is the engine's single public entry point for driving a
// conversation.
type Orchestrator struct {
	cfg Config

	sessions    *session.Manager
	store       *store.SessionStore
	pipeline    *compression.Pipeline
	snapshots   *snapshot.Coordinator
	modes       *prompt.StateMachine
	assembler   *prompt.Assembler
	chat        provider.ChatProvider
	counter     model.TokenCounter
	bus         *events.Bus
}

// New builds an Orchestrator from its fully-constructed dependencies.
func New(
	cfg Config,
	sessions *session.Manager,
	st *store.SessionStore,
	pipeline *compression.Pipeline,
	snapshots *snapshot.Coordinator,
	modes *prompt.StateMachine,
	assembler *prompt.Assembler,
	chat provider.ChatProvider,
	counter model.TokenCounter,
	bus *events.Bus,
) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, sessions: sessions, store: st, pipeline: pipeline,
		snapshots: snapshots, modes: modes, assembler: assembler,
		chat: chat, counter: counter, bus: bus,
	}
}

// availableBudget computes spec §4.1's available formula:
//
//	available = window_tokens - tokens(system_prompt) - sum(tokens(checkpoint_summaries)) - reserve
func (o *Orchestrator) availableBudget(sess model.Session, systemPrompt string, checkpoints []model.CheckpointSummary) int {
	used := o.counter.Count(sess.ModelID, systemPrompt)
	for _, cp := range checkpoints {
		used += cp.CurrentTokens
	}
	available := sess.WindowTokens - used - o.cfg.ReserveTokens
	if available < 0 {
		return 0
	}
	return available
}

func recentTokens(counter model.TokenCounter, modelID string, recent []model.Message) int {
	total := 0
	for _, m := range recent {
		total += counter.Count(modelID, m.Content)
	}
	return total
}

// SendTurn appends userText as a user message, compresses as many times
// as needed to stay under the trigger watermark, sends the turn to the
// provider, appends the reply, and returns it.
func (o *Orchestrator) SendTurn(ctx context.Context, userText string) (model.Message, error) {
	sess, ok := o.sessions.Current()
	if !ok {
		return model.Message{}, model.NewEngineError(model.ErrSessionNotFound, nil)
	}
	sess = o.sessions.IncrementTurn()

	ctx, span := tracer.Start(ctx, "orchestrator.send_turn",
		attribute.String("session_id", sess.ID),
		attribute.String("model", sess.ModelID),
	)
	defer span.End()

	active := o.sessions.ActiveContext()
	userMsg := model.Message{
		ID:        model.NewID("msg"),
		Role:      model.RoleUser,
		Content:   userText,
		TokenCount: o.counter.Count(sess.ModelID, userText),
		Timestamp: time.Now(),
	}
	active.Append(userMsg)
	if err := o.store.AppendMessage(ctx, sess, userMsg); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Message{}, errors.Wrap(err, "persist user message")
	}

	if err := o.maybeCompact(ctx, sess); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Message{}, err
	}

	view := active.View()
	reply, usage, err := o.chat.Send(ctx, sess.ModelID, view.AllMessages())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Message{}, errors.Wrap(model.NewEngineError(model.ErrModelUnavailable, err), "send turn")
	}

	reply.ID = model.NewID("msg")
	reply.Timestamp = time.Now()
	active.Append(reply)
	if err := o.store.AppendMessage(ctx, sess, reply); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Message{}, errors.Wrap(err, "persist assistant reply")
	}

	usage.MaxContextWindow = sess.WindowTokens
	usage.CurrentContextWindow = recentTokens(o.counter, sess.ModelID, active.View().RecentMessages)

	span.SetAttributes(
		attribute.Int("tokens.input", usage.InputTokens),
		attribute.Int("tokens.output", usage.OutputTokens),
		attribute.Int("context_window.current", usage.CurrentContextWindow),
		attribute.Int("context_window.max", usage.MaxContextWindow),
	)
	span.SetStatus(codes.Ok, "")

	if o.bus != nil {
		o.bus.Publish(events.Event{
			Kind:      events.KindContextUsage,
			SessionID: sess.ID,
			At:        time.Now(),
			Payload: events.ContextUsagePayload{
				UsedTokens:      usage.CurrentContextWindow,
				AvailableTokens: o.availableBudget(sess, view.SystemPrompt, view.CheckpointSummaries),
				Ratio:           usage.UtilizationRatio(),
			},
		})
	}

	return reply, nil
}

// maybeCompact runs the trigger comparison and, if tripped, runs
// compression cycles (bounded by MaxCompactionAttemptsPerTurn) until the
// recent message tokens fall back under the watermark. Each cycle first
// checks existing checkpoints for promotion due-ness (spec §4.3's aging
// state machine runs in the same pass as primary compression) and only
// selects a brand-new range once nothing is due for promotion. If
// compression genuinely cannot make further progress — a level-3
// checkpoint stuck at its terminal ratio, nothing left to select, and
// still over the watermark — it snapshots the session as an emergency
// recovery point and surfaces ErrCompressionExhausted.
func (o *Orchestrator) maybeCompact(ctx context.Context, sess model.Session) error {
	active := o.sessions.ActiveContext()

	for attempt := 0; attempt < o.cfg.MaxCompactionAttemptsPerTurn; attempt++ {
		view := active.View()
		available := o.availableBudget(sess, view.SystemPrompt, view.CheckpointSummaries)
		used := recentTokens(o.counter, sess.ModelID, view.RecentMessages)

		if float64(used) < o.cfg.TriggerRatio*float64(available) {
			return nil
		}

		if cp, ok := o.dueForPromotion(view.CheckpointSummaries, sess.TurnCount); ok {
			if _, err := o.pipeline.Recompress(ctx, sess.ID, sess.ModelID, cp, sess.TurnCount); err != nil {
				return err
			}
			continue
		}

		if _, err := o.pipeline.Compress(ctx, sess.ID, sess.ModelID, sess.TurnCount); err != nil {
			if errors.Is(err, compression.ErrNothingToCompress) {
				if hasLevel3Checkpoint(active.View().CheckpointSummaries) {
					return o.exhausted(ctx, sess)
				}
				// Nothing new to select and nothing due for promotion:
				// everything eligible is already at its terminal ratio
				// or within the protected KeepRecent tail. Not the
				// spec's real exhaustion condition, just no more
				// progress possible this turn.
				return nil
			}
			return err
		}
	}

	view := active.View()
	available := o.availableBudget(sess, view.SystemPrompt, view.CheckpointSummaries)
	used := recentTokens(o.counter, sess.ModelID, view.RecentMessages)
	if float64(used) >= o.cfg.TriggerRatio*float64(available) && hasLevel3Checkpoint(view.CheckpointSummaries) {
		return o.exhausted(ctx, sess)
	}
	return nil
}

// dueForPromotion returns the first checkpoint due for aging promotion,
// if any.
func (o *Orchestrator) dueForPromotion(checkpoints []model.CheckpointSummary, turnCount int) (model.CheckpointSummary, bool) {
	for _, cp := range checkpoints {
		if o.pipeline.DueForPromotion(cp, turnCount) {
			return cp, true
		}
	}
	return model.CheckpointSummary{}, false
}

// hasLevel3Checkpoint reports whether any checkpoint has aged all the
// way to its terminal level, the real CompressionExhausted condition
// (spec §4.3: "a level-3 checkpoint whose range is still too large").
func hasLevel3Checkpoint(checkpoints []model.CheckpointSummary) bool {
	for _, cp := range checkpoints {
		if cp.Level >= model.CompressionLevel3 {
			return true
		}
	}
	return false
}

func (o *Orchestrator) exhausted(ctx context.Context, sess model.Session) error {
	logger.G(ctx).WithField("session", sess.ID).Warn("orchestrator: compression exhausted, taking emergency snapshot")
	modeState := o.modes.Current()
	if _, err := o.snapshots.Create(ctx, sess.ID, model.SnapshotEmergency, "compression-exhausted", modeState); err != nil {
		return errors.Wrap(err, "emergency snapshot after compression exhaustion")
	}
	return model.NewEngineError(model.ErrCompressionExhausted, nil)
}

// Compact runs one manual compression cycle regardless of watermark
// state (the CLI "compact" operation).
func (o *Orchestrator) Compact(ctx context.Context) (model.CheckpointSummary, error) {
	sess, ok := o.sessions.Current()
	if !ok {
		return model.CheckpointSummary{}, model.NewEngineError(model.ErrSessionNotFound, nil)
	}
	return o.pipeline.Compress(ctx, sess.ID, sess.ModelID, sess.TurnCount)
}

// TransitionMode switches the session's mode and re-renders the system
// prompt for the new mode.
func (o *Orchestrator) TransitionMode(ctx context.Context, to model.Mode, cause string) (model.ModeTransition, error) {
	sess, ok := o.sessions.Current()
	if !ok {
		return model.ModeTransition{}, model.NewEngineError(model.ErrSessionNotFound, nil)
	}

	transition, err := o.modes.Transition(ctx, sess.ID, to, cause)
	if err != nil {
		return model.ModeTransition{}, err
	}

	systemPrompt, err := o.assembler.Assemble(to, sess.WindowTokens, o.sessions.ActiveContext().View().CheckpointSummaries)
	if err != nil {
		return model.ModeTransition{}, errors.Wrap(err, "assemble system prompt for new mode")
	}
	o.sessions.ActiveContext().SetSystemPrompt(systemPrompt)

	return transition, nil
}

// TakeSnapshot creates a snapshot of the current session under the
// given purpose/tag (the CLI "snapshot create" operation).
func (o *Orchestrator) TakeSnapshot(ctx context.Context, purpose model.SnapshotPurpose, tag string) (model.SnapshotDescriptor, error) {
	sess, ok := o.sessions.Current()
	if !ok {
		return model.SnapshotDescriptor{}, model.NewEngineError(model.ErrSessionNotFound, nil)
	}
	return o.snapshots.Create(ctx, sess.ID, purpose, tag, o.modes.Current())
}

// ListSnapshots lists snapshots matching filter for the current session.
func (o *Orchestrator) ListSnapshots(ctx context.Context, filter model.SnapshotFilter) ([]model.SnapshotDescriptor, error) {
	return o.snapshots.List(filter)
}

// Restore replaces the active session's context with the given
// snapshot's payload.
func (o *Orchestrator) Restore(ctx context.Context, snapshotID string) error {
	sess, ok := o.sessions.Current()
	if !ok {
		return model.NewEngineError(model.ErrSessionNotFound, nil)
	}
	modeState, err := o.snapshots.Restore(ctx, sess.ID, snapshotID)
	if err != nil {
		return err
	}
	o.modes.Restore(modeState)
	return nil
}

// Clear resets the active session's conversation while keeping the
// session itself and its system prompt.
func (o *Orchestrator) Clear(ctx context.Context) error {
	_, ok := o.sessions.Current()
	if !ok {
		return model.NewEngineError(model.ErrSessionNotFound, nil)
	}
	o.sessions.ActiveContext().Clear()
	return nil
}
