// Package session implements the SessionManager (spec §4.1's "new
// session / current / switch model / end" operations), wiring together
// the sizing controller, the active-context store, and the flat-file
// history store for a single running session. The functional-options
// constructor style is adapted from the teacher's
// pkg/conversations/service.go (NewConversationService +
// WithOnDelete).
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/activecontext"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/sizing"
	"github.com/ctxengine/ctxengine/pkg/store"
)

// Manager owns the lifecycle of the single active session a running
// engine instance serves (spec §3 invariant: one ActiveContext per
// running session).
type Manager struct {
	store      *store.SessionStore
	sizing     *sizing.Controller
	bus        *events.Bus
	onNewModel func() *activecontext.Store // factory so the orchestrator controls the active store's systemPrompt seeding

	current *model.Session
	active  *activecontext.Store
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithBus attaches an event bus; WithBus(nil) is a valid no-op default.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// New builds a Manager over store and sizing, applying opts.
func New(st *store.SessionStore, sz *sizing.Controller, opts ...Option) *Manager {
	m := &Manager{store: st, sizing: sz}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewSession starts a session on modelID, computing its fixed
// window_tokens via the sizing controller (spec §4.1 invariant 4) and
// seeding a fresh ActiveContext with systemPrompt.
func (m *Manager) NewSession(ctx context.Context, modelID, systemPrompt string, userWindowCeiling int) (model.Session, error) {
	window, err := m.sizing.ComputeWindow(ctx, modelID, userWindowCeiling)
	if err != nil {
		return model.Session{}, errors.Wrap(err, "compute session window")
	}

	sess := model.Session{
		ID:           model.GenerateSessionID(),
		ModelID:      modelID,
		WindowTokens: window,
		CreatedAt:    time.Now(),
		RootDir:      m.store.Layout.Root,
	}

	previous := m.current
	m.current = &sess
	m.active = activecontext.New(systemPrompt)

	logger.G(ctx).WithField("session", sess.ID).WithField("model", modelID).WithField("window_tokens", window).
		Info("session: started new session")

	if m.bus != nil {
		m.bus.Publish(events.Event{
			Kind:      events.KindSessionChanged,
			SessionID: sess.ID,
			At:        sess.CreatedAt,
			Payload:   events.SessionChangedPayload{Previous: previous, Current: sess},
		})
	}

	return sess, nil
}

// Restore re-seeds the manager with a previously-started session and
// its persisted ActiveContext, without recomputing window_tokens (used
// when a CLI process resumes a session started by an earlier
// invocation).
func (m *Manager) Restore(sess model.Session, ctx model.ActiveContext) {
	m.current = &sess
	m.active = activecontext.New(ctx.SystemPrompt)
	m.active.Restore(ctx)
}

// Current returns the active session, or false if none has started.
func (m *Manager) Current() (model.Session, bool) {
	if m.current == nil {
		return model.Session{}, false
	}
	return *m.current, true
}

// ActiveContext returns the running session's ActiveContext store.
func (m *Manager) ActiveContext() *activecontext.Store {
	return m.active
}

// IncrementTurn advances the current session's turn counter by one and
// returns the updated session. A no-op returning the zero value if no
// session is current.
func (m *Manager) IncrementTurn() model.Session {
	if m.current == nil {
		return model.Session{}
	}
	m.current.TurnCount++
	return *m.current
}

// SwitchModel ends the current session and starts a new one on a
// different model, recomputing window_tokens from scratch (spec §3
// invariant 4: the window is fixed per-session, so a model switch
// always starts a new session rather than resizing the old one).
// Only the system prompt carries over; the new session's ActiveContext
// starts with no recent messages and no checkpoints (spec scenario S5),
// since the old session's content was sized against the old model's
// window and may not fit the new one.
func (m *Manager) SwitchModel(ctx context.Context, modelID string, userWindowCeiling int) (model.Session, error) {
	var systemPrompt string
	if m.active != nil {
		systemPrompt = m.active.View().SystemPrompt
	}

	return m.NewSession(ctx, modelID, systemPrompt, userWindowCeiling)
}

// End closes out the current session, logging the end and clearing the
// current session and its ActiveContext. It does not delete any
// persisted state; SessionHistory remains as an audit trail.
func (m *Manager) End(ctx context.Context) error {
	if m.current == nil {
		return nil
	}
	logger.G(ctx).WithField("session", m.current.ID).Info("session: ended")
	m.current = nil
	m.active = nil
	return nil
}
