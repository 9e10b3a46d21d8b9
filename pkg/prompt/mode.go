package prompt

import (
	"context"
	"time"

	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/model"
)

// SnapshotRequester is the narrow slice of snapshot.Coordinator the
// ModeStateMachine needs: every transition snapshots the session first,
// so a restore can always land back in the mode it left (spec §4.6
// "transitions always snapshot first").
type SnapshotRequester interface {
	Create(ctx context.Context, sessionID string, purpose model.SnapshotPurpose, tag string, modeState model.ModeState) (model.SnapshotDescriptor, error)
}

// allowedTransitions is the explicit mode graph (spec §4.6): every mode
// can return to Assistant, Planning leads into Developer, and Debugger
// is reachable from Developer when something goes wrong, or directly
// from Assistant for a quick diagnosis.
var allowedTransitions = map[model.Mode][]model.Mode{
	model.ModeAssistant: {model.ModePlanning, model.ModeDeveloper, model.ModeDebugger},
	model.ModePlanning:  {model.ModeDeveloper, model.ModeAssistant},
	model.ModeDeveloper: {model.ModeDebugger, model.ModeAssistant, model.ModePlanning},
	model.ModeDebugger:  {model.ModeDeveloper, model.ModeAssistant},
}

// StateMachine owns a session's ModeState and enforces the mode graph.
type StateMachine struct {
	state     model.ModeState
	snapshots SnapshotRequester
	bus       *events.Bus
}

// NewStateMachine starts a session in ModeAssistant, or restores a
// prior ModeState when resuming a session.
func NewStateMachine(initial model.ModeState, snapshots SnapshotRequester, bus *events.Bus) *StateMachine {
	if initial.Mode == "" {
		initial = model.ModeState{Mode: model.ModeAssistant, ActivatedAt: time.Now()}
	}
	return &StateMachine{state: initial, snapshots: snapshots, bus: bus}
}

// Current returns the active ModeState.
func (m *StateMachine) Current() model.ModeState {
	return m.state
}

// Restore replaces the live ModeState wholesale, bypassing the mode
// graph check: a restored snapshot's mode is authoritative, not a
// transition from the current mode (spec invariant 6).
func (m *StateMachine) Restore(state model.ModeState) {
	m.state = state
}

// CanTransition reports whether to is reachable from the current mode.
func (m *StateMachine) CanTransition(to model.Mode) bool {
	for _, candidate := range allowedTransitions[m.state.Mode] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned by Transition when to is not
// reachable from the current mode.
type ErrInvalidTransition struct {
	From, To model.Mode
}

func (e *ErrInvalidTransition) Error() string {
	return "prompt: mode " + string(e.To) + " is not reachable from " + string(e.From)
}

// Transition moves to a new mode, snapshotting the session first (spec
// §4.6), recording the transition, and publishing ModeChanged. cause is
// "manual" for a user-invoked mode switch, or "auto:<heuristic>" for a
// future automatic trigger.
func (m *StateMachine) Transition(ctx context.Context, sessionID string, to model.Mode, cause string) (model.ModeTransition, error) {
	if !m.CanTransition(to) {
		return model.ModeTransition{}, &ErrInvalidTransition{From: m.state.Mode, To: to}
	}

	if m.snapshots != nil {
		if _, err := m.snapshots.Create(ctx, sessionID, model.SnapshotModeTransition, string(to), m.state); err != nil {
			return model.ModeTransition{}, err
		}
	}

	now := time.Now()
	transition := model.ModeTransition{From: m.state.Mode, To: to, Cause: cause, TransitionedAt: now}

	m.state.Mode = to
	m.state.ActivatedAt = now
	m.state.RecentTransitions = append(m.state.RecentTransitions, transition)
	if len(m.state.RecentTransitions) > 20 {
		m.state.RecentTransitions = m.state.RecentTransitions[len(m.state.RecentTransitions)-20:]
	}

	if m.bus != nil {
		m.bus.Publish(events.Event{
			Kind:      events.KindModeChanged,
			SessionID: sessionID,
			At:        now,
			Payload:   events.ModeChangedPayload{Transition: transition},
		})
	}

	return transition, nil
}
