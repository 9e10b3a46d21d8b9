// Package snapshot implements the SnapshotCoordinator (spec §4.4):
// create/list/restore/prune over pkg/snapshotstore, applying the
// RetentionPolicy so old mode-transition snapshots don't accumulate
// without bound while milestones and recent emergencies are preserved.
package snapshot

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ctxengine/ctxengine/pkg/activecontext"
	"github.com/ctxengine/ctxengine/pkg/events"
	"github.com/ctxengine/ctxengine/pkg/model"
	"github.com/ctxengine/ctxengine/pkg/snapshotstore"
)

// Coordinator ties a snapshotstore.Store to the ActiveContext it
// snapshots from and the event bus it announces through.
type Coordinator struct {
	store    *snapshotstore.Store
	active   *activecontext.Store
	bus      *events.Bus
	policy   model.RetentionPolicy
}

// New builds a Coordinator.
func New(store *snapshotstore.Store, active *activecontext.Store, bus *events.Bus, policy model.RetentionPolicy) *Coordinator {
	return &Coordinator{store: store, active: active, bus: bus, policy: policy}
}

// Create snapshots the current ActiveContext plus modeState under the
// given purpose/tag, persists it, and announces it. For a
// mode-transition snapshot it also prunes older mode-transition
// snapshots beyond the retention policy's limit; other purposes are not
// pruned here.
func (c *Coordinator) Create(ctx context.Context, sessionID string, purpose model.SnapshotPurpose, tag string, modeState model.ModeState) (model.SnapshotDescriptor, error) {
	snap := model.Snapshot{
		ID:        model.NewID("snap"),
		SessionID: sessionID,
		Purpose:   purpose,
		Tag:       tag,
		Timestamp: time.Now(),
		ModeState: modeState,
	}
	ac := c.active.Snapshot()
	snap.Messages = ac.RecentMessages
	snap.CheckpointState = ac.CheckpointSummaries

	if err := c.store.Save(ctx, snap); err != nil {
		return model.SnapshotDescriptor{}, err
	}

	descriptor := model.SnapshotDescriptor{
		ID:           snap.ID,
		SessionID:    snap.SessionID,
		Purpose:      snap.Purpose,
		Tag:          snap.Tag,
		Timestamp:    snap.Timestamp,
		MessageCount: len(snap.Messages),
	}

	if c.bus != nil {
		c.bus.Publish(events.Event{
			Kind:      events.KindSnapshotCreated,
			SessionID: sessionID,
			At:        snap.Timestamp,
			Payload:   events.SnapshotCreatedPayload{Descriptor: descriptor},
		})
	}

	if purpose == model.SnapshotModeTransition {
		if err := c.pruneModeTransitions(); err != nil {
			return descriptor, err
		}
	}

	return descriptor, nil
}

// List returns snapshot descriptors matching filter, newest first.
func (c *Coordinator) List(filter model.SnapshotFilter) ([]model.SnapshotDescriptor, error) {
	return c.store.List(filter)
}

// Restore loads a snapshot and replaces the current ActiveContext with
// its payload, announcing the restoration.
func (c *Coordinator) Restore(ctx context.Context, sessionID, snapshotID string) (model.ModeState, error) {
	snap, err := c.store.Load(snapshotID)
	if err != nil {
		return model.ModeState{}, err
	}

	c.active.Restore(model.ActiveContext{
		SystemPrompt:        c.active.View().SystemPrompt,
		CheckpointSummaries: snap.CheckpointState,
		RecentMessages:      snap.Messages,
	})

	if c.bus != nil {
		c.bus.Publish(events.Event{
			Kind:      events.KindSessionRestored,
			SessionID: sessionID,
			At:        time.Now(),
			Payload: events.SessionRestoredPayload{FromSnapshot: model.SnapshotDescriptor{
				ID: snap.ID, SessionID: snap.SessionID, Purpose: snap.Purpose,
				Tag: snap.Tag, Timestamp: snap.Timestamp, MessageCount: len(snap.Messages),
			}},
		})
	}

	return snap.ModeState, nil
}

// Latest returns the most recent snapshot's descriptor, or
// ErrSnapshotNotFound if none exist.
func (c *Coordinator) Latest(filter model.SnapshotFilter) (model.SnapshotDescriptor, error) {
	all, err := c.List(filter)
	if err != nil {
		return model.SnapshotDescriptor{}, err
	}
	if len(all) == 0 {
		return model.SnapshotDescriptor{}, model.NewEngineError(model.ErrSnapshotNotFound, nil)
	}
	return all[0], nil
}

// pruneModeTransitions deletes mode-transition snapshots beyond
// KeepModeTransitions, oldest first (spec §4.4 retention default).
func (c *Coordinator) pruneModeTransitions() error {
	all, err := c.List(model.SnapshotFilter{Purpose: model.SnapshotModeTransition})
	if err != nil {
		return err
	}
	if len(all) <= c.policy.KeepModeTransitions {
		return nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return c.deleteAll(all[c.policy.KeepModeTransitions:])
}

// PruneEmergencies deletes emergency snapshots older than the policy's
// EmergencyMaxAge.
func (c *Coordinator) PruneEmergencies() error {
	all, err := c.List(model.SnapshotFilter{Purpose: model.SnapshotEmergency})
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-c.policy.EmergencyMaxAge)
	var stale []model.SnapshotDescriptor
	for _, snap := range all {
		if snap.Timestamp.Before(cutoff) {
			stale = append(stale, snap)
		}
	}
	return c.deleteAll(stale)
}

// deleteAll removes a batch of snapshot files concurrently: pruning runs
// off the turn-critical path, and each delete is an independent file
// removal with no shared state to race on.
func (c *Coordinator) deleteAll(descriptors []model.SnapshotDescriptor) error {
	var g errgroup.Group
	for _, d := range descriptors {
		id := d.ID
		g.Go(func() error { return c.store.Delete(id) })
	}
	return g.Wait()
}
