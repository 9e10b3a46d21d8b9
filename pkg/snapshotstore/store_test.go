package snapshotstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctxengine/ctxengine/pkg/model"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "snapshots"))
	snap := model.Snapshot{
		ID:        "snap-1",
		SessionID: "sess-1",
		Purpose:   model.SnapshotUserRequest,
		Tag:       "before-risky-edit",
		Timestamp: time.Now().Truncate(time.Second),
		Messages:  []model.Message{{ID: "m1", Content: "hello"}},
	}

	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("snap-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != snap.ID || got.Tag != snap.Tag || len(got.Messages) != 1 {
		t.Errorf("got %+v, want round trip of %+v", got, snap)
	}
}

func TestLoadMissingReturnsSnapshotNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("never-saved")
	var engineErr *model.EngineError
	if !errors.As(err, &engineErr) || engineErr.Kind != model.ErrSnapshotNotFound {
		t.Errorf("err = %v, want EngineError{Kind: ErrSnapshotNotFound}", err)
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	older := model.Snapshot{ID: "snap-old", SessionID: "s1", Purpose: model.SnapshotMilestone, Timestamp: time.Now().Add(-time.Hour)}
	newer := model.Snapshot{ID: "snap-new", SessionID: "s1", Purpose: model.SnapshotMilestone, Timestamp: time.Now()}

	if err := s.Save(context.Background(), older); err != nil {
		t.Fatalf("Save(older): %v", err)
	}
	if err := s.Save(context.Background(), newer); err != nil {
		t.Fatalf("Save(newer): %v", err)
	}

	list, err := s.List(model.SnapshotFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(list))
	}
	if list[0].ID != "snap-new" {
		t.Errorf("list[0].ID = %q, want newest snap-new first", list[0].ID)
	}
}

func TestListFiltersByPurposeAndTag(t *testing.T) {
	s := New(t.TempDir())
	a := model.Snapshot{ID: "a", SessionID: "s1", Purpose: model.SnapshotMilestone, Tag: "alpha", Timestamp: time.Now()}
	b := model.Snapshot{ID: "b", SessionID: "s1", Purpose: model.SnapshotEmergency, Tag: "beta", Timestamp: time.Now()}

	if err := s.Save(context.Background(), a); err != nil {
		t.Fatalf("Save(a): %v", err)
	}
	if err := s.Save(context.Background(), b); err != nil {
		t.Fatalf("Save(b): %v", err)
	}

	list, err := s.List(model.SnapshotFilter{Purpose: model.SnapshotMilestone})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("List(purpose=milestone) = %+v, want only a", list)
	}

	list, err = s.List(model.SnapshotFilter{Tag: "beta"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "b" {
		t.Errorf("List(tag=beta) = %+v, want only b", list)
	}
}

func TestListEmptyDirectoryReturnsNilNoError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))
	list, err := s.List(model.SnapshotFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list != nil {
		t.Errorf("got %v, want nil", list)
	}
}

func TestDeleteRemovesSnapshotAndIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	snap := model.Snapshot{ID: "snap-1", SessionID: "s1", Purpose: model.SnapshotMilestone, Timestamp: time.Now()}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete("snap-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("snap-1"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}

	if _, err := s.Load("snap-1"); err == nil {
		t.Error("expected Load to fail after Delete")
	}
}
