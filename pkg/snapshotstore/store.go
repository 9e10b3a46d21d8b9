// Package snapshotstore persists full Snapshot payloads to disk,
// zstd-compressed, using the same write-temp-and-rename discipline as
// pkg/store, plus the cross-process flock pattern from
// jack-phare-goat's pkg/session/writer.go (TryLockContext with a short
// timeout rather than blocking indefinitely, since a stuck snapshot
// writer must not wedge the whole engine).
package snapshotstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/model"
)

const lockTimeout = 5 * time.Second

// Store persists Snapshots under a session-scoped directory.
type Store struct {
	dir string
}

// New builds a Store rooted at dir (see store.Layout.SnapshotDir).
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(snapshotID string) string {
	return filepath.Join(s.dir, snapshotID+".json.zst")
}

// Save compresses and atomically persists snap.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "create snapshot directory")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return errors.Wrap(err, "build zstd encoder")
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)

	path := s.path(snap.ID)
	lock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return errors.Wrap(model.NewEngineError(model.ErrSnapshotFailed, err), "acquire snapshot lock")
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename snapshot file")
	}
	return nil
}

// Load decompresses and decodes the snapshot with the given id.
func (s *Store) Load(snapshotID string) (model.Snapshot, error) {
	compressed, err := os.ReadFile(s.path(snapshotID))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, model.NewEngineError(model.ErrSnapshotNotFound, err)
		}
		return model.Snapshot{}, errors.Wrap(err, "read snapshot file")
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return model.Snapshot{}, errors.Wrap(err, "build zstd decoder")
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return model.Snapshot{}, errors.Wrap(err, "decompress snapshot")
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snap, nil
}

// List returns descriptors for every snapshot in the store, newest first,
// optionally narrowed by filter.
func (s *Store) List(filter model.SnapshotFilter) ([]model.SnapshotDescriptor, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot directory")
	}

	var out []model.SnapshotDescriptor
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".zst" {
			continue
		}
		id := fileNameToID(e.Name())
		snap, err := s.Load(id)
		if err != nil {
			continue // skip unreadable/partial entries rather than failing the whole listing
		}
		if filter.Purpose != "" && snap.Purpose != filter.Purpose {
			continue
		}
		if filter.Tag != "" && snap.Tag != filter.Tag {
			continue
		}
		out = append(out, model.SnapshotDescriptor{
			ID:           snap.ID,
			SessionID:    snap.SessionID,
			Purpose:      snap.Purpose,
			Tag:          snap.Tag,
			Timestamp:    snap.Timestamp,
			MessageCount: len(snap.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Delete removes a snapshot's file from disk.
func (s *Store) Delete(snapshotID string) error {
	err := os.Remove(s.path(snapshotID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete snapshot file")
	}
	return nil
}

func fileNameToID(name string) string {
	return name[:len(name)-len(".json.zst")]
}
