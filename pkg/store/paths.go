// Package store persists SessionHistoryRecord and CheckpointSummary data
// to a flat-file layout on disk (spec §6), plus a SQLite-backed catalog
// for fast listing/search. The flat-file history format and atomic
// write/rename discipline are adapted from the teacher's JSON
// conversation store (pkg/conversations/json_store.go); the catalog is
// adapted from its SQLite store (pkg/conversations/sqlite_store.go,
// sqlite_schema.go), trimmed to an index over history records rather
// than a store of record bodies.
package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Layout is the on-disk root for one user's engine state:
//
//	<root>/sessions/<id>/history.jsonl      append-only message log
//	<root>/sessions/<id>/checkpoints.json   current checkpoint summaries
//	<root>/sessions/<id>/mode.json          current ModeState
//	<root>/snapshots/<id>/<snapshot-id>.json.zst
//	<root>/catalog.db                       sqlite session index
type Layout struct {
	Root string
}

// NewLayout resolves root, creating it if necessary. An empty root
// defaults to ~/.cache/ctxengine, mirroring the teacher's
// GetDefaultBasePath (pkg/conversations/utils.go).
func NewLayout(root string) (Layout, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Layout{}, errors.Wrap(err, "resolve home directory")
		}
		root = filepath.Join(home, ".cache", "ctxengine")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Layout{}, errors.Wrap(err, "create storage root")
	}
	return Layout{Root: root}, nil
}

// SessionDir returns the directory holding a session's files, creating
// it if necessary.
func (l Layout) SessionDir(sessionID string) (string, error) {
	dir := filepath.Join(l.Root, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create session directory")
	}
	return dir, nil
}

// SnapshotDir returns the directory holding a session's snapshots,
// creating it if necessary.
func (l Layout) SnapshotDir(sessionID string) (string, error) {
	dir := filepath.Join(l.Root, "snapshots", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create snapshot directory")
	}
	return dir, nil
}

// CatalogPath returns the path to the sqlite catalog database.
func (l Layout) CatalogPath() string {
	return filepath.Join(l.Root, "catalog.db")
}

// HistoryPath returns the append-only message log path for a session.
func (l Layout) HistoryPath(sessionID string) (string, error) {
	dir, err := l.SessionDir(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

// CheckpointsPath returns the current checkpoint summaries file path.
func (l Layout) CheckpointsPath(sessionID string) (string, error) {
	dir, err := l.SessionDir(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "checkpoints.json"), nil
}

// ModePath returns the current ModeState file path.
func (l Layout) ModePath(sessionID string) (string, error) {
	dir, err := l.SessionDir(sessionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mode.json"), nil
}
