// Package model defines the core data types of the context engine:
// sessions, messages, active context, checkpoints, snapshots, mode
// state, and VRAM readings. It carries no behaviour beyond small,
// side-effect-free helpers; the components in pkg/session,
// pkg/activecontext, pkg/compression, pkg/snapshot, pkg/sizing, and
// pkg/prompt own the operations that mutate these types.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random, globally unique identifier suitable for
// sessions, messages, checkpoints, and snapshots.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// GenerateSessionID creates a stable, sortable session identifier: a UTC
// timestamp prefix followed by a random suffix, so session directories
// sort chronologically on disk.
func GenerateSessionID() string {
	return time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}
