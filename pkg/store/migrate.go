package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/logger"
	"github.com/ctxengine/ctxengine/pkg/model"
)

// legacySessionFile is the pre-tiered on-disk shape this engine
// replaced: one interleaved JSON blob per session living directly
// under the storage root, instead of a sessions/<id>/ directory split
// across history.jsonl/checkpoints.json/mode.json. Grounded in the
// teacher's flat per-conversation JSON files
// (pkg/conversations/json_store.go), generalized from "JSON -> BBolt"
// to "flat interleaved -> tiered" (spec §6 "Migration").
type legacySessionFile struct {
	ID                string                    `json:"id"`
	ModelID           string                    `json:"modelId"`
	CreatedAt         time.Time                 `json:"createdAt"`
	Messages          []model.Message           `json:"messages"`
	Checkpoints       []model.CheckpointSummary `json:"checkpoints"`
	CheckpointRecords []model.CheckpointRecord  `json:"checkpointRecords"`
	Mode              model.ModeState           `json:"mode"`
}

// reservedRootFiles are root-level files a legacy scan must never
// mistake for a session blob.
var reservedRootFiles = map[string]bool{
	"catalog.db":           true,
	"current_session.json": true,
}

// MigrationOptions configures a legacy-layout migration run.
type MigrationOptions struct {
	DryRun bool // validate and count only; writes nothing
	Force  bool // re-migrate sessions that already have a tiered directory
	// BackupDir, if set, receives a copy of each legacy file before it
	// is removed.
	BackupDir string
	Verbose   bool
}

// MigrationResult summarizes a completed migration run.
type MigrationResult struct {
	TotalSessions int
	MigratedCount int
	SkippedCount  int
	FailedCount   int
	FailedIDs     []string
	Duration      time.Duration
}

// DetectLegacySessions scans root for flat legacy session files,
// returning their session IDs (the filename stem). A file only counts
// if it parses as a legacy blob with a non-empty ID, so stray
// unrelated JSON files in root are ignored.
func DetectLegacySessions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan storage root for legacy sessions")
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || reservedRootFiles[entry.Name()] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, entry.Name()))
		if err != nil {
			continue
		}
		var probe legacySessionFile
		if err := json.Unmarshal(data, &probe); err != nil || probe.ID == "" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return ids, nil
}

// MigrateLegacyLayout migrates every legacy flat session file under
// s.Layout.Root into the tiered sessions/<id>/ layout and refreshes the
// catalog so migrated sessions are immediately listable. Idempotent: a
// session whose tiered history.jsonl already exists is skipped unless
// opts.Force. Safe to call on every startup.
func (s *SessionStore) MigrateLegacyLayout(ctx context.Context, opts MigrationOptions) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{}

	ids, err := DetectLegacySessions(s.Layout.Root)
	if err != nil {
		return nil, err
	}
	result.TotalSessions = len(ids)
	if len(ids) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	if opts.Verbose {
		logger.G(ctx).WithField("count", len(ids)).Info("migration: found legacy session files")
	}

	for _, id := range ids {
		migrated, err := s.migrateOneLegacySession(ctx, id, opts)
		switch {
		case err != nil:
			result.FailedCount++
			result.FailedIDs = append(result.FailedIDs, id)
			logger.G(ctx).WithError(err).WithField("session", id).Error("migration: failed to migrate legacy session")
		case migrated:
			result.MigratedCount++
		default:
			result.SkippedCount++
		}
	}

	result.Duration = time.Since(start)
	if opts.Verbose {
		logger.G(ctx).WithField("migrated", result.MigratedCount).WithField("skipped", result.SkippedCount).
			WithField("failed", result.FailedCount).Info("migration: legacy layout scan complete")
	}
	return result, nil
}

func (s *SessionStore) migrateOneLegacySession(ctx context.Context, id string, opts MigrationOptions) (bool, error) {
	path := filepath.Join(s.Layout.Root, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "read legacy session file")
	}
	var legacy legacySessionFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return false, errors.Wrap(err, "decode legacy session file")
	}

	historyPath, err := s.Layout.HistoryPath(id)
	if err != nil {
		return false, err
	}
	if !opts.Force {
		if _, statErr := os.Stat(historyPath); statErr == nil {
			return false, nil // already migrated
		}
	}
	if opts.DryRun {
		return true, nil
	}

	for _, msg := range legacy.Messages {
		if err := s.History.AppendMessage(id, msg); err != nil {
			return false, errors.Wrap(err, "append migrated message")
		}
	}
	if err := s.History.SaveCheckpoints(id, legacy.Checkpoints, legacy.CheckpointRecords); err != nil {
		return false, errors.Wrap(err, "save migrated checkpoints")
	}
	if err := s.History.SaveModeState(id, legacy.Mode); err != nil {
		return false, errors.Wrap(err, "save migrated mode state")
	}

	sess := model.Session{ID: legacy.ID, ModelID: legacy.ModelID, CreatedAt: legacy.CreatedAt, RootDir: s.Layout.Root}
	if err := s.refreshCatalog(ctx, sess); err != nil {
		return false, errors.Wrap(err, "refresh catalog for migrated session")
	}

	if opts.BackupDir != "" {
		if err := backupLegacyFile(path, opts.BackupDir, id); err != nil {
			return false, err
		}
	}
	if err := os.Remove(path); err != nil {
		return false, errors.Wrap(err, "remove migrated legacy file")
	}

	return true, nil
}

func backupLegacyFile(path, backupDir, id string) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return errors.Wrap(err, "create migration backup directory")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read legacy file for backup")
	}
	if err := os.WriteFile(filepath.Join(backupDir, id+".json"), data, 0o644); err != nil {
		return errors.Wrap(err, "write migration backup")
	}
	return nil
}
