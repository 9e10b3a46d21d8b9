package store

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// HistoryStore persists the append-only SessionHistory log, the current
// checkpoint set, and mode state for a single session (spec §3
// SessionHistory, storage-separation invariant). Adapted from the
// teacher's JSONConversationStore but split across three files instead
// of one monolithic conversation blob, since history/checkpoints/mode
// change at very different rates and the append-only log must never be
// rewritten wholesale.
type HistoryStore struct {
	layout Layout
}

// NewHistoryStore builds a HistoryStore rooted at layout.
func NewHistoryStore(layout Layout) *HistoryStore {
	return &HistoryStore{layout: layout}
}

// AppendMessage appends msg to the session's history log. This is the
// only mutation the log ever receives; history is never compressed or
// rewritten (spec §3 invariant on SessionHistory).
func (s *HistoryStore) AppendMessage(sessionID string, msg model.Message) error {
	path, err := s.layout.HistoryPath(sessionID)
	if err != nil {
		return err
	}
	return appendJSONLAtomic(path, msg)
}

// LoadMessages reads the full message history for a session in
// append order.
func (s *HistoryStore) LoadMessages(sessionID string) ([]model.Message, error) {
	path, err := s.layout.HistoryPath(sessionID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open history log")
	}
	defer f.Close()

	var messages []model.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var msg model.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, errors.Wrap(err, "decode history line")
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan history log")
	}
	return messages, nil
}

// checkpointsFile is the on-disk shape of checkpoints.json.
type checkpointsFile struct {
	Checkpoints []model.CheckpointSummary `json:"checkpoints"`
	Records     []model.CheckpointRecord  `json:"records"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

// SaveCheckpoints overwrites the current checkpoint summaries for a
// session (the active, in-force checkpoint chain) along with the
// append-only audit records of every checkpoint ever produced.
func (s *HistoryStore) SaveCheckpoints(sessionID string, active []model.CheckpointSummary, records []model.CheckpointRecord) error {
	path, err := s.layout.CheckpointsPath(sessionID)
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, checkpointsFile{
		Checkpoints: active,
		Records:     records,
		UpdatedAt:   time.Now(),
	})
}

// LoadCheckpoints reads the current checkpoint summaries and the full
// audit record list for a session.
func (s *HistoryStore) LoadCheckpoints(sessionID string) ([]model.CheckpointSummary, []model.CheckpointRecord, error) {
	path, err := s.layout.CheckpointsPath(sessionID)
	if err != nil {
		return nil, nil, err
	}
	var f checkpointsFile
	if err := readJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "load checkpoints")
	}
	return f.Checkpoints, f.Records, nil
}

// SaveModeState overwrites the current ModeState for a session.
func (s *HistoryStore) SaveModeState(sessionID string, state model.ModeState) error {
	path, err := s.layout.ModePath(sessionID)
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, state)
}

// LoadModeState reads a session's ModeState, returning the zero value
// (Mode="", no transitions) if none has ever been saved.
func (s *HistoryStore) LoadModeState(sessionID string) (model.ModeState, error) {
	path, err := s.layout.ModePath(sessionID)
	if err != nil {
		return model.ModeState{}, err
	}
	var state model.ModeState
	if err := readJSON(path, &state); err != nil {
		if os.IsNotExist(err) {
			return model.ModeState{}, nil
		}
		return model.ModeState{}, errors.Wrap(err, "load mode state")
	}
	return state, nil
}
