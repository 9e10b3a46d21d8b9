package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// SessionStore is the facade pkg/session and pkg/orchestrator depend on:
// it combines the flat-file HistoryStore (canonical data) with the
// sqlite Catalog (fast listing), keeping them in sync the way the
// teacher's factory.go wires its store plus its auto-migration check
// into one ConversationStore-shaped entry point.
type SessionStore struct {
	Layout  Layout
	History *HistoryStore
	Catalog *Catalog
}

// Open builds a SessionStore rooted at root (see NewLayout for the
// empty-string default).
func Open(ctx context.Context, root string) (*SessionStore, error) {
	layout, err := NewLayout(root)
	if err != nil {
		return nil, err
	}
	catalog, err := OpenCatalog(ctx, layout.CatalogPath())
	if err != nil {
		return nil, err
	}
	return &SessionStore{
		Layout:  layout,
		History: NewHistoryStore(layout),
		Catalog: catalog,
	}, nil
}

// Close releases the catalog's database handle.
func (s *SessionStore) Close() error {
	return s.Catalog.Close()
}

// AppendMessage appends msg to history and refreshes the catalog entry
// for the session. The catalog recomputes MessageCount/FirstMessage from
// the full history read rather than incrementally, which is acceptable
// since catalog refresh happens once per appended message (twice per
// turn: the user message and the reply).
func (s *SessionStore) AppendMessage(ctx context.Context, sess model.Session, msg model.Message) error {
	if err := s.History.AppendMessage(sess.ID, msg); err != nil {
		return errors.Wrap(err, "append message to history")
	}
	return s.refreshCatalog(ctx, sess)
}

func (s *SessionStore) refreshCatalog(ctx context.Context, sess model.Session) error {
	messages, err := s.History.LoadMessages(sess.ID)
	if err != nil {
		return errors.Wrap(err, "reload history for catalog refresh")
	}
	record := model.NewSessionHistoryRecord(sess.ID, sess.ModelID)
	record.Messages = messages
	record.CreatedAt = sess.CreatedAt
	if len(messages) > 0 {
		for _, m := range messages {
			if m.Role == model.RoleUser {
				record.FirstUserPrompt = m.Content
				break
			}
		}
	}
	return s.Catalog.Upsert(ctx, record.ToSummary())
}

// DeleteSession removes a session's catalog entry. The flat-file history
// is left on disk deliberately: SessionHistory is an audit trail, and
// deleting it is a separate, explicit operation this store does not
// expose.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.Catalog.Delete(ctx, sessionID)
}

// QuerySessions lists session summaries via the catalog.
func (s *SessionStore) QuerySessions(ctx context.Context, opts model.QueryOptions) (model.QueryResult, error) {
	return s.Catalog.Query(ctx, opts)
}
