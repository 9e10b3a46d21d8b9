package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/ctxengine/ctxengine/pkg/model"
)

// schema mirrors the teacher's conversation_summaries table
// (pkg/conversations/sqlite_schema.go), narrowed to the fields
// SessionSummary actually carries: this catalog indexes the flat-file
// history store for fast listing and search, it never holds the
// message bodies themselves.
const createCatalogTable = `
CREATE TABLE IF NOT EXISTS session_catalog (
	session_id    TEXT PRIMARY KEY,
	model_id      TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	first_message TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
`

const createCatalogUpdatedAtIndex = `
CREATE INDEX IF NOT EXISTS idx_session_catalog_updated_at ON session_catalog(updated_at DESC);
`

// Catalog is a SQLite-backed index over session summaries, used for
// ListSessions/Query without reading every session's history log.
// Configured for WAL mode the same way as the teacher's
// SQLiteConversationStore (pkg/conversations/sqlite_store.go).
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if necessary) the catalog database at path.
func OpenCatalog(ctx context.Context, path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create catalog directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping catalog database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "exec pragma %q", p)
		}
	}

	if _, err := db.ExecContext(ctx, createCatalogTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create session_catalog table")
	}
	if _, err := db.ExecContext(ctx, createCatalogUpdatedAtIndex); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create catalog index")
	}

	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert inserts or updates a session's catalog entry. Called whenever a
// session's history store is appended to, so the catalog never falls far
// behind the canonical flat-file record.
func (c *Catalog) Upsert(ctx context.Context, s model.SessionSummary) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO session_catalog (session_id, model_id, message_count, first_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			model_id = excluded.model_id,
			message_count = excluded.message_count,
			first_message = excluded.first_message,
			updated_at = excluded.updated_at
	`, s.SessionID, s.ModelID, s.MessageCount, s.FirstMessage, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert session catalog entry")
	}
	return nil
}

// Delete removes a session's catalog entry.
func (c *Catalog) Delete(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM session_catalog WHERE session_id = ?`, sessionID)
	return errors.Wrap(err, "delete session catalog entry")
}

// Query lists session summaries matching opts, adapted from the
// teacher's SQLiteConversationStore.Query filter/sort assembly.
func (c *Catalog) Query(ctx context.Context, opts model.QueryOptions) (model.QueryResult, error) {
	var (
		where []string
		args  []interface{}
	)
	if opts.SearchTerm != "" {
		where = append(where, "first_message LIKE ?")
		args = append(args, "%"+opts.SearchTerm+"%")
	}
	if opts.ModelID != "" {
		where = append(where, "model_id = ?")
		args = append(args, opts.ModelID)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	sortBy := "updated_at"
	if opts.SortBy == "created_at" {
		sortBy = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(opts.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM session_catalog %s", whereClause)
	if err := c.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return model.QueryResult{}, errors.Wrap(err, "count session catalog entries")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT session_id, model_id, message_count, first_message, created_at, updated_at
		FROM session_catalog %s
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, whereClause, sortBy, sortOrder)
	args = append(args, limit, opts.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.QueryResult{}, errors.Wrap(err, "query session catalog")
	}
	defer rows.Close()

	var summaries []model.SessionSummary
	for rows.Next() {
		var (
			s         model.SessionSummary
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&s.SessionID, &s.ModelID, &s.MessageCount, &s.FirstMessage, &createdAt, &updatedAt); err != nil {
			return model.QueryResult{}, errors.Wrap(err, "scan session catalog row")
		}
		s.CreatedAt = createdAt
		s.UpdatedAt = updatedAt
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return model.QueryResult{}, errors.Wrap(err, "iterate session catalog rows")
	}

	return model.QueryResult{Summaries: summaries, Total: total}, nil
}
