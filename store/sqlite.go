// Package store provides durable persistence collaborators for the engine:
// message history, session summaries and the audit trail. The engine itself
// only writes through the core interfaces; reads serve the transport surface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amandahq/converse/core"
)

// SQLite persists messages, summaries and audit records in a single
// sqlite database. It implements core.MessageWriter, core.SummaryStore and
// core.AuditSink.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLite) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		synopsis TEXT NOT NULL,
		highlights_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_user ON summaries(user_id, created_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		record_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_conversation ON audit_log(conversation_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveMessage implements core.MessageWriter.
func (s *SQLite) SaveMessage(ctx context.Context, conversationID string, role core.Role, content string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, string(role), content, ts.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in conversational order.
func (s *SQLite) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var (
			role    string
			content string
			created int64
		)
		if err := rows.Scan(&role, &content, &created); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, core.Message{
			Role:      core.Role(role),
			Content:   content,
			Timestamp: time.UnixMilli(created).UTC(),
		})
	}
	return out, rows.Err()
}

// SaveSummary implements core.SummaryStore.
func (s *SQLite) SaveSummary(ctx context.Context, summary core.SessionSummary) error {
	highlights, err := json.Marshal(summary.Highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (user_id, conversation_id, synopsis, highlights_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		summary.UserID, summary.ConversationID, summary.Synopsis, string(highlights), summary.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// LatestSummary implements core.SummaryStore. It returns (nil, nil) when the
// user has no prior conversations.
func (s *SQLite) LatestSummary(ctx context.Context, userID string) (*core.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, synopsis, highlights_json, created_at
		 FROM summaries WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	)

	var (
		summary    core.SessionSummary
		highlights sql.NullString
		created    int64
	)
	err := row.Scan(&summary.ConversationID, &summary.Synopsis, &highlights, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary row: %w", err)
	}

	summary.UserID = userID
	summary.CreatedAt = time.UnixMilli(created).UTC()
	if highlights.Valid && highlights.String != "" {
		if err := json.Unmarshal([]byte(highlights.String), &summary.Highlights); err != nil {
			return nil, fmt.Errorf("unmarshal highlights: %w", err)
		}
	}
	return &summary, nil
}

// Record implements core.AuditSink. The full record is stored as JSON next to
// the indexed identity columns; the engine never reads it back.
func (s *SQLite) Record(ctx context.Context, rec core.AuditRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (turn_id, user_id, conversation_id, mode, record_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TurnID, rec.UserID, rec.ConversationID, string(rec.Mode), string(payload), rec.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
