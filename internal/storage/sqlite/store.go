// Package sqlite provides the default SQLite-backed chat log and user
// directory.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chatchum/relay/internal/relay"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	receiver   TEXT NOT NULL,
	content    TEXT NOT NULL,
	sent_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_pair ON chats (sender, receiver, sent_at);
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY
);
`

// Store persists chat history and the user directory in one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one delivered message.
func (s *Store) Append(ctx context.Context, rec relay.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (message_id, sender, receiver, content, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Sender, rec.Receiver, rec.Content, rec.SentAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append chat record: %w", err)
	}
	return nil
}

// Query returns the history between a and b in either direction, oldest
// first.
func (s *Store) Query(ctx context.Context, a, b string) ([]relay.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, sender, receiver, content, sent_at FROM chats
		 WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		 ORDER BY sent_at, id`,
		a, b, b, a,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var records []relay.Record
	for rows.Next() {
		var (
			id     string
			rec    relay.Record
			sentAt int64
		)
		if err := rows.Scan(&id, &rec.Sender, &rec.Receiver, &rec.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scan chat record: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		rec.ID = parsed
		rec.SentAt = timeFromNanos(sentAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return records, nil
}

func timeFromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// Exists reports whether name is present in the directory.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE username = ?`, name).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// Add records name in the directory. Returns false when the name was
// already present.
func (s *Store) Add(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username) VALUES (?)`, name)
	if err != nil {
		return false, fmt.Errorf("add username: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add username: %w", err)
	}
	return rows > 0, nil
}

// Remove deletes name from the directory.
func (s *Store) Remove(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ?`, name); err != nil {
		return fmt.Errorf("remove username: %w", err)
	}
	return nil
}
