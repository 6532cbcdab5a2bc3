// Package history records session and connection events in a local SQLite
// database. It stores who connected where and when; it never stores
// passwords, session tokens or the connection list itself, which always
// comes from the vault.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Operation types
const (
	OpLogin       = "login"
	OpLoginFailed = "login_failed"
	OpLogout      = "logout"
	OpConnect     = "connect"
)

// File permissions
const (
	FileMode = 0600
	DirMode  = 0700
)

// Errors
var (
	ErrClosed    = errors.New("history: store is closed")
	ErrInvalidOp = errors.New("history: unknown operation")
)

// Event is a single history record.
type Event struct {
	ID       string    `json:"id" yaml:"id"`
	Time     time.Time `json:"time" yaml:"time"`
	Op       string    `json:"op" yaml:"op"`
	Email    string    `json:"email,omitempty" yaml:"email,omitempty"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Host     string    `json:"host,omitempty" yaml:"host,omitempty"`
	Username string    `json:"username,omitempty" yaml:"username,omitempty"`
	Detail   string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Store is an open history database.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("history: failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	// A single connection keeps SQLite writes serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to configure database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to create tables: %w", err)
	}
	if err := os.Chmod(path, FileMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to set permissions: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			op TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			host TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func validOp(op string) bool {
	switch op {
	case OpLogin, OpLoginFailed, OpLogout, OpConnect:
		return true
	}
	return false
}

// Record stores ev, filling in ID and Time when unset.
func (s *Store) Record(ctx context.Context, ev Event) (Event, error) {
	if !validOp(ev.Op) {
		return Event{}, fmt.Errorf("%w: %q", ErrInvalidOp, ev.Op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Event{}, ErrClosed
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Time.IsZero() {
		ev.Time = s.now()
	}
	ev.Time = ev.Time.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, ts, op, email, label, host, username, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Time.UnixNano(), ev.Op, ev.Email, ev.Label, ev.Host, ev.Username, ev.Detail)
	if err != nil {
		return Event{}, fmt.Errorf("history: failed to record event: %w", err)
	}
	return ev, nil
}

// List returns the most recent events, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT id, ts, op, email, label, host, username, detail FROM events ORDER BY ts DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts int64
		if err := rows.Scan(&ev.ID, &ts, &ev.Op, &ev.Email, &ev.Label, &ev.Host, &ev.Username, &ev.Detail); err != nil {
			return nil, fmt.Errorf("history: failed to read event: %w", err)
		}
		ev.Time = time.Unix(0, ts).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LastConnect returns the time of the most recent connect to label, or the
// zero time.
func (s *Store) LastConnect(ctx context.Context, label string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return time.Time{}, ErrClosed
	}

	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM events WHERE op = ? AND label = ?`, OpConnect, label).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("history: failed to query: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ts.Int64).UTC(), nil
}

// Prune deletes events older than olderThan and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}

	cutoff := s.now().Add(-olderThan).UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: failed to prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
