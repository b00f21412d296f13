// Package store keeps the history of Copilot sessions in SQLite so session
// time survives restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Session outcomes.
const (
	OutcomeFinished  = "finished"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Session is one completed Copilot work session on a pull request.
type Session struct {
	ID        string
	ItemKey   string
	Repo      string
	Number    int
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Outcome   string
}

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		item_key TEXT NOT NULL,
		repo TEXT NOT NULL,
		number INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		UNIQUE(item_key, started_at)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordSession stores a session unless one with the same item and start
// time is already recorded. It reports whether the session was new.
func (s *Store) RecordSession(ctx context.Context, sess Session) (bool, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Duration < 0 {
		sess.Duration = 0
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, item_key, repo, number, started_at, ended_at, duration_ms, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ItemKey, sess.Repo, sess.Number,
		sess.StartedAt.UTC().UnixMilli(), sess.EndedAt.UTC().UnixMilli(),
		sess.Duration.Milliseconds(), sess.Outcome,
	)
	if err != nil {
		return false, fmt.Errorf("record session %s: %w", sess.ItemKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record session %s: %w", sess.ItemKey, err)
	}
	return n == 1, nil
}

// TotalDuration sums the duration of every recorded session.
func (s *Store) TotalDuration(ctx context.Context) (time.Duration, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(duration_ms), 0) FROM sessions`).Scan(&ms)
	if err != nil {
		return 0, fmt.Errorf("sum session durations: %w", err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ListSessions returns the most recently ended sessions first. A limit of
// zero or less returns every session.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT id, item_key, repo, number, started_at, ended_at, duration_ms, outcome
		FROM sessions ORDER BY ended_at DESC, item_key`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess                       Session
			started, ended, durationMS int64
		)
		if err := rows.Scan(&sess.ID, &sess.ItemKey, &sess.Repo, &sess.Number, &started, &ended, &durationMS, &sess.Outcome); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = time.UnixMilli(started).UTC()
		sess.EndedAt = time.UnixMilli(ended).UTC()
		sess.Duration = time.Duration(durationMS) * time.Millisecond
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
