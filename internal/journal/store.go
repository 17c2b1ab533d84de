// Package journal persists a record of relay pipeline runs for inspection
// and duplicate-delivery flagging. The relay works without it; it is an
// observability aid, not pipeline state.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded pipeline run.
type Entry struct {
	ID          string
	MediaID     string
	Sender      string
	Transcript  string
	Translation string
	Status      string // "ok" | "failed"
	Error       string
	Latency     time.Duration
	CreatedAt   time.Time
}

// Store implements the relay journal on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS relays (
		id          TEXT PRIMARY KEY,
		media_id    TEXT NOT NULL,
		sender      TEXT NOT NULL,
		transcript  TEXT,
		translation TEXT,
		status      TEXT NOT NULL,
		error       TEXT,
		latency_ms  INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_relays_media ON relays(media_id);
	CREATE INDEX IF NOT EXISTS idx_relays_time ON relays(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record stores one pipeline run.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relays (id, media_id, sender, transcript, translation, status, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.MediaID, e.Sender, e.Transcript, e.Translation, e.Status, e.Error,
		e.Latency.Milliseconds(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record relay: %w", err)
	}
	return nil
}

// MediaSeen returns how many runs have already been recorded for mediaID.
// The relay uses this to flag platform re-deliveries; it never suppresses
// them.
func (s *Store) MediaSeen(ctx context.Context, mediaID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relays WHERE media_id = ?`, mediaID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count media sightings: %w", err)
	}
	return n, nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_id, sender, transcript, translation, status, error, latency_ms, created_at
		FROM relays ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent relays: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var latencyMS int64
		if err := rows.Scan(&e.ID, &e.MediaID, &e.Sender, &e.Transcript, &e.Translation,
			&e.Status, &e.Error, &latencyMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relay row: %w", err)
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM relays WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune relays: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("journal pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
