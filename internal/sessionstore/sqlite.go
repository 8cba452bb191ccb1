package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores sessions in a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at path, creating parent
// directories and the schema as needed.
func NewSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sessionstore", "driver", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("session store initialized", "path", path)
	return s, nil
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS gateway_sessions (
			key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			resume_url TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Load returns the record stored under key, or ErrNotFound.
func (s *SQLite) Load(ctx context.Context, key string) (*Record, error) {
	var (
		rec     Record
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, sequence, resume_url, updated_at FROM gateway_sessions WHERE key = ?`,
		key,
	).Scan(&rec.SessionID, &rec.Sequence, &rec.ResumeURL, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &rec, nil
}

// Save inserts or replaces the record under key.
func (s *SQLite) Save(ctx context.Context, key string, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO gateway_sessions (key, session_id, sequence, resume_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		key,
		rec.SessionID,
		rec.Sequence,
		rec.ResumeURL,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session", "key", key, "session_id", rec.SessionID, "seq", rec.Sequence)
	return nil
}

// Clear deletes the record under key, if any.
func (s *SQLite) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gateway_sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.logger.Info("closing session store")
	return s.db.Close()
}
