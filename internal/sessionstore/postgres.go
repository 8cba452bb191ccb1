package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores sessions in a PostgreSQL table. It is the store to use
// when several hosts may take over the same bot.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	owned  bool
}

// NewPostgres wraps an existing pool and creates the table if needed. The
// caller keeps ownership of the pool.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Postgres{
		pool:   pool,
		logger: logger.With("component", "sessionstore", "driver", "postgres"),
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gateway_sessions (
			key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			sequence BIGINT NOT NULL,
			resume_url TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return p, nil
}

func (p *Postgres) Load(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := p.pool.QueryRow(ctx,
		`SELECT session_id, sequence, resume_url, updated_at FROM gateway_sessions WHERE key = $1`,
		key,
	).Scan(&rec.SessionID, &rec.Sequence, &rec.ResumeURL, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) Save(ctx context.Context, key string, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO gateway_sessions (key, session_id, sequence, resume_url, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			sequence = EXCLUDED.sequence,
			resume_url = EXCLUDED.resume_url,
			updated_at = EXCLUDED.updated_at
	`, key, rec.SessionID, rec.Sequence, rec.ResumeURL, rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	p.logger.Debug("saved session", "key", key, "session_id", rec.SessionID, "seq", rec.Sequence)
	return nil
}

func (p *Postgres) Clear(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM gateway_sessions WHERE key = $1`, key); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Close closes the pool only when the store opened it itself.
func (p *Postgres) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}
