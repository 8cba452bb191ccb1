// Package sessionstore persists resumable gateway sessions so a restarted
// process can RESUME instead of spending a session start on IDENTIFY.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no session is stored under the key.
var ErrNotFound = errors.New("session not found")

// Record is the state needed to resume a gateway session.
type Record struct {
	SessionID string
	Sequence  int64
	ResumeURL string
	UpdatedAt time.Time
}

// Store saves one Record per key (usually the application id).
type Store interface {
	Load(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, rec Record) error
	Clear(ctx context.Context, key string) error
	Close() error
}
