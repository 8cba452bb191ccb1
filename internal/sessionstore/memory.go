package sessionstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Sessions do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Load(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) Save(_ context.Context, key string, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	m.mu.Lock()
	m.records[key] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
