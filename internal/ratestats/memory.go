package ratestats

import (
	"context"
	"maps"
	"sync"
)

// Memory counts events in process. It never expires anything.
type Memory struct {
	mu      sync.Mutex
	total   map[string]int64
	byRoute map[string]int64
}

// NewMemory creates an empty counter set.
func NewMemory() *Memory {
	return &Memory{
		total:   make(map[string]int64),
		byRoute: make(map[string]int64),
	}
}

// Record counts ev by kind and route.
func (m *Memory) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total[ev.Kind]++
	if ev.Route != "" {
		m.byRoute[ev.Route]++
	}
	return nil
}

// Total returns counts per kind.
func (m *Memory) Total() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.total)
}

// ByRoute returns counts per bucket key.
func (m *Memory) ByRoute() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.byRoute)
}
