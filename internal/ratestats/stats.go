// Package ratestats counts REST rate limit hits so operators can see which
// routes are being throttled. Recording is best effort and never blocks
// the request path.
package ratestats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/discord-core/internal/rest"
)

// Kinds of recorded events.
const (
	KindRoute  = "route"
	KindGlobal = "global"
)

// Event is one observed rate limit.
type Event struct {
	Kind       string
	Route      string // empty for global pauses
	Bucket     string
	Scope      string
	RetryAfter time.Duration
	At         time.Time
}

// Recorder persists events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

const (
	defaultBuffer = 256
	recordTimeout = 2 * time.Second
)

// Tracker feeds REST client signals into a Recorder on its own goroutine.
type Tracker struct {
	rec    Recorder
	logger *slog.Logger
	ch     chan Event

	mu      sync.Mutex
	dropped int64
	detach  []func()
	closed  bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTracker starts a tracker writing to rec.
func NewTracker(rec Recorder, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		rec:    rec,
		logger: logger.With("component", "ratestats"),
		ch:     make(chan Event, defaultBuffer),
	}

	t.wg.Add(1)
	go t.run()
	return t
}

// Attach subscribes to c's rate limit signals.
func (t *Tracker) Attach(c *rest.Client) {
	ev := c.Events()

	offRoute := ev.RateLimited.Subscribe(func(d rest.RateLimitData) {
		kind := KindRoute
		if d.Global {
			kind = KindGlobal
		}
		t.Observe(Event{
			Kind:       kind,
			Route:      d.Route,
			Bucket:     d.Bucket,
			Scope:      d.Scope,
			RetryAfter: d.ResetAfter,
		})
	})

	offGlobal := ev.GlobalRateLimit.Subscribe(func(g rest.GlobalRateLimitEvent) {
		t.Observe(Event{Kind: KindGlobal, Scope: "global", RetryAfter: g.RetryAfter})
	})

	t.mu.Lock()
	t.detach = append(t.detach, offRoute, offGlobal)
	t.mu.Unlock()
}

// Observe queues ev without blocking. Events are dropped when the buffer is
// full.
func (t *Tracker) Observe(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	select {
	case t.ch <- ev:
		t.mu.Unlock()
	default:
		t.dropped++
		dropped := t.dropped
		t.mu.Unlock()
		t.logger.Warn("rate stats buffer full, dropping event", "route", ev.Route, "dropped", dropped)
	}
}

// Dropped returns how many events were discarded.
func (t *Tracker) Dropped() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Tracker) run() {
	defer t.wg.Done()

	for ev := range t.ch {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := t.rec.Record(ctx, ev); err != nil {
			t.logger.Warn("record rate limit failed", "error", err, "route", ev.Route)
		}
		cancel()
	}
}

// Close detaches from every client and flushes queued events.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		detach := t.detach
		t.detach = nil
		t.closed = true
		close(t.ch)
		t.mu.Unlock()

		for _, off := range detach {
			off()
		}
		t.wg.Wait()
	})
}
