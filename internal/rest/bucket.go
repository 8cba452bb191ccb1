package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Unlimited is the limit of a bucket that has not yet seen rate limit headers.
const Unlimited = -1

// ErrClientClosed is returned for queued requests abandoned by Client.Close.
var ErrClientClosed = errors.New("rest client closed")

// BucketState is the drain state of a bucket.
type BucketState int

const (
	BucketIdle BucketState = iota
	BucketDraining
)

func (s BucketState) String() string {
	if s == BucketDraining {
		return "draining"
	}
	return "idle"
}

// QueuedRequest is one unit of work waiting in a bucket. Exactly one of
// Resolve or Reject is called.
type QueuedRequest struct {
	Ctx     context.Context
	Do      func(ctx context.Context) (*Response, error)
	Resolve func(*Response)
	Reject  func(error)
}

// BucketSnapshot is a point-in-time copy of a bucket's state.
type BucketSnapshot struct {
	Key       string
	Limit     int
	Remaining int
	Reset     time.Time
	Queued    int
	State     BucketState
}

// Bucket serializes the requests of one route. At most one request per bucket
// is in flight; queued requests run in FIFO order.
type Bucket struct {
	key    string
	logger *slog.Logger
	done   <-chan struct{}

	mu        sync.Mutex
	limit     int
	remaining int
	reset     time.Time
	queue     *queue.Queue
	state     BucketState
}

// NewBucket creates an idle, unlimited bucket. Waits abort once lifetime is done.
func NewBucket(key string, lifetime context.Context, logger *slog.Logger) *Bucket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bucket{
		key:       key,
		logger:    logger.With("bucket", key),
		done:      lifetime.Done(),
		limit:     Unlimited,
		remaining: Unlimited,
		queue:     queue.New(),
	}
}

// Key returns the bucket key.
func (b *Bucket) Key() string {
	return b.key
}

// Enqueue appends req to the queue. It never rejects.
func (b *Bucket) Enqueue(req *QueuedRequest) {
	b.mu.Lock()
	b.queue.Add(req)
	b.mu.Unlock()
}

// Drain starts processing the queue unless it is already being drained or is
// empty.
func (b *Bucket) Drain() {
	b.mu.Lock()
	if b.state == BucketDraining || b.queue.Length() == 0 {
		b.mu.Unlock()
		return
	}
	b.state = BucketDraining
	b.mu.Unlock()

	go b.run()
}

func (b *Bucket) run() {
	for {
		b.mu.Lock()
		if b.queue.Length() == 0 {
			b.state = BucketIdle
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		if !b.waitForReset() {
			b.rejectAll(ErrClientClosed)
			return
		}

		// Only run pops, so the queue is still non-empty here.
		b.mu.Lock()
		item := b.queue.Remove().(*QueuedRequest)
		b.mu.Unlock()

		b.execute(item)
	}
}

// waitForReset blocks while the bucket is exhausted. It returns false if the
// owning client was closed during the wait.
func (b *Bucket) waitForReset() bool {
	b.mu.Lock()
	b.refill(time.Now())
	var wait time.Duration
	if b.remaining == 0 {
		wait = time.Until(b.reset)
	}
	b.mu.Unlock()

	if wait <= 0 {
		return true
	}

	b.logger.Debug("bucket exhausted, waiting for reset", "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-b.done:
		return false
	}

	b.mu.Lock()
	b.refill(time.Now())
	b.mu.Unlock()
	return true
}

// refill restores remaining to limit once the reset time has passed.
// Caller holds b.mu.
func (b *Bucket) refill(now time.Time) {
	if !now.Before(b.reset) {
		b.remaining = b.limit
	}
}

func (b *Bucket) execute(item *QueuedRequest) {
	if err := item.Ctx.Err(); err != nil {
		item.Reject(err)
		return
	}

	resp, err := b.safeDo(item)
	if err != nil {
		item.Reject(err)
		return
	}
	item.Resolve(resp)
}

func (b *Bucket) safeDo(item *QueuedRequest) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("request panicked", "panic", r)
			resp, err = nil, fmt.Errorf("request panicked: %v", r)
		}
	}()
	return item.Do(item.Ctx)
}

func (b *Bucket) rejectAll(err error) {
	b.mu.Lock()
	pending := make([]*QueuedRequest, 0, b.queue.Length())
	for b.queue.Length() > 0 {
		pending = append(pending, b.queue.Remove().(*QueuedRequest))
	}
	b.state = BucketIdle
	b.mu.Unlock()

	for _, item := range pending {
		item.Reject(err)
	}
}

// UpdateFromHeaders records the rate limit state carried by a response.
func (b *Bucket) UpdateFromHeaders(h http.Header) {
	rl := ParseRateLimitHeaders(h, time.Now())

	b.mu.Lock()
	defer b.mu.Unlock()

	if rl.HasLimit {
		b.limit = rl.Limit
	}
	if rl.HasRemaining {
		b.remaining = rl.Remaining
	}
	if rl.HasReset {
		b.reset = rl.Reset
	}
}

// Snapshot returns a copy of the bucket's state.
func (b *Bucket) Snapshot() BucketSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BucketSnapshot{
		Key:       b.key,
		Limit:     b.limit,
		Remaining: b.remaining,
		Reset:     b.reset,
		Queued:    b.queue.Length(),
		State:     b.state,
	}
}
