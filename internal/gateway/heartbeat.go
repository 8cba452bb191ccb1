package gateway

import (
	"log/slog"
	"sync"
	"time"
)

// Heartbeater sends a heartbeat immediately on Start and then once per
// interval until Stop.
type Heartbeater struct {
	beat   func()
	logger *slog.Logger

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
}

// NewHeartbeater creates a Heartbeater calling beat for every heartbeat. beat
// reads the current sequence itself, so each heartbeat carries the value
// known at fire time.
func NewHeartbeater(beat func(), logger *slog.Logger) *Heartbeater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeater{beat: beat, logger: logger}
}

// Start cancels any running schedule, sends one heartbeat right away and
// schedules the rest.
func (h *Heartbeater) Start(interval time.Duration) {
	stop := make(chan struct{})

	h.mu.Lock()
	if h.stop != nil {
		close(h.stop)
	}
	h.stop = stop
	h.interval = interval
	h.mu.Unlock()

	h.logger.Debug("heartbeat started", "interval", interval)

	h.beat()
	go h.run(stop, interval)
}

func (h *Heartbeater) run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop may have raced the tick.
			select {
			case <-stop:
				return
			default:
			}
			h.beat()
		}
	}
}

// Stop cancels the schedule. It is idempotent.
func (h *Heartbeater) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stop = nil
	h.logger.Debug("heartbeat stopped")
}

// Running reports whether a schedule is active.
func (h *Heartbeater) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}

// Interval returns the interval of the current (or last) schedule.
func (h *Heartbeater) Interval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}
