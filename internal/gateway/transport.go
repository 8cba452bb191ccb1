package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// inbound is one item read from a socket: a data frame, or the final close.
type inbound struct {
	binary     bool
	data       []byte
	receivedAt time.Time

	closed bool
	code   int
	reason string
	err    error
}

type transportConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// Outbound sends per minute and burst.
	SendRate  int
	SendBurst int
	UserAgent string
}

// transport owns one websocket. Frames are delivered on inbound in order,
// followed by exactly one close item, after which inbound is closed.
type transport struct {
	conn    *websocket.Conn
	cfg     transportConfig
	logger  *slog.Logger
	limiter *rate.Limiter

	inbound chan inbound

	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func dialTransport(ctx context.Context, url string, cfg transportConfig, logger *slog.Logger) (*transport, error) {
	header := http.Header{}
	if cfg.UserAgent != "" {
		header.Set("User-Agent", cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	t := &transport{
		conn:    conn,
		cfg:     cfg,
		logger:  logger,
		limiter: newSendLimiter(cfg.SendRate, cfg.SendBurst),
		inbound: make(chan inbound, 64),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())

	go t.readLoop()

	logger.Debug("websocket connected", "url", url)
	return t, nil
}

func newSendLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

// readLoop reads frames until the socket fails or closes.
func (t *transport) readLoop() {
	defer close(t.inbound)

	for {
		mt, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			item := inbound{closed: true, code: websocket.CloseAbnormalClosure, err: err}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				item.code = ce.Code
				item.reason = ce.Text
			}
			t.inbound <- item
			t.cancel()
			return
		}

		select {
		case t.inbound <- inbound{binary: mt == websocket.BinaryMessage, data: data, receivedAt: receivedAt}:
		case <-t.ctx.Done():
			t.inbound <- inbound{closed: true, code: websocket.CloseNoStatusReceived, err: t.ctx.Err()}
			return
		}
	}
}

// write sends one text frame, waiting on the outbound rate limit first.
func (t *transport) write(data []byte) error {
	if err := t.limiter.Wait(t.ctx); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.cfg.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// close sends a close frame with code and tears the socket down. Safe to
// call more than once.
func (t *transport) close(code int) {
	t.closeOnce.Do(func() {
		t.cancel()
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second),
		)
		t.conn.Close()
	})
}
