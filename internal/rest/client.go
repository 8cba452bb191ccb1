package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/discord-core/internal/events"
	"github.com/rickgao/discord-core/internal/version"
)

// Defaults for optional client settings.
const (
	DefaultBaseURL     = "https://discord.com/api"
	DefaultAPIVersion  = 10
	DefaultTimeout     = 15 * time.Second
	DefaultRetryOffset = 500 * time.Millisecond
)

// Events are the observability signals emitted by a Client.
type Events struct {
	Request         events.Registry[RequestEvent]
	Response        events.Registry[ResponseEvent]
	RequestError    events.Registry[RequestErrorEvent]
	RateLimited     events.Registry[RateLimitData]
	GlobalRateLimit events.Registry[GlobalRateLimitEvent]
}

// Client is the rate-limited REST request dispatcher.
type Client struct {
	baseURL     string
	apiVersion  int
	userAgent   string
	timeout     time.Duration
	retryOffset time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	tokenMu sync.RWMutex
	token   string

	bucketsMu sync.Mutex
	buckets   map[string]*Bucket

	globalMu    sync.Mutex
	globalReset time.Time

	events Events

	// Canceled by Close; aborts bucket and global waits.
	lifetime context.Context
	cancel   context.CancelFunc

	gatewayLookups singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST client authenticated with token.
// The token may be given with or without its "Bot " prefix.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		apiVersion:  DefaultAPIVersion,
		userAgent:   version.UserAgent(),
		timeout:     DefaultTimeout,
		retryOffset: DefaultRetryOffset,
		httpClient:  &http.Client{},
		logger:      slog.Default(),
		token:       token,
		buckets:     make(map[string]*Bucket),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "rest")
	c.lifetime, c.cancel = context.WithCancel(context.Background())

	return c
}

// WithTimeout sets the per-call network timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryOffset sets the fixed delay added to retry_after on a 429.
func WithRetryOffset(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryOffset = d
	}
}

// WithAPIVersion sets the API version used in request URLs.
func WithAPIVersion(v int) ClientOption {
	return func(c *Client) {
		if v > 0 {
			c.apiVersion = v
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBaseURL overrides the API base URL (without the version segment).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Events returns the client's signal registries.
func (c *Client) Events() *Events {
	return &c.events
}

// SetToken replaces the credential used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

func (c *Client) currentToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// Close aborts pending rate-limit waits. Queued requests that have not started
// are rejected with ErrClientClosed.
func (c *Client) Close() {
	c.cancel()
}

// Bucket returns the bucket for method and path, creating it on first use.
func (c *Client) Bucket(method, path string) *Bucket {
	key := BucketKey(method, path)

	c.bucketsMu.Lock()
	defer c.bucketsMu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		b = NewBucket(key, c.lifetime, c.logger)
		c.buckets[key] = b
	}
	return b
}

// Buckets returns snapshots of every bucket created so far.
func (c *Client) Buckets() []BucketSnapshot {
	c.bucketsMu.Lock()
	all := make([]*Bucket, 0, len(c.buckets))
	for _, b := range c.buckets {
		all = append(all, b)
	}
	c.bucketsMu.Unlock()

	snaps := make([]BucketSnapshot, 0, len(all))
	for _, b := range all {
		snaps = append(snaps, b.Snapshot())
	}
	return snaps
}

// BucketKey derives the bucket key: METHOD ":" path without query.
func BucketKey(method, path string) string {
	route, _, _ := strings.Cut(path, "?")
	return strings.ToUpper(method) + ":" + route
}
