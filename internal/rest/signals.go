package rest

import (
	"net/http"
	"time"
)

// RequestEvent is emitted right before an HTTP call goes out. The
// Authorization header is redacted.
type RequestEvent struct {
	ID      string
	Method  string
	Path    string
	URL     string
	Header  http.Header
	Attempt int
}

// ResponseEvent is emitted for every HTTP response received, including 429s.
type ResponseEvent struct {
	ID       string
	Method   string
	Path     string
	Status   int
	Duration time.Duration
	Header   http.Header
}

// RequestErrorEvent is emitted when a request fails with an API error.
type RequestErrorEvent struct {
	ID     string
	Method string
	Path   string
	Err    error
}

// RateLimitData describes a 429 response together with the bucket state at
// that moment.
type RateLimitData struct {
	Route      string
	Limit      int
	Remaining  int
	Reset      time.Time
	ResetAfter time.Duration
	Bucket     string
	Global     bool
	Scope      string
}

// Err returns the rate limit as an error value.
func (d RateLimitData) Err() error {
	return &RateLimitError{RetryAfter: d.ResetAfter, Global: d.Global, Scope: d.Scope}
}

// GlobalRateLimitEvent is emitted when a response carries X-RateLimit-Global.
type GlobalRateLimitEvent struct {
	RetryAfter time.Duration
	Until      time.Time
}
