package rest

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Rate limit response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderResetAfter = "X-RateLimit-Reset-After"
	HeaderBucket     = "X-RateLimit-Bucket"
	HeaderGlobal     = "X-RateLimit-Global"
	HeaderScope      = "X-RateLimit-Scope"
	HeaderRetryAfter = "Retry-After"

	HeaderAuditLogReason = "X-Audit-Log-Reason"
)

// RateLimitHeaders is the parsed rate limit state carried by a response.
// Fields whose header was absent are left zero and flagged in the Has* fields.
type RateLimitHeaders struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Bucket    string
	Scope     string
	Global    bool

	// RetryAfter is the Retry-After header; zero when absent.
	RetryAfter time.Duration

	HasLimit     bool
	HasRemaining bool
	HasReset     bool
}

// ParseRateLimitHeaders extracts rate limit fields from h. now anchors the
// relative X-RateLimit-Reset-After header, which is only consulted when the
// absolute X-RateLimit-Reset is missing.
func ParseRateLimitHeaders(h http.Header, now time.Time) RateLimitHeaders {
	var rl RateLimitHeaders

	if n, err := strconv.Atoi(h.Get(HeaderLimit)); err == nil {
		rl.Limit, rl.HasLimit = n, true
	}
	if n, err := strconv.Atoi(h.Get(HeaderRemaining)); err == nil {
		rl.Remaining, rl.HasRemaining = n, true
	}

	if epoch, ok := parseSeconds(h.Get(HeaderReset)); ok {
		rl.Reset = time.UnixMilli(int64(math.Round(epoch * 1000)))
		rl.HasReset = true
	} else if after, ok := parseSeconds(h.Get(HeaderResetAfter)); ok {
		rl.Reset = now.Add(secondsToDuration(after))
		rl.HasReset = true
	}

	if retry, ok := parseSeconds(h.Get(HeaderRetryAfter)); ok {
		rl.RetryAfter = secondsToDuration(retry)
	}

	rl.Bucket = h.Get(HeaderBucket)
	rl.Scope = h.Get(HeaderScope)
	rl.Global = h.Get(HeaderGlobal) != ""

	return rl
}

func parseSeconds(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
