package ratestats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps counters in hashes:
//
//	<prefix>:total            kind -> count
//	<prefix>:minute:<YYYYMMDDhhmm>  kind -> count (expires after ttl)
//	<prefix>:route            route -> count
//	<prefix>:scope            scope -> count
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// RedisOption configures a Redis recorder.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix. Surrounding colons are trimmed.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the expiry of per-minute keys. Zero disables expiry.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = d }
}

// NewRedis creates a recorder writing through rdb.
func NewRedis(rdb redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		prefix: "discord:ratelimit",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MinuteKey returns the per-minute hash key for at.
func (r *Redis) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504"))
}

// Record increments every counter ev touches in one pipeline.
func (r *Redis) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", ev.Kind, 1)

	minute := r.MinuteKey(at)
	pipe.HIncrBy(ctx, minute, ev.Kind, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, minute, r.ttl)
	}

	if ev.Route != "" {
		pipe.HIncrBy(ctx, r.prefix+":route", ev.Route, 1)
	}
	if ev.Scope != "" {
		pipe.HIncrBy(ctx, r.prefix+":scope", ev.Scope, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}
