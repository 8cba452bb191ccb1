package rest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// SessionStartLimit is the identify budget reported by /gateway/bot.
type SessionStartLimit struct {
	Total      int `json:"total"`
	Remaining  int `json:"remaining"`
	ResetAfter int `json:"reset_after"` // milliseconds
	// MaxConcurrency is the number of identify requests allowed per 5 seconds.
	MaxConcurrency int `json:"max_concurrency"`
}

// ResetIn returns ResetAfter as a duration.
func (l SessionStartLimit) ResetIn() time.Duration {
	return time.Duration(l.ResetAfter) * time.Millisecond
}

// GatewayBotResponse is the body of GET /gateway/bot.
type GatewayBotResponse struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// GatewayBot fetches the gateway URL and session start budget. Concurrent
// callers share a single in-flight lookup. The lookup runs under the client's
// lifetime, so one caller giving up does not fail the others; ctx only bounds
// this caller's wait.
func (c *Client) GatewayBot(ctx context.Context) (*GatewayBotResponse, error) {
	ch := c.gatewayLookups.DoChan("/gateway/bot", func() (any, error) {
		resp, err := c.Get(c.lifetime, "/gateway/bot", nil)
		if err != nil {
			return nil, err
		}

		var out GatewayBotResponse
		if err := resp.Decode(&out); err != nil {
			return nil, err
		}
		return &out, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("get gateway bot: %w", ctx.Err())
	}
	if res.Err != nil {
		return nil, fmt.Errorf("get gateway bot: %w", res.Err)
	}

	if res.Shared {
		c.logger.Debug("gateway lookup shared with concurrent caller")
	}

	// Callers may mutate the result; hand each one its own copy.
	out := *res.Val.(*GatewayBotResponse)
	return &out, nil
}
