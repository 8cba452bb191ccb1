package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/discord-core/internal/auth"
)

// File is one attachment of a multipart request.
type File struct {
	Name string
	Data []byte
}

// RequestOptions are the optional parts of a request.
type RequestOptions struct {
	Query   url.Values
	Body    any
	Headers map[string]string
	// Reason is sent as the audit log reason.
	Reason string
	Files  []File
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, opts)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, opts)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, path, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, opts)
}

type outcome struct {
	resp *Response
	err  error
}

// Request queues a call on its route's bucket and waits for the result.
// Canceling ctx while the call is still queued rejects it without sending.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	bucket := c.Bucket(method, path)
	reqURL := c.buildURL(path, opts.Query)

	done := make(chan outcome, 1)
	bucket.Enqueue(&QueuedRequest{
		Ctx: ctx,
		Do: func(ctx context.Context) (*Response, error) {
			return c.execute(ctx, bucket, method, path, reqURL, opts)
		},
		Resolve: func(r *Response) { done <- outcome{resp: r} },
		Reject:  func(err error) { done <- outcome{err: err} },
	})
	bucket.Drain()

	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute runs inside the bucket's drain goroutine.
func (c *Client) execute(ctx context.Context, bucket *Bucket, method, path, reqURL string, opts *RequestOptions) (*Response, error) {
	if err := c.waitGlobal(ctx); err != nil {
		return nil, err
	}

	id := uuid.NewString()

	for attempt := 1; ; attempt++ {
		httpResp, body, err := c.send(ctx, id, attempt, method, path, reqURL, opts)
		if err != nil {
			c.events.RequestError.Emit(RequestErrorEvent{ID: id, Method: method, Path: path, Err: err})
			return nil, err
		}

		bucket.UpdateFromHeaders(httpResp.Header)
		c.handleGlobal(httpResp.Header)

		if httpResp.StatusCode == http.StatusTooManyRequests {
			wait := c.handle429(bucket, path, httpResp.Header, body)
			if err := sleepCtx(ctx, c.lifetime, wait); err != nil {
				return nil, err
			}
			// Retried inline: the bucket stays DRAINING, so no other request
			// from this route can slip in between.
			continue
		}

		if httpResp.StatusCode >= 400 {
			apiErr := newAPIError(httpResp.StatusCode, body)
			c.logger.Warn("api error",
				"method", method,
				"path", path,
				"status", httpResp.StatusCode,
				"code", apiErr.Code,
				"message", apiErr.Message,
			)
			c.events.RequestError.Emit(RequestErrorEvent{ID: id, Method: method, Path: path, Err: apiErr})
			return nil, apiErr
		}

		resp := &Response{
			Status: httpResp.StatusCode,
			Header: httpResp.Header,
			Kind:   classify(httpResp.StatusCode, httpResp.ContentLength, httpResp.Header),
			Body:   body,
		}
		if resp.Kind == KindEmpty {
			resp.Body = nil
		}
		if resp.Kind == KindJSON && !json.Valid(body) {
			return nil, fmt.Errorf("%s %s: invalid json response", method, path)
		}
		return resp, nil
	}
}

// send performs one HTTP call under the per-call timeout.
func (c *Client) send(ctx context.Context, id string, attempt int, method, path, reqURL string, opts *RequestOptions) (*http.Response, []byte, error) {
	reqBody, contentType, err := buildBody(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("build body: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, reqURL, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, opts, contentType)

	logged := req.Header.Clone()
	logged.Set("Authorization", auth.Scheme+" "+auth.Redact(strings.TrimPrefix(req.Header.Get("Authorization"), auth.Scheme+" ")))
	c.events.Request.Emit(RequestEvent{
		ID:      id,
		Method:  method,
		Path:    path,
		URL:     reqURL,
		Header:  logged,
		Attempt: attempt,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, c.callError(ctx, callCtx, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, c.callError(ctx, callCtx, method, path, fmt.Errorf("read response: %w", err))
	}

	duration := time.Since(start)
	c.logger.Debug("response",
		"id", id,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", duration,
	)
	c.events.Response.Emit(ResponseEvent{
		ID:       id,
		Method:   method,
		Path:     path,
		Status:   resp.StatusCode,
		Duration: duration,
		Header:   resp.Header,
	})

	return resp, body, nil
}

// callError maps a failed call to RequestTimeoutError when the per-call
// deadline, not the caller, ended it.
func (c *Client) callError(ctx, callCtx context.Context, method, path string, err error) error {
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("request timed out", "method", method, "path", path, "timeout", c.timeout)
		return &RequestTimeoutError{Method: method, Path: path, Timeout: c.timeout}
	}
	return fmt.Errorf("do request: %w", err)
}

func (c *Client) setHeaders(req *http.Request, opts *RequestOptions, contentType string) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", auth.Header(c.currentToken()))

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if opts.Reason != "" {
		req.Header.Set(HeaderAuditLogReason, encodeReason(opts.Reason))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + "/v" + strconv.Itoa(c.apiVersion) + path
	if len(query) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + query.Encode()
}

// buildBody encodes the payload: multipart when files are attached, JSON
// otherwise. Rebuilt for every attempt since readers are consumed.
func buildBody(opts *RequestOptions) (io.Reader, string, error) {
	if len(opts.Files) > 0 {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		if opts.Body != nil {
			payload, err := json.Marshal(opts.Body)
			if err != nil {
				return nil, "", fmt.Errorf("marshal payload_json: %w", err)
			}
			if err := w.WriteField("payload_json", string(payload)); err != nil {
				return nil, "", err
			}
		}

		for i, f := range opts.Files {
			part, err := w.CreateFormFile(fmt.Sprintf("files[%d]", i), f.Name)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", err
			}
		}

		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}

	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}

	return nil, "", nil
}

// encodeReason percent-encodes an audit log reason, spaces as %20.
func encodeReason(reason string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(reason))
	for i := 0; i < len(reason); i++ {
		c := reason[i]
		if isReasonSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// isReasonSafe reports the bytes encodeURIComponent leaves as is.
func isReasonSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// waitGlobal blocks until the global pause, if any, has elapsed.
func (c *Client) waitGlobal(ctx context.Context) error {
	c.globalMu.Lock()
	wait := time.Until(c.globalReset)
	c.globalMu.Unlock()

	if wait <= 0 {
		return nil
	}

	c.logger.Debug("waiting out global rate limit", "wait", wait)
	return sleepCtx(ctx, c.lifetime, wait)
}

func (c *Client) handleGlobal(h http.Header) {
	if h.Get(HeaderGlobal) == "" {
		return
	}

	rl := ParseRateLimitHeaders(h, time.Now())
	until := time.Now().Add(rl.RetryAfter)

	c.globalMu.Lock()
	c.globalReset = until
	c.globalMu.Unlock()

	c.logger.Warn("global rate limit", "retry_after", rl.RetryAfter)
	c.events.GlobalRateLimit.Emit(GlobalRateLimitEvent{RetryAfter: rl.RetryAfter, Until: until})
}

// handle429 emits RateLimited and returns how long to wait before retrying.
func (c *Client) handle429(bucket *Bucket, path string, h http.Header, body []byte) time.Duration {
	rl := ParseRateLimitHeaders(h, time.Now())

	var payload struct {
		RetryAfter *float64 `json:"retry_after"`
		Global     bool     `json:"global"`
	}
	retryAfter := rl.RetryAfter
	global := rl.Global
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.RetryAfter != nil {
			retryAfter = secondsToDuration(*payload.RetryAfter)
		}
		global = global || payload.Global
	}

	snap := bucket.Snapshot()
	data := RateLimitData{
		Route:      bucket.Key(),
		Limit:      snap.Limit,
		Remaining:  snap.Remaining,
		Reset:      snap.Reset,
		ResetAfter: retryAfter,
		Bucket:     rl.Bucket,
		Global:     global,
		Scope:      rl.Scope,
	}

	c.logger.Warn("rate limited",
		"path", path,
		"bucket", data.Bucket,
		"retry_after", retryAfter,
		"global", global,
		"scope", data.Scope,
	)
	c.events.RateLimited.Emit(data)

	return retryAfter + c.retryOffset
}

// sleepCtx waits for d unless ctx or the client lifetime ends first.
func sleepCtx(ctx, lifetime context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-lifetime.Done():
		return ErrClientClosed
	}
}
