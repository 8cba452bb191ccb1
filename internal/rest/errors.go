package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIError represents a non-2xx, non-429 response from the Discord API.
type APIError struct {
	// Code is the Discord JSON error code, or the HTTP status when the body
	// carried none.
	Code int
	// Message is the API-provided message (or the status text).
	Message string
	// Hint is a short description of Code, when known.
	Hint   string
	Status int
	// Errors is the raw field-level validation tree, if any.
	Errors json.RawMessage
}

func (e *APIError) Error() string {
	if e.Hint != "" && e.Hint != e.Message {
		return fmt.Sprintf("discord api error [%d] %s: %s", e.Code, e.Hint, e.Message)
	}
	return fmt.Sprintf("discord api error [%d]: %s", e.Code, e.Message)
}

// newAPIError builds an APIError from a failed response body.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &APIError{Status: status, Errors: payload.Errors}
	if payload.Code != 0 {
		e.Code = payload.Code
		e.Message = payload.Message
	} else {
		e.Code = status
		e.Message = http.StatusText(status)
	}
	e.Hint = errorHints[e.Code]
	return e
}

// RequestTimeoutError is returned when a single HTTP call exceeds the
// configured timeout. It is never retried automatically.
type RequestTimeoutError struct {
	Method  string
	Path    string
	Timeout time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request %s %s timed out after %s", e.Method, e.Path, e.Timeout)
}

func (e *RequestTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// RateLimitError describes a 429. The client absorbs 429s, so these values
// only surface through the RateLimited signal.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
	Scope      string
}

func (e *RateLimitError) Error() string {
	scope := ""
	if e.Scope != "" {
		scope = " (" + e.Scope + ")"
	}
	if e.Global {
		return fmt.Sprintf("global rate limit hit%s, retry after %s", scope, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit hit%s, retry after %s", scope, e.RetryAfter)
}

// errorHints maps well-known Discord error codes and HTTP statuses to a short
// description.
var errorHints = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusInternalServerError: "Internal server error",
	http.StatusBadGateway:          "Gateway unavailable",

	0:      "General error",
	10003:  "Unknown channel",
	10004:  "Unknown guild",
	10007:  "Unknown member",
	10008:  "Unknown message",
	10011:  "Unknown role",
	10013:  "Unknown user",
	10062:  "Unknown interaction",
	20001:  "Bots cannot use this endpoint",
	20028:  "Write action rate limited",
	30001:  "Maximum number of guilds reached",
	30003:  "Maximum number of pins reached",
	30005:  "Maximum number of guild roles reached",
	40001:  "Unauthorized, provide a valid token",
	40002:  "Account verification required",
	40005:  "Request entity too large",
	50001:  "Missing access",
	50005:  "Cannot edit a message authored by another user",
	50006:  "Cannot send an empty message",
	50007:  "Cannot send messages to this user",
	50013:  "Missing permissions",
	50035:  "Invalid form body",
	50109:  "Request body contains invalid JSON",
	160002: "Cannot reply without permission to read message history",
}
