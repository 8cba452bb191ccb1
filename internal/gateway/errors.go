package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotOpen       = errors.New("gateway socket not open")
	ErrClosed        = errors.New("gateway session closed")
	ErrAlreadyActive = errors.New("gateway session already connected")
)

// TransportError is a dial or socket failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a malformed frame or a decompression failure. It is logged
// and never tears down the connection.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "gateway protocol error: " + e.Reason
	}
	return fmt.Sprintf("gateway protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// SessionBudgetError is returned before dialing when the session start budget
// is nearly spent.
type SessionBudgetError struct {
	Remaining  int
	Total      int
	ResetAfter time.Duration
}

func (e *SessionBudgetError) Error() string {
	return fmt.Sprintf(
		"session start limit critical: %d of %d remaining, resets in %s",
		e.Remaining, e.Total, e.ResetAfter.Round(time.Second),
	)
}

// FatalCloseError is a close code that must not be retried.
type FatalCloseError struct {
	Code   int
	Reason string
}

func (e *FatalCloseError) Error() string {
	name := CloseCodeName(e.Code)
	if name == "" {
		name = "unknown"
	}
	if e.Reason == "" {
		return fmt.Sprintf("gateway closed with fatal code %d (%s)", e.Code, name)
	}
	return fmt.Sprintf("gateway closed with fatal code %d (%s): %s", e.Code, name, e.Reason)
}
