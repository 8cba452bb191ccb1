package gateway

import (
	"log/slog"
)

// Gateway close codes.
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014

	// closeResumable is sent when we drop a socket we intend to resume.
	// 1000 and 1001 would invalidate the session server-side.
	closeResumable = 4900
)

var closeCodeNames = map[int]string{
	CloseUnknownError:         "UNKNOWN_ERROR",
	CloseUnknownOpcode:        "UNKNOWN_OPCODE",
	CloseDecodeError:          "DECODE_ERROR",
	CloseNotAuthenticated:     "NOT_AUTHENTICATED",
	CloseAuthenticationFailed: "AUTHENTICATION_FAILED",
	CloseAlreadyAuthenticated: "ALREADY_AUTHENTICATED",
	CloseInvalidSeq:           "INVALID_SEQ",
	CloseRateLimited:          "RATE_LIMITED",
	CloseSessionTimedOut:      "SESSION_TIMED_OUT",
	CloseInvalidShard:         "INVALID_SHARD",
	CloseShardingRequired:     "SHARDING_REQUIRED",
	CloseInvalidAPIVersion:    "INVALID_API_VERSION",
	CloseInvalidIntents:       "INVALID_INTENTS",
	CloseDisallowedIntents:    "DISALLOWED_INTENTS",
}

// CloseCodeName returns the symbolic name of a gateway close code, or "" for
// codes outside the gateway table.
func CloseCodeName(code int) string {
	return closeCodeNames[code]
}

// Action is what to do after the socket closes.
type Action int

const (
	// ActionReconnect opens a new socket and sends a fresh IDENTIFY.
	ActionReconnect Action = iota
	// ActionResume opens a new socket and replays session id + sequence.
	ActionResume
	// ActionFatal stops the session for good.
	ActionFatal
)

func (a Action) String() string {
	switch a {
	case ActionResume:
		return "resume"
	case ActionFatal:
		return "fatal"
	default:
		return "reconnect"
	}
}

// Classify maps a close code to an Action.
func Classify(code int) Action {
	switch code {
	case CloseInvalidSeq, CloseSessionTimedOut:
		return ActionResume
	case CloseAuthenticationFailed,
		CloseInvalidShard,
		CloseShardingRequired,
		CloseInvalidIntents,
		CloseDisallowedIntents:
		return ActionFatal
	default:
		return ActionReconnect
	}
}

// ReconnectPolicy classifies close events and logs each decision.
type ReconnectPolicy struct {
	logger *slog.Logger
}

// NewReconnectPolicy creates a ReconnectPolicy.
func NewReconnectPolicy(logger *slog.Logger) *ReconnectPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconnectPolicy{logger: logger}
}

// Decide returns the action for a close and, for fatal codes, the terminal
// error to surface.
func (p *ReconnectPolicy) Decide(code int, reason string) (Action, error) {
	action := Classify(code)

	attrs := []any{
		"code", code,
		"name", CloseCodeName(code),
		"reason", reason,
		"action", action.String(),
	}

	switch action {
	case ActionFatal:
		p.logger.Error("gateway closed with fatal code", attrs...)
		return action, &FatalCloseError{Code: code, Reason: reason}
	case ActionResume:
		p.logger.Info("gateway closed, resuming", attrs...)
	default:
		p.logger.Info("gateway closed, reconnecting", attrs...)
	}

	return action, nil
}
