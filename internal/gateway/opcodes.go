package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Opcode is a gateway payload opcode.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

var opcodeNames = map[Opcode]string{
	OpDispatch:            "DISPATCH",
	OpHeartbeat:           "HEARTBEAT",
	OpIdentify:            "IDENTIFY",
	OpPresenceUpdate:      "PRESENCE_UPDATE",
	OpResume:              "RESUME",
	OpReconnect:           "RECONNECT",
	OpRequestGuildMembers: "REQUEST_GUILD_MEMBERS",
	OpInvalidSession:      "INVALID_SESSION",
	OpHello:               "HELLO",
	OpHeartbeatAck:        "HEARTBEAT_ACK",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", int(o))
}

// Payload is the gateway message envelope.
type Payload struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// OpcodeHandler receives routed inbound payloads.
type OpcodeHandler interface {
	Hello(data HelloData)
	HeartbeatAck()
	HeartbeatRequest()
	Dispatch(d Dispatch)
	Reconnect()
	InvalidSession(resumable bool)
}

// Router maps inbound opcodes to an OpcodeHandler. It holds no state.
type Router struct {
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Route delivers p to the matching handler method. Unknown opcodes are logged
// and dropped. A malformed payload body yields a ProtocolError and no call.
func (r *Router) Route(p Payload, h OpcodeHandler) error {
	switch p.Op {
	case OpHello:
		var hello HelloData
		if err := json.Unmarshal(p.D, &hello); err != nil {
			return &ProtocolError{Reason: "decode hello", Err: err}
		}
		h.Hello(hello)

	case OpHeartbeatAck:
		h.HeartbeatAck()

	case OpHeartbeat:
		h.HeartbeatRequest()

	case OpDispatch:
		d := Dispatch{Name: p.T, Data: p.D}
		if p.S != nil {
			d.Seq = *p.S
		}
		h.Dispatch(d)

	case OpReconnect:
		h.Reconnect()

	case OpInvalidSession:
		var resumable bool
		if len(p.D) > 0 {
			if err := json.Unmarshal(p.D, &resumable); err != nil {
				return &ProtocolError{Reason: "decode invalid session", Err: err}
			}
		}
		h.InvalidSession(resumable)

	default:
		r.logger.Debug("unknown opcode", "op", int(p.Op))
	}

	return nil
}
