package gateway

import (
	"encoding/json"
	"time"
)

// HelloData is the body of HELLO.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"` // milliseconds
}

// Interval returns the heartbeat interval as a duration.
func (h HelloData) Interval() time.Duration {
	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

// Dispatch is a DISPATCH event: name, sequence and raw body.
type Dispatch struct {
	Name string
	Seq  int64
	Data json.RawMessage
}

// ReadyData is the subset of the READY body the session relies on.
type ReadyData struct {
	Version          int             `json:"v"`
	SessionID        string          `json:"session_id"`
	ResumeGatewayURL string          `json:"resume_gateway_url"`
	User             json.RawMessage `json:"user"`
	Guilds           json.RawMessage `json:"guilds"`
	Shard            []int           `json:"shard,omitempty"`
	Application      struct {
		ID string `json:"id"`
	} `json:"application"`
}

// IdentifyProperties describe the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// IdentifyData is the body of IDENTIFY.
type IdentifyData struct {
	Token          string              `json:"token"`
	Intents        int                 `json:"intents"`
	Properties     IdentifyProperties  `json:"properties"`
	LargeThreshold int                 `json:"large_threshold,omitempty"`
	Shard          *[2]int             `json:"shard,omitempty"`
	Presence       *PresenceUpdateData `json:"presence,omitempty"`
}

// ResumeData is the body of RESUME.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// GuildMembersRequest asks for a guild's member list. Results arrive as
// GUILD_MEMBERS_CHUNK dispatches carrying the same nonce.
type GuildMembersRequest struct {
	GuildID   string
	Query     string
	Limit     int
	Presences bool
	UserIDs   []string
	// Nonce correlates the chunks; generated when empty.
	Nonce string
}

type requestGuildMembersData struct {
	GuildID   string   `json:"guild_id"`
	Query     *string  `json:"query,omitempty"`
	Limit     int      `json:"limit"`
	Presences bool     `json:"presences,omitempty"`
	UserIDs   []string `json:"user_ids,omitempty"`
	Nonce     string   `json:"nonce,omitempty"`
}

// Activity is a presence activity.
type Activity struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	URL   string `json:"url,omitempty"`
	State string `json:"state,omitempty"`
}

// PresenceUpdateData is the body of PRESENCE_UPDATE.
type PresenceUpdateData struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}

// CloseEvent is emitted when a socket closes.
type CloseEvent struct {
	Code   int
	Reason string
}

// ResumedEvent is emitted after a successful RESUME.
type ResumedEvent struct {
	SessionID string
	Seq       int64
}
