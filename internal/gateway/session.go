package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/discord-core/internal/auth"
	"github.com/rickgao/discord-core/internal/events"
	"github.com/rickgao/discord-core/internal/rest"
	"github.com/rickgao/discord-core/internal/sessionstore"
	"github.com/rickgao/discord-core/internal/version"
)

// DefaultURL is used when the /gateway/bot lookup fails.
const DefaultURL = "wss://gateway.discord.gg"

// PingUnknown is returned by Ping before the first heartbeat round trip.
const PingUnknown time.Duration = -1

const storeTimeout = 5 * time.Second

// Config configures a Session.
type Config struct {
	Token   string
	Intents int

	URL      string // fallback gateway URL
	Version  int
	Compress bool // zlib-stream transport compression

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration

	// Outbound payloads per minute and burst.
	SendRate  int
	SendBurst int

	Properties     IdentifyProperties
	LargeThreshold int

	// SessionKey is the session store key, usually the application id.
	SessionKey string
	// KeepSessionOnClose closes with a resumable code and keeps the stored
	// session so the next process can resume it.
	KeepSessionOnClose bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               DefaultURL,
		Version:           10,
		Compress:          true,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		SendRate:          120,
		SendBurst:         10,
		Properties: IdentifyProperties{
			OS:      runtime.GOOS,
			Browser: version.Name,
			Device:  version.Name,
		},
	}
}

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateHandshaking
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// EndpointResolver looks up the gateway URL and session start budget.
// *rest.Client implements it.
type EndpointResolver interface {
	GatewayBot(ctx context.Context) (*rest.GatewayBotResponse, error)
}

// Events are the signals emitted by a Session. Subscribers run on the
// session's processing goroutine and must not block.
type Events struct {
	Raw            events.Registry[Payload]
	Dispatch       events.Registry[Dispatch]
	Hello          events.Registry[time.Duration]
	Ready          events.Registry[ReadyData]
	Resumed        events.Registry[ResumedEvent]
	HeartbeatAck   events.Registry[time.Duration]
	Reconnect      events.Registry[struct{}]
	InvalidSession events.Registry[bool]
	Close          events.Registry[CloseEvent]
	Fatal          events.Registry[error]
}

// Session is one logical gateway connection.
type Session struct {
	cfg       Config
	token     string
	resolver  EndpointResolver
	store     sessionstore.Store
	logger    *slog.Logger
	router    *Router
	policy    *ReconnectPolicy
	heartbeat *Heartbeater
	events    Events

	// Canceled on Close or failure; bounds reconnect dials.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	gen         uint64 // bumped whenever the active socket changes
	t           *transport
	seq         int64
	hasSeq      bool
	sessionID   string
	resumeURL   string
	resuming    bool
	lastBeat    time.Time
	latency     time.Duration
	awaitingAck bool
	attempts    int
	closed      bool

	reconnectTimer *time.Timer
	identifyTimer  *time.Timer

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore persists the session for resumption across restarts.
func WithStore(store sessionstore.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// NewSession creates a disconnected Session. resolver may be nil, in which
// case cfg.URL is dialed without a budget check.
func NewSession(cfg Config, resolver EndpointResolver, opts ...Option) *Session {
	defaults := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.Version <= 0 {
		cfg.Version = defaults.Version
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = max(defaults.MaxReconnectDelay, cfg.ReconnectDelay)
	}
	if cfg.Properties == (IdentifyProperties{}) {
		cfg.Properties = defaults.Properties
	}

	s := &Session{
		cfg:      cfg,
		token:    strings.TrimPrefix(strings.TrimSpace(cfg.Token), auth.Scheme+" "),
		resolver: resolver,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "gateway")
	s.router = NewRouter(s.logger)
	s.policy = NewReconnectPolicy(s.logger)
	s.heartbeat = NewHeartbeater(s.beat, s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// Events returns the session's signal registries.
func (s *Session) Events() *Events {
	return &s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the current session id, or "" before READY.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Sequence returns the last seen sequence number.
func (s *Session) Sequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.hasSeq
}

// Ping returns the last heartbeat round trip, or PingUnknown.
func (s *Session) Ping() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latency <= 0 {
		return PingUnknown
	}
	return s.latency
}

// Done is closed once the session stops for good, by Close or a fatal error.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error after Done is closed; nil after Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Connect resolves the gateway endpoint and opens the socket. It returns once
// the socket is open; the handshake continues in the background.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.state == StateFailed:
		err := s.err
		s.mu.Unlock()
		return err
	case s.state != StateDisconnected:
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.restore(ctx)

	if err := s.connect(ctx); err != nil {
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	endpoint, err := s.endpoint(ctx)
	if err != nil {
		return err
	}
	return s.open(ctx, endpoint)
}

// endpoint picks the URL to dial. A resumable session goes straight to its
// resume URL; everything else goes through the budget-checked lookup.
func (s *Session) endpoint(ctx context.Context) (string, error) {
	s.mu.Lock()
	var resumeURL string
	if s.resuming && s.sessionID != "" && s.hasSeq {
		resumeURL = s.resumeURL
	}
	s.mu.Unlock()

	if resumeURL != "" {
		return resumeURL, nil
	}
	return s.resolve(ctx)
}

func (s *Session) resolve(ctx context.Context) (string, error) {
	if s.resolver == nil {
		return s.cfg.URL, nil
	}

	bot, err := s.resolver.GatewayBot(ctx)
	if err != nil {
		s.logger.Warn("gateway lookup failed, using default url",
			"error", err,
			"url", s.cfg.URL,
		)
		return s.cfg.URL, nil
	}

	limit := bot.SessionStartLimit
	s.logger.Info("session start limit",
		"remaining", limit.Remaining,
		"total", limit.Total,
		"reset_after", limit.ResetIn(),
		"max_concurrency", limit.MaxConcurrency,
		"shards", bot.Shards,
	)

	if limit.Remaining <= 1 {
		err := &SessionBudgetError{
			Remaining:  limit.Remaining,
			Total:      limit.Total,
			ResetAfter: limit.ResetIn(),
		}
		s.logger.Error("refusing to connect", "error", err)
		return "", err
	}

	if bot.URL == "" {
		return s.cfg.URL, nil
	}
	return bot.URL, nil
}

func (s *Session) open(ctx context.Context, endpoint string) error {
	u, err := gatewayURL(endpoint, s.cfg.Version, s.cfg.Compress)
	if err != nil {
		return &TransportError{Op: "parse url", Err: err}
	}

	s.logger.Info("connecting to gateway", "url", u)

	t, err := dialTransport(ctx, u, transportConfig{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		SendRate:         s.cfg.SendRate,
		SendBurst:        s.cfg.SendBurst,
		UserAgent:        version.UserAgent(),
	}, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.state == StateFailed {
		s.mu.Unlock()
		t.close(websocket.CloseNormalClosure)
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.t = t
	s.state = StateOpen
	s.lastBeat = time.Time{}
	s.awaitingAck = false
	s.mu.Unlock()

	go s.process(gen, t)
	return nil
}

// gatewayURL appends the version, encoding and compression query.
func gatewayURL(base string, v int, compress bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := "v=" + strconv.Itoa(v) + "&encoding=json"
	if compress {
		q += "&compress=zlib-stream"
	}
	u.RawQuery = q
	return u.String(), nil
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

// process handles every inbound item of one socket, in order. It always
// drains the channel so the reader can exit.
func (s *Session) process(gen uint64, t *transport) {
	d := NewDecompressor()
	defer d.Reset()

	h := &socketHandler{s: s, gen: gen}

	for in := range t.inbound {
		if in.closed {
			s.handleClose(gen, in.code, in.reason, in.err)
			continue
		}
		if !s.isCurrent(gen) {
			continue
		}

		data := in.data
		if in.binary {
			msg, complete, err := d.Write(in.data)
			if err != nil {
				s.logger.Warn("dropping undecodable frame", "error", err)
				continue
			}
			if !complete {
				continue
			}
			data = msg
		}

		s.handleMessage(h, data)
	}
}

func (s *Session) handleMessage(h *socketHandler, data []byte) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("dropping malformed payload", "error", &ProtocolError{Reason: "decode payload", Err: err})
		return
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("received", "op", p.Op.String(), "t", p.T, "s", p.S)
	}

	s.events.Raw.Emit(p)

	if p.S != nil {
		s.recordSeq(*p.S)
	}

	if err := s.router.Route(p, h); err != nil {
		s.logger.Warn("dropping payload", "op", p.Op.String(), "error", err)
	}
}

// recordSeq keeps the highest sequence seen.
func (s *Session) recordSeq(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSeq && seq <= s.seq {
		if seq < s.seq {
			s.logger.Debug("ignoring sequence regression", "seq", seq, "last", s.seq)
		}
		return
	}
	s.seq, s.hasSeq = seq, true
}

func (s *Session) handleClose(gen uint64, code int, reason string, err error) {
	s.mu.Lock()
	if s.closed || s.state == StateFailed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.t = nil
	s.state = StateConnecting
	s.mu.Unlock()

	s.heartbeat.Stop()
	s.logger.Debug("socket closed", "code", code, "reason", reason, "error", err)
	s.events.Close.Emit(CloseEvent{Code: code, Reason: reason})

	action, fatal := s.policy.Decide(code, reason)
	switch action {
	case ActionFatal:
		s.fail(fatal)
		return
	case ActionResume:
		s.mu.Lock()
		s.resuming = true
		s.mu.Unlock()
		s.persist()
	default:
		s.resetSession()
	}

	s.scheduleReconnect()
}

// resetSession forgets the session so the next handshake is a fresh IDENTIFY.
func (s *Session) resetSession() {
	s.mu.Lock()
	s.resuming = false
	s.sessionID = ""
	s.resumeURL = ""
	s.seq, s.hasSeq = 0, false
	s.mu.Unlock()

	s.clearStore()
}

// restart drops the socket of generation gen and reconnects to resume.
func (s *Session) restart(gen uint64, why string) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.t == nil {
		s.mu.Unlock()
		return
	}
	t := s.t
	s.t = nil
	s.gen++
	s.resuming = true
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("restarting connection", "reason", why)

	s.heartbeat.Stop()
	t.close(closeResumable)
	s.persist()
	s.scheduleReconnect()
}

func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state == StateFailed {
		return
	}

	delay := s.cfg.ReconnectDelay << min(s.attempts, 16)
	if delay > s.cfg.MaxReconnectDelay || delay <= 0 {
		delay = s.cfg.MaxReconnectDelay
	}

	gen := s.gen
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(delay, func() { s.reconnect(gen) })

	s.logger.Debug("reconnect scheduled", "delay", delay, "attempt", s.attempts+1)
}

func (s *Session) reconnect(gen uint64) {
	s.mu.Lock()
	if s.closed || s.state == StateFailed || gen != s.gen || s.t != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	err := s.connect(s.ctx)
	if err == nil {
		return
	}

	var budget *SessionBudgetError
	if errors.As(err, &budget) {
		s.fail(err)
		return
	}
	if errors.Is(err, ErrClosed) || s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	s.logger.Warn("reconnect failed", "error", err, "attempt", attempt)
	s.scheduleReconnect()
}

// fail moves the session to FAILED and surfaces err exactly once.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.closed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.err = err
	t := s.t
	s.t = nil
	s.gen++
	s.stopTimersLocked()
	s.mu.Unlock()

	s.heartbeat.Stop()
	s.cancel()
	if t != nil {
		t.close(websocket.CloseNormalClosure)
	}

	s.logger.Error("gateway session failed", "error", err)
	s.events.Fatal.Emit(err)
	s.finish()
}

// Close shuts the session down and cancels every pending timer.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateClosed
	t := s.t
	s.t = nil
	s.gen++
	s.stopTimersLocked()
	s.mu.Unlock()

	s.heartbeat.Stop()
	s.cancel()

	code := websocket.CloseNormalClosure
	if s.cfg.KeepSessionOnClose {
		code = closeResumable
		s.persist()
	} else {
		s.clearStore()
	}
	if t != nil {
		t.close(code)
	}

	s.logger.Info("gateway session closed")
	s.finish()
	return nil
}

func (s *Session) stopTimersLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.identifyTimer != nil {
		s.identifyTimer.Stop()
		s.identifyTimer = nil
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Send writes one payload. It is a logged no-op returning ErrNotOpen unless
// a socket is open.
func (s *Session) Send(op Opcode, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}

	s.mu.Lock()
	t := s.t
	s.mu.Unlock()

	if t == nil {
		s.logger.Debug("cannot send, socket not open", "op", op.String())
		return ErrNotOpen
	}

	data, err := json.Marshal(Payload{Op: op, D: raw})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("sending", "op", op.String(), "payload", auth.RedactIn(string(data), s.token))
	}

	if err := t.write(data); err != nil {
		s.logger.Warn("send failed", "op", op.String(), "error", err)
		return err
	}
	return nil
}

// RequestGuildMembers asks for guild members and returns the nonce carried by
// the resulting GUILD_MEMBERS_CHUNK dispatches.
func (s *Session) RequestGuildMembers(req GuildMembersRequest) (string, error) {
	if req.GuildID == "" {
		return "", errors.New("guild id is required")
	}

	nonce := req.Nonce
	if nonce == "" {
		nonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	data := requestGuildMembersData{
		GuildID:   req.GuildID,
		Limit:     req.Limit,
		Presences: req.Presences,
		UserIDs:   req.UserIDs,
		Nonce:     nonce,
	}
	if len(req.UserIDs) == 0 {
		q := req.Query
		data.Query = &q
	}

	return nonce, s.Send(OpRequestGuildMembers, data)
}

// UpdatePresence changes the bot's presence.
func (s *Session) UpdatePresence(p PresenceUpdateData) error {
	if p.Activities == nil {
		p.Activities = []Activity{}
	}
	if p.Status == "" {
		p.Status = "online"
	}
	return s.Send(OpPresenceUpdate, p)
}

func (s *Session) beat() {
	s.mu.Lock()
	if s.t == nil {
		s.mu.Unlock()
		return
	}
	if s.awaitingAck {
		gen := s.gen
		s.mu.Unlock()
		s.logger.Warn("heartbeat not acknowledged")
		s.restart(gen, "zombied connection")
		return
	}
	s.mu.Unlock()

	s.sendHeartbeat()
}

// sendHeartbeat sends one heartbeat and starts timing its ACK. Both
// scheduled and server-requested heartbeats go through here.
func (s *Session) sendHeartbeat() {
	s.mu.Lock()
	var d any
	if s.hasSeq {
		d = s.seq
	}
	s.awaitingAck = true
	s.lastBeat = time.Now()
	s.mu.Unlock()

	s.Send(OpHeartbeat, d)
}

func (s *Session) sendIdentify() {
	s.logger.Info("identifying", "token", auth.Redact(s.token), "intents", s.cfg.Intents)

	s.Send(OpIdentify, IdentifyData{
		Token:          s.token,
		Intents:        s.cfg.Intents,
		Properties:     s.cfg.Properties,
		LargeThreshold: s.cfg.LargeThreshold,
	})
}

func (s *Session) sendResume() {
	s.mu.Lock()
	id, seq, hasSeq := s.sessionID, s.seq, s.hasSeq
	s.mu.Unlock()

	if id == "" || !hasSeq {
		s.logger.Debug("cannot resume without session id and sequence")
		s.sendIdentify()
		return
	}

	s.logger.Info("resuming session", "session_id", id, "seq", seq)
	s.Send(OpResume, ResumeData{Token: s.token, SessionID: id, Seq: seq})
}

// restore loads a stored session so the first handshake resumes it.
func (s *Session) restore(ctx context.Context) {
	if s.store == nil || s.cfg.SessionKey == "" {
		return
	}

	rec, err := s.store.Load(ctx, s.cfg.SessionKey)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNotFound) {
			s.logger.Warn("load stored session failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return
	}
	s.sessionID = rec.SessionID
	s.seq, s.hasSeq = rec.Sequence, true
	s.resumeURL = rec.ResumeURL
	s.resuming = true

	s.logger.Info("restored stored session", "session_id", rec.SessionID, "seq", rec.Sequence)
}

func (s *Session) persist() {
	if s.store == nil || s.cfg.SessionKey == "" {
		return
	}

	s.mu.Lock()
	rec := sessionstore.Record{
		SessionID: s.sessionID,
		Sequence:  s.seq,
		ResumeURL: s.resumeURL,
		UpdatedAt: time.Now(),
	}
	ok := s.sessionID != "" && s.hasSeq
	s.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.cfg.SessionKey, rec); err != nil {
		s.logger.Warn("save session failed", "error", err)
	}
}

func (s *Session) clearStore() {
	if s.store == nil || s.cfg.SessionKey == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Clear(ctx, s.cfg.SessionKey); err != nil {
		s.logger.Warn("clear session failed", "error", err)
	}
}

// socketHandler binds opcode handling to one socket generation so late
// payloads from a replaced socket are ignored.
type socketHandler struct {
	s   *Session
	gen uint64
}

func (h *socketHandler) Hello(data HelloData) {
	s := h.s
	interval := data.Interval()
	if interval <= 0 {
		s.logger.Warn("ignoring hello without heartbeat interval")
		return
	}

	s.mu.Lock()
	if s.closed || h.gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = StateHandshaking
	resume := s.resuming && s.sessionID != "" && s.hasSeq
	s.mu.Unlock()

	s.logger.Info("hello", "heartbeat_interval", interval, "resume", resume)
	s.events.Hello.Emit(interval)

	s.heartbeat.Start(interval)

	if resume {
		s.sendResume()
	} else {
		s.sendIdentify()
	}
}

func (h *socketHandler) HeartbeatAck() {
	s := h.s

	s.mu.Lock()
	if h.gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.awaitingAck = false
	if !s.lastBeat.IsZero() {
		s.latency = time.Since(s.lastBeat)
	}
	latency := s.latency
	s.mu.Unlock()

	s.logger.Debug("heartbeat acknowledged", "latency", latency)
	s.events.HeartbeatAck.Emit(latency)
}

func (h *socketHandler) HeartbeatRequest() {
	h.s.logger.Debug("gateway requested heartbeat")
	h.s.sendHeartbeat()
}

func (h *socketHandler) Dispatch(d Dispatch) {
	s := h.s
	s.events.Dispatch.Emit(d)

	switch d.Name {
	case "READY":
		var ready ReadyData
		if err := json.Unmarshal(d.Data, &ready); err != nil {
			s.logger.Warn("dropping ready", "error", &ProtocolError{Reason: "decode ready", Err: err})
			return
		}

		s.mu.Lock()
		s.sessionID = ready.SessionID
		if ready.ResumeGatewayURL != "" {
			s.resumeURL = ready.ResumeGatewayURL
		}
		s.resuming = false
		s.attempts = 0
		s.state = StateReady
		s.mu.Unlock()

		s.logger.Info("ready", "session_id", ready.SessionID, "resume_url", ready.ResumeGatewayURL)
		s.persist()
		s.events.Ready.Emit(ready)

	case "RESUMED":
		s.mu.Lock()
		s.resuming = false
		s.attempts = 0
		s.state = StateReady
		ev := ResumedEvent{SessionID: s.sessionID, Seq: s.seq}
		s.mu.Unlock()

		s.logger.Info("resumed", "session_id", ev.SessionID, "seq", ev.Seq)
		s.persist()
		s.events.Resumed.Emit(ev)
	}
}

func (h *socketHandler) Reconnect() {
	s := h.s
	s.logger.Info("gateway requested reconnect")
	s.events.Reconnect.Emit(struct{}{})
	s.restart(h.gen, "reconnect requested")
}

func (h *socketHandler) InvalidSession(resumable bool) {
	s := h.s
	s.events.InvalidSession.Emit(resumable)

	if resumable {
		s.logger.Info("invalid session, resuming")
		s.restart(h.gen, "invalid session")
		return
	}

	s.logger.Info("invalid session, re-identifying", "delay", s.cfg.ReconnectDelay)
	s.resetSession()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || h.gen != s.gen {
		return
	}
	s.state = StateHandshaking
	if s.identifyTimer != nil {
		s.identifyTimer.Stop()
	}
	gen := h.gen
	s.identifyTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		if s.isCurrent(gen) {
			s.sendIdentify()
		}
	})
}
