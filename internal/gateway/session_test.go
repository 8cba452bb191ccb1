package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/discord-core/internal/rest"
	"github.com/rickgao/discord-core/internal/sessionstore"
)

const testToken = "test-token-abcdef"

// mockGateway serves websocket connections; handler gets the 1-based
// connection number.
func mockGateway(t *testing.T, handler func(conn *websocket.Conn, r *http.Request, n int)) (*httptest.Server, *atomic.Int32) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r, int(conns.Add(1)))
	}))

	return server, &conns
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.Token = testToken
	cfg.Intents = 513
	cfg.URL = url
	cfg.Compress = false
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 100 * time.Millisecond
	cfg.SendRate = 0
	return cfg
}

type fakeResolver struct {
	url       string
	remaining int
	err       error
	calls     atomic.Int32
}

func (f *fakeResolver) GatewayBot(context.Context) (*rest.GatewayBotResponse, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.GatewayBotResponse{
		URL:    f.url,
		Shards: 1,
		SessionStartLimit: rest.SessionStartLimit{
			Total:          1000,
			Remaining:      f.remaining,
			ResetAfter:     60000,
			MaxConcurrency: 1,
		},
	}, nil
}

func sendOp(conn *websocket.Conn, op Opcode, d any) error {
	return conn.WriteJSON(map[string]any{"op": op, "d": d})
}

func sendDispatch(conn *websocket.Conn, name string, seq int64, d any) error {
	return conn.WriteJSON(map[string]any{"op": OpDispatch, "t": name, "s": seq, "d": d})
}

func sendHello(conn *websocket.Conn, interval int) error {
	return sendOp(conn, OpHello, map[string]int{"heartbeat_interval": interval})
}

// readUntil reads client payloads until one with opcode op arrives. Every
// payload read is also reported to seen, when non-nil.
func readUntil(conn *websocket.Conn, op Opcode, seen chan<- Payload) (Payload, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return Payload{}, err
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, err
		}
		if seen != nil {
			select {
			case seen <- p:
			default:
			}
		}
		if p.Op == op {
			return p, nil
		}
	}
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for value")
		var zero T
		return zero
	}
}

func TestSession_IdentifyOnHello(t *testing.T) {
	identifies := make(chan Payload, 1)
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		p, err := readUntil(conn, OpIdentify, nil)
		if err != nil {
			return
		}
		identifies <- p
		sendDispatch(conn, "READY", 1, map[string]any{
			"v":                  10,
			"session_id":         "session-abc",
			"resume_gateway_url": "wss://resume.example",
		})
		drain(conn)
	})
	defer server.Close()

	resolver := &fakeResolver{url: wsURL(server), remaining: 1000}
	sess := NewSession(testConfig(""), resolver)
	defer sess.Close()

	ready := make(chan ReadyData, 1)
	sess.Events().Ready.Subscribe(func(d ReadyData) { ready <- d })

	require.NoError(t, sess.Connect(context.Background()))

	p := recv(t, identifies)
	var identify IdentifyData
	require.NoError(t, json.Unmarshal(p.D, &identify))
	assert.Equal(t, testToken, identify.Token)
	assert.Equal(t, 513, identify.Intents)
	assert.Equal(t, "discord-core", identify.Properties.Browser)

	r := recv(t, ready)
	assert.Equal(t, "session-abc", r.SessionID)
	assert.Equal(t, "session-abc", sess.SessionID())
	assert.Equal(t, StateReady, sess.State())
	seq, ok := sess.Sequence()
	assert.True(t, ok)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestSession_ResumeFromStore(t *testing.T) {
	resumes := make(chan Payload, 1)
	heartbeats := make(chan Payload, 4)
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		p, err := readUntil(conn, OpResume, heartbeats)
		if err != nil {
			return
		}
		resumes <- p
		sendDispatch(conn, "RESUMED", 43, nil)
		drain(conn)
	})
	defer server.Close()

	store := sessionstore.NewMemory()
	require.NoError(t, store.Save(context.Background(), "app-1", sessionstore.Record{
		SessionID: "stored-session",
		Sequence:  42,
		ResumeURL: wsURL(server),
	}))

	cfg := testConfig("ws://127.0.0.1:1")
	cfg.SessionKey = "app-1"
	cfg.KeepSessionOnClose = true
	resolver := &fakeResolver{err: errors.New("must not be called")}
	sess := NewSession(cfg, resolver, WithStore(store))

	resumed := make(chan ResumedEvent, 1)
	sess.Events().Resumed.Subscribe(func(e ResumedEvent) { resumed <- e })

	require.NoError(t, sess.Connect(context.Background()))

	beat := recv(t, heartbeats)
	assert.Equal(t, OpHeartbeat, beat.Op)
	assert.Equal(t, "42", string(beat.D))

	p := recv(t, resumes)
	var resume ResumeData
	require.NoError(t, json.Unmarshal(p.D, &resume))
	assert.Equal(t, ResumeData{Token: testToken, SessionID: "stored-session", Seq: 42}, resume)

	ev := recv(t, resumed)
	assert.Equal(t, "stored-session", ev.SessionID)
	assert.Equal(t, int64(43), ev.Seq)
	assert.Equal(t, int32(0), resolver.calls.Load())

	require.NoError(t, sess.Close())

	rec, err := store.Load(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(43), rec.Sequence)
}

func TestSession_BudgetGuard(t *testing.T) {
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		drain(conn)
	})
	defer server.Close()

	resolver := &fakeResolver{url: wsURL(server), remaining: 1}
	sess := NewSession(testConfig(wsURL(server)), resolver)
	defer sess.Close()

	err := sess.Connect(context.Background())

	var budget *SessionBudgetError
	require.ErrorAs(t, err, &budget)
	assert.Equal(t, 1, budget.Remaining)
	assert.Equal(t, 1000, budget.Total)
	assert.Equal(t, time.Minute, budget.ResetAfter)
	assert.Equal(t, int32(0), conns.Load(), "no socket may be opened")
	assert.Equal(t, StateDisconnected, sess.State())
}

func TestSession_LookupFailureFallsBack(t *testing.T) {
	var query atomic.Value
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		query.Store(r.URL.RawQuery)
		drain(conn)
	})
	defer server.Close()

	resolver := &fakeResolver{err: errors.New("lookup down")}
	cfg := testConfig(wsURL(server))
	cfg.Compress = true
	sess := NewSession(cfg, resolver)
	defer sess.Close()

	require.NoError(t, sess.Connect(context.Background()))
	require.Eventually(t, func() bool { return conns.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "v=10&encoding=json&compress=zlib-stream", query.Load())
}

func TestSession_FatalClose(t *testing.T) {
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		if _, err := readUntil(conn, OpIdentify, nil); err != nil {
			return
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseAuthenticationFailed, "Authentication failed."),
			time.Now().Add(time.Second),
		)
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	var fatals atomic.Int32
	sess.Events().Fatal.Subscribe(func(error) { fatals.Add(1) })

	require.NoError(t, sess.Connect(context.Background()))

	select {
	case <-sess.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not fail")
	}

	var fatal *FatalCloseError
	require.ErrorAs(t, sess.Err(), &fatal)
	assert.Equal(t, CloseAuthenticationFailed, fatal.Code)
	assert.Equal(t, StateFailed, sess.State())
	assert.Equal(t, int32(1), fatals.Load())

	// No reconnect after a fatal close.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), conns.Load())
}

func TestSession_ReconnectOpcodeResumes(t *testing.T) {
	resumes := make(chan Payload, 1)
	var server *httptest.Server
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		switch n {
		case 1:
			if _, err := readUntil(conn, OpIdentify, nil); err != nil {
				return
			}
			sendDispatch(conn, "READY", 1, map[string]any{
				"session_id":         "s1",
				"resume_gateway_url": wsURL(server),
			})
			sendDispatch(conn, "MESSAGE_CREATE", 2, map[string]string{"id": "m"})
			sendOp(conn, OpReconnect, nil)
		default:
			p, err := readUntil(conn, OpResume, nil)
			if err != nil {
				return
			}
			resumes <- p
			sendDispatch(conn, "RESUMED", 3, nil)
		}
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	var reconnects atomic.Int32
	sess.Events().Reconnect.Subscribe(func(struct{}) { reconnects.Add(1) })
	resumed := make(chan ResumedEvent, 1)
	sess.Events().Resumed.Subscribe(func(e ResumedEvent) { resumed <- e })

	require.NoError(t, sess.Connect(context.Background()))

	p := recv(t, resumes)
	var resume ResumeData
	require.NoError(t, json.Unmarshal(p.D, &resume))
	assert.Equal(t, "s1", resume.SessionID)
	assert.Equal(t, int64(2), resume.Seq)

	recv(t, resumed)
	assert.Equal(t, int32(2), conns.Load())
	assert.Equal(t, int32(1), reconnects.Load())
	assert.Equal(t, StateReady, sess.State())
}

func TestSession_InvalidSessionReidentifies(t *testing.T) {
	identifies := make(chan Payload, 2)
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		p, err := readUntil(conn, OpIdentify, nil)
		if err != nil {
			return
		}
		identifies <- p
		sendDispatch(conn, "READY", 1, map[string]string{"session_id": "doomed"})
		sendOp(conn, OpInvalidSession, false)

		p, err = readUntil(conn, OpIdentify, nil)
		if err != nil {
			return
		}
		identifies <- p
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	invalid := make(chan bool, 1)
	sess.Events().InvalidSession.Subscribe(func(resumable bool) { invalid <- resumable })

	require.NoError(t, sess.Connect(context.Background()))

	recv(t, identifies)
	assert.False(t, recv(t, invalid))
	recv(t, identifies)

	assert.Equal(t, int32(1), conns.Load(), "re-identify happens on the same socket")
	assert.Equal(t, "", sess.SessionID())
	_, ok := sess.Sequence()
	assert.False(t, ok)
}

func TestSession_ResumableCloseResumes(t *testing.T) {
	for _, code := range []int{CloseInvalidSeq, CloseSessionTimedOut} {
		t.Run(CloseCodeName(code), func(t *testing.T) {
			resumes := make(chan Payload, 1)
			var server *httptest.Server
			server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
				sendHello(conn, 45000)
				switch n {
				case 1:
					if _, err := readUntil(conn, OpIdentify, nil); err != nil {
						return
					}
					sendDispatch(conn, "READY", 1, map[string]any{
						"session_id":         "s1",
						"resume_gateway_url": wsURL(server),
					})
					sendDispatch(conn, "MESSAGE_CREATE", 2, map[string]string{"id": "m"})
					conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(code, ""),
						time.Now().Add(time.Second),
					)
				default:
					p, err := readUntil(conn, OpResume, nil)
					if err != nil {
						return
					}
					resumes <- p
					sendDispatch(conn, "RESUMED", 3, nil)
				}
				drain(conn)
			})
			defer server.Close()

			sess := NewSession(testConfig(wsURL(server)), nil)
			defer sess.Close()

			closes := make(chan CloseEvent, 1)
			sess.Events().Close.Subscribe(func(e CloseEvent) {
				select {
				case closes <- e:
				default:
				}
			})
			resumed := make(chan ResumedEvent, 1)
			sess.Events().Resumed.Subscribe(func(e ResumedEvent) { resumed <- e })

			require.NoError(t, sess.Connect(context.Background()))

			assert.Equal(t, code, recv(t, closes).Code)

			p := recv(t, resumes)
			var resume ResumeData
			require.NoError(t, json.Unmarshal(p.D, &resume))
			assert.Equal(t, ResumeData{Token: testToken, SessionID: "s1", Seq: 2}, resume)

			recv(t, resumed)
			assert.Equal(t, int32(2), conns.Load())
			assert.Equal(t, StateReady, sess.State())
		})
	}
}

func TestSession_NormalCloseReidentifies(t *testing.T) {
	handshakes := make(chan Payload, 1)
	var server *httptest.Server
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		switch n {
		case 1:
			if _, err := readUntil(conn, OpIdentify, nil); err != nil {
				return
			}
			sendDispatch(conn, "READY", 1, map[string]any{
				"session_id":         "s1",
				"resume_gateway_url": wsURL(server),
			})
			sendDispatch(conn, "MESSAGE_CREATE", 2, map[string]string{"id": "m"})
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
		default:
			// The first handshake payload decides between RESUME and IDENTIFY.
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var p Payload
				if err := json.Unmarshal(data, &p); err != nil {
					return
				}
				if p.Op == OpIdentify || p.Op == OpResume {
					handshakes <- p
					break
				}
			}
		}
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	ready := make(chan ReadyData, 1)
	sess.Events().Ready.Subscribe(func(d ReadyData) { ready <- d })

	require.NoError(t, sess.Connect(context.Background()))
	recv(t, ready)

	p := recv(t, handshakes)
	assert.Equal(t, OpIdentify, p.Op)
	assert.Equal(t, int32(2), conns.Load())
	assert.Equal(t, "", sess.SessionID())
	_, ok := sess.Sequence()
	assert.False(t, ok)
}

func TestSession_UndecodableFramesAreDropped(t *testing.T) {
	server, conns := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03, 0x00, 0x00, 0xff, 0xff})
		sendHello(conn, 45000)
		if _, err := readUntil(conn, OpIdentify, nil); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"op":0,"t":"READY","s":1,`))
		sendDispatch(conn, "READY", 1, map[string]string{"session_id": "survivor"})
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	ready := make(chan ReadyData, 1)
	sess.Events().Ready.Subscribe(func(d ReadyData) { ready <- d })

	require.NoError(t, sess.Connect(context.Background()))

	assert.Equal(t, "survivor", recv(t, ready).SessionID)
	assert.Equal(t, StateReady, sess.State())
	assert.Equal(t, int32(1), conns.Load(), "bad frames must not drop the socket")
}

func TestSession_ZombieConnectionResumes(t *testing.T) {
	resumes := make(chan Payload, 1)
	var server *httptest.Server
	server, _ = mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		switch n {
		case 1:
			// Short interval and never acknowledge.
			sendHello(conn, 50)
			if _, err := readUntil(conn, OpIdentify, nil); err != nil {
				return
			}
			sendDispatch(conn, "READY", 1, map[string]any{
				"session_id":         "zombie",
				"resume_gateway_url": wsURL(server),
			})
		default:
			sendHello(conn, 45000)
			p, err := readUntil(conn, OpResume, nil)
			if err != nil {
				return
			}
			resumes <- p
		}
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	require.NoError(t, sess.Connect(context.Background()))

	p := recv(t, resumes)
	var resume ResumeData
	require.NoError(t, json.Unmarshal(p.D, &resume))
	assert.Equal(t, "zombie", resume.SessionID)
}

func TestSession_HeartbeatAckSetsPing(t *testing.T) {
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		if _, err := readUntil(conn, OpHeartbeat, nil); err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
		sendOp(conn, OpHeartbeatAck, nil)
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	assert.Equal(t, PingUnknown, sess.Ping())

	acks := make(chan time.Duration, 1)
	sess.Events().HeartbeatAck.Subscribe(func(d time.Duration) { acks <- d })

	require.NoError(t, sess.Connect(context.Background()))

	latency := recv(t, acks)
	assert.Greater(t, latency, time.Duration(0))
	assert.Equal(t, latency, sess.Ping())
}

func TestSession_ServerRequestedHeartbeatTimesPing(t *testing.T) {
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		if _, err := readUntil(conn, OpHeartbeat, nil); err != nil {
			return
		}
		sendOp(conn, OpHeartbeatAck, nil)

		time.Sleep(400 * time.Millisecond)
		sendOp(conn, OpHeartbeat, nil)
		if _, err := readUntil(conn, OpHeartbeat, nil); err != nil {
			return
		}
		sendOp(conn, OpHeartbeatAck, nil)
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	acks := make(chan time.Duration, 2)
	sess.Events().HeartbeatAck.Subscribe(func(d time.Duration) { acks <- d })

	require.NoError(t, sess.Connect(context.Background()))

	recv(t, acks)
	latency := recv(t, acks)
	assert.Less(t, latency, 200*time.Millisecond, "latency must be timed from the requested heartbeat")
	assert.Equal(t, latency, sess.Ping())
}

func TestSession_CompressedTransport(t *testing.T) {
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		frames := zlibStream(t,
			`{"op":10,"d":{"heartbeat_interval":45000},"s":null,"t":null}`,
			`{"op":0,"t":"READY","s":1,"d":{"session_id":"zipped"}}`,
		)
		hello := frames[0]
		mid := len(hello) / 2
		conn.WriteMessage(websocket.BinaryMessage, hello[:mid])
		conn.WriteMessage(websocket.BinaryMessage, hello[mid:])

		if _, err := readUntil(conn, OpIdentify, nil); err != nil {
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, frames[1])
		drain(conn)
	})
	defer server.Close()

	cfg := testConfig(wsURL(server))
	cfg.Compress = true
	sess := NewSession(cfg, nil)
	defer sess.Close()

	ready := make(chan ReadyData, 1)
	sess.Events().Ready.Subscribe(func(d ReadyData) { ready <- d })

	require.NoError(t, sess.Connect(context.Background()))
	assert.Equal(t, "zipped", recv(t, ready).SessionID)
}

func TestSession_RequestGuildMembers(t *testing.T) {
	requests := make(chan Payload, 1)
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		sendHello(conn, 45000)
		p, err := readUntil(conn, OpRequestGuildMembers, nil)
		if err != nil {
			return
		}
		requests <- p
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	defer sess.Close()

	hello := make(chan time.Duration, 1)
	sess.Events().Hello.Subscribe(func(d time.Duration) { hello <- d })

	require.NoError(t, sess.Connect(context.Background()))
	recv(t, hello)

	nonce, err := sess.RequestGuildMembers(GuildMembersRequest{GuildID: "g1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, nonce, 32)
	assert.NotContains(t, nonce, "-")

	p := recv(t, requests)
	var body map[string]any
	require.NoError(t, json.Unmarshal(p.D, &body))
	assert.Equal(t, "g1", body["guild_id"])
	assert.Equal(t, "", body["query"])
	assert.Equal(t, nonce, body["nonce"])
}

func TestSession_SendWhenNotOpen(t *testing.T) {
	sess := NewSession(testConfig("ws://127.0.0.1:1"), nil)
	defer sess.Close()

	assert.ErrorIs(t, sess.Send(OpHeartbeat, nil), ErrNotOpen)

	nonce, err := sess.RequestGuildMembers(GuildMembersRequest{GuildID: "g", Nonce: "custom"})
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, "custom", nonce)

	_, err = sess.RequestGuildMembers(GuildMembersRequest{})
	assert.Error(t, err)
}

func TestSession_SequenceRegressionIgnored(t *testing.T) {
	sess := NewSession(testConfig("ws://127.0.0.1:1"), nil)
	defer sess.Close()

	sess.recordSeq(5)
	sess.recordSeq(3)
	sess.recordSeq(5)

	seq, ok := sess.Sequence()
	assert.True(t, ok)
	assert.Equal(t, int64(5), seq)

	sess.recordSeq(6)
	seq, _ = sess.Sequence()
	assert.Equal(t, int64(6), seq)
}

func TestSession_CloseIsFinal(t *testing.T) {
	server, _ := mockGateway(t, func(conn *websocket.Conn, r *http.Request, n int) {
		drain(conn)
	})
	defer server.Close()

	sess := NewSession(testConfig(wsURL(server)), nil)
	require.NoError(t, sess.Connect(context.Background()))
	assert.ErrorIs(t, sess.Connect(context.Background()), ErrAlreadyActive)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	select {
	case <-sess.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	assert.NoError(t, sess.Err())
	assert.Equal(t, StateClosed, sess.State())
	assert.ErrorIs(t, sess.Connect(context.Background()), ErrClosed)
}

func TestGatewayURL(t *testing.T) {
	got, err := gatewayURL("wss://gateway.discord.gg", 10, true)
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg/?v=10&encoding=json&compress=zlib-stream", got)

	got, err = gatewayURL("wss://resume.discord.gg/?old=1", 9, false)
	require.NoError(t, err)
	assert.Equal(t, "wss://resume.discord.gg/?v=9&encoding=json", got)
}
