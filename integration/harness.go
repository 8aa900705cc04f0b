package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apirest "github.com/kasuganosora/isoarpg/api/rest"
	"github.com/kasuganosora/isoarpg/api/sse"
	apows "github.com/kasuganosora/isoarpg/api/ws"
	"github.com/kasuganosora/isoarpg/audit"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/game/world"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/resource"
	"github.com/kasuganosora/isoarpg/scheduler"
	"github.com/kasuganosora/isoarpg/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// MoorLevel is the level every test server loads: a 6x4 field with one
// wall at (2,1) and one enemy at (5,3).
const MoorLevel = `
id: moor
name: Moor
collision:
  - "......"
  - "..#..."
  - "......"
  - "......"
player_spawn: {x: 0, y: 0}
enemies:
  - {x: 5, y: 3}
`

// AdminKey is the X-Admin-Key accepted by test servers.
const AdminKey = "integration-admin"

// TestServer wraps a real HTTP server with every subsystem wired the way main.go does.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Stats  *stats.Service
	SM     *player.SessionManager
	WM     *world.WorldManager
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	WSURL  string // ws://127.0.0.1:<port>/ws
	Sec    config.SecurityConfig
}

// NewTestServer creates a fully wired server. Everything is torn down by t.Cleanup.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	combatLog := audit.New(db, logger)
	statsSvc := stats.New(db, c, pubsub, combatLog, logger)

	levels := resource.NewLoader(t.TempDir(), logger)
	lv, err := resource.ParseLevel([]byte(MoorLevel))
	require.NoError(t, err)
	levels.Add(lv)

	sm := player.NewSessionManager(logger)
	wm := world.NewWorldManager(levels, world.DefaultLevelConfig(""), 10*time.Millisecond, statsSvc, logger)
	sched := scheduler.New(logger)
	sched.AddTicker("ranking_refresh", time.Hour, func(ctx context.Context) error {
		_, err := statsSvc.Refresh(ctx)
		return err
	})

	wsRouter := apows.NewRouter(logger)
	apows.NewGameHandlers(wm, "moor", logger).RegisterHandlers(wsRouter)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	rlCtx, rlCancel := context.WithCancel(context.Background())
	r.Use(mw.RateLimit(rlCtx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": wm.ActiveRoomCount(), "online": sm.Count()})
	})

	authH := apirest.NewAuthHandler(db, c, sec, logger)
	rankH := apirest.NewRankingHandler(statsSvc, 10, logger)
	levelH := apirest.NewLevelHandler(levels, wm, statsSvc, logger)
	adminH := apirest.NewAdminHandler(db, sm, wm, sched, logger)
	sseH := sse.NewHandler(pubsub, c, sec, levels, logger)

	api := r.Group("/api")
	api.POST("/auth/login", authH.Login)
	api.POST("/auth/logout", mw.Auth(sec, c), authH.Logout)
	api.POST("/auth/refresh", mw.Auth(sec, c), authH.Refresh)
	api.GET("/auth/me", mw.Auth(sec, c), authH.Me)
	api.GET("/ranking/kills", rankH.TopKills)
	api.GET("/levels", levelH.List)
	api.GET("/levels/:id", levelH.Get)
	api.GET("/levels/:id/events", levelH.Events)

	adminG := api.Group("/admin", apirest.AdminAuth(AdminKey))
	adminG.GET("/rooms", adminH.Rooms)
	adminG.DELETE("/rooms/:id", adminH.DestroyRoom)
	adminG.GET("/players", adminH.ListPlayers)
	adminG.POST("/kick/:id", adminH.KickPlayer)
	adminG.POST("/accounts/:id/ban", adminH.BanAccount)
	adminG.GET("/scheduler", adminH.SchedulerTasks)

	wsH := apows.NewHandler(c, sec, sm, wsRouter, wm, logger)
	r.GET("/ws", wsH.ServeWS)
	r.GET("/sse", sseH.ServeSSE)

	srv := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Stats:  statsSvc,
		SM:     sm,
		WM:     wm,
		Server: srv,
		URL:    srv.URL,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Sec:    sec,
	}
	t.Cleanup(func() {
		sm.CloseAllSessions()
		srv.Close()
		sched.Stop()
		wm.StopAll()
		statsSvc.Stop()
		combatLog.Stop(context.Background())
		rlCancel()
	})
	return ts
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body, bearer token and admin key.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string, admin bool) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if admin {
		req.Header.Set("X-Admin-Key", AdminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token, false)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token, false)
}

// ReadJSON reads and decodes a JSON response body into target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Login logs in (auto-registers on first call) and returns the token and account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token     string `json:"token"`
		AccountID int64  `json:"account_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.AccountID
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection. Reads go through a
// background loop so a timed-out Recv does not poison the connection.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// Packet is a decoded server packet.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (p *Packet) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(p.Payload, v), "payload: %s", string(p.Payload))
}

// ConnectWS dials the WS endpoint with token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 256)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes one packet with the next sequence number.
func (wc *WSClient) Send(msgType string, payload any) {
	wc.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(wc.t, err)
	data, err := json.Marshal(Packet{Seq: atomic.AddUint64(&wc.seq, 1), Type: msgType, Payload: raw})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// RecvAny returns the next packet or an error on timeout or read failure.
func (wc *WSClient) RecvAny(timeout time.Duration) (*Packet, error) {
	select {
	case res := <-wc.readCh:
		if res.err != nil {
			return nil, res.err
		}
		var pkt Packet
		if err := json.Unmarshal(res.data, &pkt); err != nil {
			return nil, err
		}
		return &pkt, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("read timeout after %s", timeout)
	}
}

// RecvType reads packets until one of msgType arrives.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) *Packet {
	wc.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			wc.t.Fatalf("timed out waiting for message type %q", msgType)
		}
		pkt, err := wc.RecvAny(remaining)
		if err != nil {
			wc.t.Fatalf("WS recv failed while waiting for %q: %v", msgType, err)
		}
		if pkt.Type == msgType {
			return pkt
		}
	}
}

// Close closes the WebSocket connection.
func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}

// LoginAndEnter logs in, connects and enters the moor level. It returns the
// token, account ID, the player's entity ID and the connected client.
func (ts *TestServer) LoginAndEnter(t *testing.T, username string) (string, int64, int64, *WSClient) {
	t.Helper()
	token, accountID := ts.Login(t, username, username+"pass")
	ws := ts.ConnectWS(t, token)
	ws.Send("enter_level", map[string]string{"level": "moor"})
	var init world.LevelInit
	ws.RecvType("level_init", 5*time.Second).Decode(t, &init)
	return token, accountID, init.EntityID, ws
}

var testCounter uint64

// UniqueID returns a short alphanumeric name unique within the test binary.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, atomic.AddUint64(&testCounter, 1))
}
