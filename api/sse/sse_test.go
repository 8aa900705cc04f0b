package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/config"
	"github.com/kasuganosora/isoarpg/game/stats"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/resource"
	"github.com/kasuganosora/isoarpg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSec = config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}

func init() { gin.SetMode(gin.TestMode) }

func newServer(t *testing.T) (*httptest.Server, *Handler, string) {
	t.Helper()
	c, ps := testutil.SetupTestCache(t)
	levels := resource.NewLoader(t.TempDir(), zap.NewNop())
	lv, err := resource.ParseLevel([]byte("id: moor\ncollision:\n  - \"...\"\nplayer_spawn: {x: 0, y: 0}\n"))
	require.NoError(t, err)
	levels.Add(lv)

	h := NewHandler(ps, c, testSec, levels, zap.NewNop())
	r := gin.New()
	r.GET("/sse", h.ServeSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token, err := mw.GenerateToken(7, "alice", testSec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), mw.SessionKey(token), "7", time.Hour))
	return srv, h, token
}

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, rd *bufio.Reader) (string, string) {
	t.Helper()
	var event string
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event != "":
			return event, strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServeSSE_Unauthorized(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sse?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeSSE_UnknownLevel(t *testing.T) {
	srv, _, token := newServer(t)
	resp, err := http.Get(srv.URL + "/sse?level=swamp&token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeSSE_StreamsEvents(t *testing.T) {
	srv, h, token := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?level=moor", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	ev, _ := readEvent(t, rd)
	require.Equal(t, "connected", ev)

	require.NoError(t, h.Announce(ctx, "server restarting"))
	ev, data := readEvent(t, rd)
	assert.Equal(t, "announce", ev)
	assert.Equal(t, "server restarting", data)

	require.NoError(t, h.pubsub.Publish(ctx, stats.EventsChannel("moor"), `{"type":"kill"}`))
	ev, data = readEvent(t, rd)
	assert.Equal(t, "level_event", ev)
	assert.JSONEq(t, `{"type":"kill"}`, data)
}
