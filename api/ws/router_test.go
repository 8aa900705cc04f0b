package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newSession creates a PlayerSession without a connection.
func newSession(accountID int64, name string) *player.PlayerSession {
	return &player.PlayerSession{
		AccountID: accountID,
		Username:  name,
		SendChan:  make(chan []byte, 1024),
		Done:      make(chan struct{}),
	}
}

func makePacket(t *testing.T, seq uint64, msgType string, payload any) []byte {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(player.Packet{Seq: seq, Type: msgType, Payload: p})
	require.NoError(t, err)
	return b
}

// nextPacket returns the next queued packet of type typ, skipping others.
func nextPacket(t *testing.T, s *player.PlayerSession, typ string) *player.Packet {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-s.SendChan:
			var pkt player.Packet
			require.NoError(t, json.Unmarshal(data, &pkt))
			if pkt.Type == typ {
				return &pkt
			}
		case <-deadline:
			t.Fatalf("no %s packet", typ)
			return nil
		}
	}
}

func errorMessage(t *testing.T, s *player.PlayerSession) string {
	t.Helper()
	pkt := nextPacket(t, s, "error")
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(pkt.Payload, &body))
	return body.Message
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got map[string]string
	r.On("data", func(_ context.Context, _ *player.PlayerSession, raw json.RawMessage) error {
		return json.Unmarshal(raw, &got)
	})
	r.Dispatch(context.Background(), newSession(1, "a"), makePacket(t, 1, "data", map[string]string{"key": "value"}))
	assert.Equal(t, "value", got["key"])
}

func TestRouter_MalformedAndUnknown(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newSession(1, "a")

	r.Dispatch(context.Background(), s, []byte("not json"))
	assert.Equal(t, "malformed packet", errorMessage(t, s))

	r.Dispatch(context.Background(), s, makePacket(t, 0, "bogus", nil))
	assert.Equal(t, "unknown message type: bogus", errorMessage(t, s))
}

func TestRouter_AntiReplay(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var calls int
	r.On("msg", func(context.Context, *player.PlayerSession, json.RawMessage) error {
		calls++
		return nil
	})
	s := newSession(1, "a")
	ctx := context.Background()

	r.Dispatch(ctx, s, makePacket(t, 5, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 5, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 3, "msg", nil))
	assert.Equal(t, 1, calls)

	r.Dispatch(ctx, s, makePacket(t, 6, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 0, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 0, "msg", nil))
	assert.Equal(t, 4, calls)
	assert.Equal(t, uint64(6), s.LastSeq)
}

func TestRouter_HandlerErrors(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.On("client", func(context.Context, *player.PlayerSession, json.RawMessage) error {
		return clientErr("bad cell")
	})
	r.On("server", func(context.Context, *player.PlayerSession, json.RawMessage) error {
		return errors.New("db down")
	})
	s := newSession(1, "a")

	r.Dispatch(context.Background(), s, makePacket(t, 0, "client", nil))
	assert.Equal(t, "bad cell", errorMessage(t, s))
	r.Dispatch(context.Background(), s, makePacket(t, 0, "server", nil))
	assert.Equal(t, "internal error", errorMessage(t, s))
}

func TestRouter_TraceIDAndDeadline(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var traceID string
	var hasDeadline bool
	r.On("trace", func(ctx context.Context, _ *player.PlayerSession, _ json.RawMessage) error {
		traceID = TraceIDFromCtx(ctx)
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	s := newSession(1, "a")
	r.Dispatch(context.Background(), s, makePacket(t, 1, "trace", nil))
	assert.Len(t, traceID, 36)
	assert.Equal(t, traceID, s.TraceID)
	assert.True(t, hasDeadline)
	assert.Empty(t, TraceIDFromCtx(context.Background()))
}
