package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/isoarpg/game/player"
	"go.uber.org/zap"
)

const handlerTimeout = 3 * time.Second

// HandlerFunc processes one decoded packet payload.
type HandlerFunc func(ctx context.Context, s *player.PlayerSession, payload json.RawMessage) error

// ClientError is a handler failure the client caused. Its message is sent
// back as an error packet instead of being logged as a server fault.
type ClientError struct{ Msg string }

func (e *ClientError) Error() string { return e.Msg }

func clientErr(msg string) error { return &ClientError{Msg: msg} }

// Router dispatches incoming packets by type.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{handlers: make(map[string]HandlerFunc), logger: logger}
}

// On registers fn for msgType, replacing any earlier handler.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch decodes raw, drops replayed sequence numbers and runs the handler.
// A zero seq opts out of replay tracking.
func (r *Router) Dispatch(ctx context.Context, s *player.PlayerSession, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet", zap.Int64("account_id", s.AccountID), zap.Error(err))
		s.SendError("malformed packet")
		return
	}

	if pkt.Seq != 0 {
		if pkt.Seq <= s.LastSeq {
			r.logger.Warn("replayed or out-of-order packet",
				zap.Int64("account_id", s.AccountID),
				zap.Uint64("seq", pkt.Seq),
				zap.Uint64("last_seq", s.LastSeq))
			return
		}
		s.LastSeq = pkt.Seq
	}

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type", zap.String("type", pkt.Type), zap.Int64("account_id", s.AccountID))
		s.SendError("unknown message type: " + pkt.Type)
		return
	}

	s.TraceID = uuid.NewString()
	ctx = context.WithValue(ctx, ctxKeyTraceID{}, s.TraceID)
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	err := fn(ctx, s, pkt.Payload)
	var ce *ClientError
	switch {
	case err == nil:
	case errors.As(err, &ce):
		s.SendError(ce.Msg)
	default:
		r.logger.Error("handler error",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		s.SendError("internal error")
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx returns the trace id Dispatch attached to ctx.
func TraceIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTraceID{}).(string)
	return v
}
