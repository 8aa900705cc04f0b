package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/world"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"go.uber.org/zap"
)

const leaveTimeout = 3 * time.Second

// Handler is the Gin handler for GET /ws.
type Handler struct {
	cache    cache.Cache
	sec      config.SecurityConfig
	sm       *player.SessionManager
	wm       *world.WorldManager
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// An empty sec.AllowedOrigins accepts every origin.
func NewHandler(
	c cache.Cache,
	sec config.SecurityConfig,
	sm *player.SessionManager,
	router *Router,
	wm *world.WorldManager,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		cache:  c,
		sec:    sec,
		sm:     sm,
		wm:     wm,
		router: router,
		logger: logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS handles GET /ws with a bearer token in the header or ?token=.
func (h *Handler) ServeWS(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.Authenticate(c.Request.Context(), token, h.sec, h.cache)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	sess := player.NewPlayerSession(claims.AccountID, claims.Username, conn, h.logger)
	sess.TraceID = mw.GetTraceID(c)
	if old := h.sm.Register(sess); old != nil {
		h.leave(old)
	}
	h.logger.Info("player connected",
		zap.Int64("account_id", claims.AccountID),
		zap.String("username", claims.Username))
	h.readPump(sess)
}

// readPump dispatches inbound frames until the connection drops.
func (h *Handler) readPump(s *player.PlayerSession) {
	defer h.handleDisconnect(s)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
			}
			return
		}
		s.SetReadDeadline()
		h.router.Dispatch(context.Background(), s, raw)
	}
}

func (h *Handler) handleDisconnect(s *player.PlayerSession) {
	s.Close()
	h.leave(s)
	h.sm.Unregister(s)
	h.logger.Info("player disconnected", zap.Int64("account_id", s.AccountID))
}

func (h *Handler) leave(s *player.PlayerSession) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := leaveLevel(ctx, s, h.wm); err != nil {
		h.logger.Warn("leave level on disconnect",
			zap.Int64("account_id", s.AccountID),
			zap.Error(err))
	}
}
