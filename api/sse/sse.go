package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	"github.com/kasuganosora/isoarpg/game/stats"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

const (
	announceChannel = "announce"
	keepaliveEvery  = 30 * time.Second
)

// Handler streams announcements and level events as server-sent events.
type Handler struct {
	pubsub    cache.PubSub
	c         cache.Cache
	sec       config.SecurityConfig
	levels    *resource.Loader
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, levels *resource.Loader, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, levels: levels, keepalive: keepaliveEvery, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>[&level=<id>].
// Without a level only announcements are delivered.
func (h *Handler) ServeSSE(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if _, err := mw.Authenticate(c.Request.Context(), token, h.sec, h.c); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	channels := []string{announceChannel}
	if level := c.Query("level"); level != "" {
		if _, err := h.levels.Level(level); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "level not found"})
			return
		}
		channels = append(channels, stats.EventsChannel(level))
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, channels...)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "level_event"
			if msg.Channel == announceChannel {
				event = "announce"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes message to every SSE subscriber.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}
