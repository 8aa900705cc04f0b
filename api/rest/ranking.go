package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/game/stats"
	"go.uber.org/zap"
)

// RankingHandler serves the kill leaderboard.
type RankingHandler struct {
	stats        *stats.Service
	defaultLimit int
	logger       *zap.Logger
}

// NewRankingHandler creates a RankingHandler; defaultLimit applies when ?limit is absent.
func NewRankingHandler(s *stats.Service, defaultLimit int, logger *zap.Logger) *RankingHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &RankingHandler{stats: s, defaultLimit: defaultLimit, logger: logger}
}

// TopKills handles GET /api/ranking/kills?limit=20.
func (h *RankingHandler) TopKills(c *gin.Context) {
	limit := h.defaultLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	entries, err := h.stats.Top(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("ranking query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if entries == nil {
		entries = []stats.RankEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// Refresh handles POST /api/admin/ranking/refresh.
func (h *RankingHandler) Refresh(c *gin.Context) {
	n, err := h.stats.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error("ranking refresh", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}
