package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/game/stats"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

// LevelHandler exposes static level data and recent level events.
type LevelHandler struct {
	levels *resource.Loader
	wm     *world.WorldManager
	stats  *stats.Service
	logger *zap.Logger
}

// NewLevelHandler creates a LevelHandler.
func NewLevelHandler(levels *resource.Loader, wm *world.WorldManager, s *stats.Service, logger *zap.Logger) *LevelHandler {
	return &LevelHandler{levels: levels, wm: wm, stats: s, logger: logger}
}

type levelSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Enemies int    `json:"enemies"`
	Players int    `json:"players"`
	Running bool   `json:"running"`
}

// List handles GET /api/levels.
func (h *LevelHandler) List(c *gin.Context) {
	ids := h.levels.IDs()
	out := make([]levelSummary, 0, len(ids))
	for _, id := range ids {
		lv, err := h.levels.Level(id)
		if err != nil {
			continue
		}
		w, ht := lv.Size()
		sum := levelSummary{ID: lv.ID, Name: lv.Name, Width: w, Height: ht, Enemies: len(lv.Enemies)}
		if room := h.wm.Get(id); room != nil {
			sum.Running = true
			sum.Players = room.PlayerCount()
		}
		out = append(out, sum)
	}
	c.JSON(http.StatusOK, gin.H{"levels": out})
}

// Get handles GET /api/levels/:id, returning the static walkability table
// the client uses for its minimap and local path previews.
func (h *LevelHandler) Get(c *gin.Context) {
	lv, err := h.levels.Level(c.Param("id"))
	if errors.Is(err, resource.ErrLevelNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "level not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	w, ht := lv.Size()
	c.JSON(http.StatusOK, gin.H{
		"id":           lv.ID,
		"name":         lv.Name,
		"width":        w,
		"height":       ht,
		"tile_width":   lv.TileWidth,
		"tile_height":  lv.TileHeight,
		"tiles":        lv.Walkable(),
		"player_spawn": lv.PlayerSpawn,
	})
}

// Events handles GET /api/levels/:id/events?limit=20.
func (h *LevelHandler) Events(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.levels.Level(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "level not found"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.stats.Recent(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Warn("recent events", zap.String("level", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	if events == nil {
		events = []world.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
