package rest

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/game/player"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/kasuganosora/isoarpg/model"
	"github.com/kasuganosora/isoarpg/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler serves the operator endpoints. Mount it behind AdminAuth.
type AdminHandler struct {
	db     *gorm.DB
	sm     *player.SessionManager
	wm     *world.WorldManager
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	sm *player.SessionManager,
	wm *world.WorldManager,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, sm: sm, wm: wm, sched: sched, logger: logger}
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_players": h.sm.Count(),
		"active_rooms":   h.wm.ActiveRoomCount(),
	})
}

// Rooms handles GET /api/admin/rooms.
func (h *AdminHandler) Rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.wm.Rooms()})
}

// DestroyRoom handles DELETE /api/admin/rooms/:id. Its players receive
// level_closed and stay connected, unbound.
func (h *AdminHandler) DestroyRoom(c *gin.Context) {
	id := c.Param("id")
	if !h.wm.Destroy(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not running"})
		return
	}
	h.logger.Info("admin destroyed room", zap.String("level", id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type playerInfo struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Level     string `json:"level,omitempty"`
	EntityID  int64  `json:"entity_id,omitempty"`
}

// ListPlayers handles GET /api/admin/players.
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	out := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		level, entity := s.Binding()
		out = append(out, playerInfo{AccountID: s.AccountID, Username: s.Username, Level: level, EntityID: entity})
	}
	c.JSON(http.StatusOK, gin.H{"players": out, "count": len(out)})
}

// KickPlayer handles POST /api/admin/kick/:id, where id is an account id.
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.sm.Get(accountID)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.Int64("account_id", accountID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanAccount handles POST /api/admin/accounts/:id/ban with body {"ban": bool}.
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := model.AccountNormal
	if req.Ban {
		status = model.AccountBanned
	}
	res := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if req.Ban {
		if s := h.sm.Get(accountID); s != nil {
			s.Close()
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// SchedulerTasks handles GET /api/admin/scheduler.
func (h *AdminHandler) SchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// RunTask handles POST /api/admin/scheduler/:name/run.
func (h *AdminHandler) RunTask(c *gin.Context) {
	name := c.Param("name")
	err := h.sched.RunNow(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownTask):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// AdminAuth checks the X-Admin-Key header. With an empty key every admin
// route answers 503, so a deployment without a key exposes nothing.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
