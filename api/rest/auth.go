package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
	mw "github.com/kasuganosora/isoarpg/middleware"
	"github.com/kasuganosora/isoarpg/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const cacheTimeout = 2 * time.Second

// AuthHandler serves login, logout, refresh and the current account.
type AuthHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32,alphanum"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login. Unknown usernames are registered on the spot.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, status, msg := h.findOrRegister(req)
	if status != http.StatusOK {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	token, err := h.issue(c.Request.Context(), acc.ID, acc.Username)
	if err != nil {
		h.logger.Error("issue token", zap.Int64("account_id", acc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	now := time.Now()
	if err := h.db.Model(acc).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	}).Error; err != nil {
		h.logger.Warn("update last login", zap.Int64("account_id", acc.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"account_id": acc.ID,
		"username":   acc.Username,
	})
}

func (h *AuthHandler) findOrRegister(req loginRequest) (*model.Account, int, string) {
	var acc model.Account
	err := h.db.Where("username = ?", req.Username).First(&acc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, http.StatusInternalServerError, "internal error"
		}
		acc = model.Account{Username: req.Username, PasswordHash: string(hash), Status: model.AccountNormal}
		if err := h.db.Create(&acc).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, http.StatusConflict, "username already taken"
			}
			h.logger.Error("register account", zap.String("username", req.Username), zap.Error(err))
			return nil, http.StatusInternalServerError, "registration failed"
		}
		h.logger.Info("account registered", zap.Int64("account_id", acc.ID), zap.String("username", acc.Username))
		return &acc, http.StatusOK, ""
	case err != nil:
		return nil, http.StatusInternalServerError, "internal error"
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		return nil, http.StatusUnauthorized, "invalid credentials"
	}
	if acc.Status == model.AccountBanned {
		return nil, http.StatusForbidden, "account banned"
	}
	return &acc, http.StatusOK, ""
}

// issue signs a token and records its session.
func (h *AuthHandler) issue(ctx context.Context, accountID int64, username string) (string, error) {
	token, err := mw.GenerateToken(accountID, username, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(token))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh; the presented token stops working.
func (h *AuthHandler) Refresh(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token, err := h.issue(c.Request.Context(), accountID, mw.GetUsername(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.BearerToken(c)))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	var acc model.Account
	if err := h.db.First(&acc, mw.GetAccountID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	var stats model.PlayerStats
	kills := int64(0)
	if err := h.db.First(&stats, "account_id = ?", acc.ID).Error; err == nil {
		kills = stats.Kills
	}
	c.JSON(http.StatusOK, gin.H{"account": acc, "kills": kills})
}

// isUniqueViolation detects duplicate-key errors from common database drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
