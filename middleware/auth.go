package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/config"
)

const (
	AccountIDKey = "account_id"
	UsernameKey  = "username"
)

// SessionKey is the cache key marking token as logged in.
func SessionKey(token string) string { return "session:" + token }

// BearerToken extracts the token from the Authorization header, falling back
// to the ?token= query parameter browsers must use for WebSocket and SSE.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// Authenticate validates token and checks that its session is still live and
// belongs to the account the token names.
func Authenticate(ctx context.Context, token string, sec config.SecurityConfig, c cache.Cache) (*Claims, error) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	owner, err := c.Get(ctx, SessionKey(token))
	if cache.IsNotFound(err) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if owner != strconv.FormatInt(claims.AccountID, 10) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Auth requires a valid token with a live session.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := Authenticate(ctx.Request.Context(), token, sec, c)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Set(UsernameKey, claims.Username)
		ctx.Next()
	}
}

// GetAccountID returns the authenticated account id, or 0.
func GetAccountID(c *gin.Context) int64 {
	return c.GetInt64(AccountIDKey)
}

// GetUsername returns the authenticated username, or "".
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
