package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 carrying the request's trace id.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			traceID := GetTraceID(c)
			log.Error("panic recovered",
				zap.Any("error", r),
				zap.String("trace_id", traceID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal server error",
				"trace_id": traceID,
			})
		}()
		c.Next()
	}
}
