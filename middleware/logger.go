package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs one line per request. Long-lived /ws and /sse streams are
// logged when they end; 5xx responses log at Error, 4xx at Warn.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := zapcore.InfoLevel
		switch {
		case status >= 500:
			lvl = zapcore.ErrorLevel
		case status >= 400:
			lvl = zapcore.WarnLevel
		}
		path := c.Request.URL.Path
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("trace_id", GetTraceID(c)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := GetAccountID(c); id != 0 {
			fields = append(fields, zap.Int64("account_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		msg := "http"
		if strings.HasPrefix(path, "/ws") || strings.HasPrefix(path, "/sse") {
			msg = "stream closed"
		}
		log.Log(lvl, msg, fields...)
	}
}
