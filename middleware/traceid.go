package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"

	maxTraceIDLen = 64
)

// TraceID reuses a caller-supplied X-Trace-ID or mints a UUID, and echoes it.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" || len(traceID) > maxTraceIDLen {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID returns the request's trace id, or "".
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
