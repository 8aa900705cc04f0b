package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceOf(t *testing.T, header string) (body, echoed string) {
	t.Helper()
	r := gin.New()
	r.Use(TraceID())
	r.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	if header != "" {
		req.Header.Set(TraceIDHeader, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String(), w.Header().Get(TraceIDHeader)
}

func TestTraceID_Generated(t *testing.T) {
	id, echoed := traceOf(t, "")
	assert.Len(t, id, 36)
	assert.Equal(t, id, echoed)

	other, _ := traceOf(t, "")
	assert.NotEqual(t, id, other)
}

func TestTraceID_Provided(t *testing.T) {
	id, echoed := traceOf(t, "my-custom-trace")
	assert.Equal(t, "my-custom-trace", id)
	assert.Equal(t, "my-custom-trace", echoed)
}

func TestTraceID_OversizedReplaced(t *testing.T) {
	id, _ := traceOf(t, strings.Repeat("x", 200))
	assert.Len(t, id, 36)
}

func TestGetTraceID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetTraceID(c))
}
