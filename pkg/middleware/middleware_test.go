package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mail2alert/internal/logger"
	"mail2alert/pkg/logging"
)

func newEngine(log logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(log), RequestIDMiddleware(), LoggerMiddleware(log))
	return r
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	r := newEngine(logger.NopLogger())
	r.GET("/x", func(c *gin.Context) {
		seen = logging.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newEngine(logger.NewObserved(core))
	r.GET("/boom", func(*gin.Context) { panic("secret state") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret state")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLoggerLogsRequestWithID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(logger.NewObserved(core))
	r.GET("/selftest", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/selftest", nil)
	req.Header.Set(RequestIDHeader, "req-2")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-2", fields["request_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}
