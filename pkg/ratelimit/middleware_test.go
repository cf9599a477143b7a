package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAllowsBurstThenLimits(t *testing.T) {
	s := NewStore(Config{RPS: 1, Burst: 2})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ok, remaining := s.Allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, _ = s.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, remaining = s.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	ok, _ = s.Allow("10.0.0.2")
	assert.True(t, ok, "clients have separate buckets")

	now = now.Add(time.Second)
	ok, _ = s.Allow("10.0.0.1")
	assert.True(t, ok, "a token refills after one second")
}

func TestStorePruneDropsIdleClients(t *testing.T) {
	s := NewStore(Config{RPS: 1, Burst: 1, MaxAge: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Allow("old")
	now = now.Add(50 * time.Second)
	s.Allow("recent")
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, s.Prune())
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewStore(Config{Name: "test", RPS: 1, Burst: 1}).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}
