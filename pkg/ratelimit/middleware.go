// Package ratelimit throttles admin API clients by IP address.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mail2alert/pkg/errors"
	"mail2alert/pkg/metrics"
)

type Config struct {
	// Name labels the limiter in metrics.
	Name            string
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:            "http",
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Store keeps one token bucket per client key.
type Store struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*client
}

func NewStore(cfg Config) *Store {
	return &Store{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow takes a token for key and reports whether the request may proceed
// along with the tokens left.
func (s *Store) Allow(key string) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(s.cfg.RPS), s.cfg.Burst)}
		s.clients[key] = c
	}
	now := s.now()
	c.lastSeen = now

	if !c.limiter.AllowN(now, 1) {
		return false, 0
	}
	remaining := int(c.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

// Prune drops clients idle for longer than MaxAge and returns how many are left.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.MaxAge)
	for key, c := range s.clients {
		if c.lastSeen.Before(cutoff) {
			delete(s.clients, key)
		}
	}
	return len(s.clients)
}

// Run prunes idle clients every CleanupInterval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Prune()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware limits requests per client IP.
func (s *Store) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(s.cfg.RPS))

	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = c.RemoteIP()
		}

		allowed, remaining := s.Allow(key)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues(s.cfg.Name, "limited").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(errors.ErrRateLimited.Status, errors.ToErrorResponse(errors.ErrRateLimited))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues(s.cfg.Name, "allowed").Inc()
		c.Next()
	}
}
