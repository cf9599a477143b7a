package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mail2alert/internal/config"
	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/pkg/middleware"
	"mail2alert/pkg/ratelimit"
	"mail2alert/pkg/tracing"
)

type Server struct {
	server  *http.Server
	limiter *ratelimit.Store
	logger  logger.Logger
}

// NewLimiter returns the per-client limiter for the admin API, or nil when
// rate limiting is off.
func NewLimiter(cfg config.AdminConfig) *ratelimit.Store {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.NewStore(ratelimit.Config{
		Name:            "admin",
		RPS:             cfg.RateLimit.RPS,
		Burst:           cfg.RateLimit.Burst,
		CleanupInterval: time.Duration(cfg.RateLimit.CleanupInterval) * time.Second,
		MaxAge:          time.Duration(cfg.RateLimit.MaxAge) * time.Second,
	})
}

// NewRouter builds the gin engine with the shared middleware chain.
func NewRouter(tracingEnabled bool, limiter *ratelimit.Store, handler *Handler, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if tracingEnabled {
		router.Use(tracing.GinMiddleware("mail2alert-admin", "/health", "/metrics"))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	if limiter != nil {
		router.Use(limiter.Middleware())
		log.Infow("Rate limiting enabled for admin API")
	}

	handler.RegisterRoutes(router)
	return router
}

func NewServer(cfg config.AdminConfig, router http.Handler, limiter *ratelimit.Store, log logger.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		},
		limiter: limiter,
		logger:  log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "Admin server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown error: %w", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}
