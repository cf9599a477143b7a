// Package middleware holds the gin middleware shared by the admin API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware reuses the caller's request id or assigns one, and puts
// it on the request context so handler logs carry it.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		statusCode := c.Writer.Status()
		fields := []interface{}{
			"status", statusCode,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", msg)
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			log.ErrorwCtx(ctx, "HTTP request", fields...)
		case c.FullPath() == "/health" || c.FullPath() == "/metrics":
			log.DebugwCtx(ctx, "HTTP request", fields...)
		default:
			log.InfowCtx(ctx, "HTTP request", fields...)
		}
	}
}

// RecoveryMiddleware answers a panicking handler with a 500. The stack goes to
// the log only.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"error", errors.RecoverPanic(recovered),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(errors.ErrInternal.Status, errors.ToErrorResponse(errors.ErrInternal))
	})
}
