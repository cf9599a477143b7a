package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GinMiddleware traces admin requests. Probe endpoints are polled constantly
// and are left out.
func GinMiddleware(serviceName string, untraced ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(untraced))
	for _, path := range untraced {
		skip[path] = struct{}{}
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, ok := skip[r.URL.Path]
		return !ok
	}))
}
