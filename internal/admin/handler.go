// Package admin serves the operational HTTP API: health, metrics, the routing
// self-test and views of the cached topology and build state.
package admin

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mail2alert/internal/buildstate"
	"mail2alert/internal/logger"
	"mail2alert/internal/topology"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/health"
	"mail2alert/pkg/models"
)

type SelfTester interface {
	SelfTest(ctx context.Context) (models.SelfTestReport, error)
}

// GoCDSource is a manager that owns a topology cache and a build-state tracker.
type GoCDSource interface {
	Name() string
	Topology() *topology.Cache
	Tracker() *buildstate.Tracker
}

type Handler struct {
	selfTester SelfTester
	sources    []GoCDSource
	health     *health.CheckerRegistry
	logger     logger.Logger
}

func NewHandler(selfTester SelfTester, sources []GoCDSource, registry *health.CheckerRegistry, log logger.Logger) *Handler {
	return &Handler{
		selfTester: selfTester,
		sources:    sources,
		health:     registry,
		logger:     log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/selftest", h.SelfTest)

	topo := router.Group("/topology")
	{
		topo.GET("", h.Topology)
		topo.POST("/refresh", h.RefreshTopology)
	}

	router.GET("/buildstate", h.BuildState)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	statusCode := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, report)
}

// SelfTest runs every rule against every known pipeline and event.
func (h *Handler) SelfTest(c *gin.Context) {
	report, err := h.selfTester.SelfTest(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type topologyView struct {
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
	Groups    []topology.Group `json:"groups"`
}

func (h *Handler) Topology(c *gin.Context) {
	out := make(map[string]topologyView, len(h.sources))
	for _, src := range h.sources {
		snap := src.Topology().Current()
		view := topologyView{Groups: []topology.Group{}}
		if snap != nil {
			if snap.Groups != nil {
				view.Groups = snap.Groups
			}
			if !snap.FetchedAt.IsZero() {
				fetched := snap.FetchedAt
				view.FetchedAt = &fetched
			}
		}
		out[src.Name()] = view
	}
	c.JSON(http.StatusOK, out)
}

// RefreshTopology fetches every manager's topology now. One failure fails the
// request; the other caches are still refreshed.
func (h *Handler) RefreshTopology(c *gin.Context) {
	ctx := c.Request.Context()
	counts := make(map[string]int, len(h.sources))
	var firstErr error
	for _, src := range h.sources {
		if err := src.Topology().Refresh(ctx); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		counts[src.Name()] = src.Topology().Current().PipelineCount()
	}

	if firstErr != nil {
		h.handleError(c, firstErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pipelines": counts})
}

type stageState struct {
	Stage string `json:"stage"`
	State string `json:"state"`
}

func (h *Handler) BuildState(c *gin.Context) {
	ctx := c.Request.Context()
	out := make(map[string][]stageState, len(h.sources))
	for _, src := range h.sources {
		states, err := src.Tracker().Snapshot(ctx)
		if err != nil {
			h.handleError(c, errors.ErrTransport.WithMessage("build state of %s unavailable", src.Name()).WithCause(err))
			return
		}

		list := make([]stageState, 0, len(states))
		for key, state := range states {
			list = append(list, stageState{Stage: key, State: state.String()})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Stage < list[j].Stage })
		out[src.Name()] = list
	}
	c.JSON(http.StatusOK, out)
}
