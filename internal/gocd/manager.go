package gocd

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"mail2alert/internal/buildstate"
	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/internal/topology"
	"mail2alert/pkg/logging"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/tracing"
)

type ManagerConfig struct {
	Name    string
	Wanted  router.Criteria
	Rules   []rules.Rule
	OnError string
	// CCTrayInterval is how often build status is re-read; zero reads it only at Init.
	CCTrayInterval time.Duration
}

type CCTraySource interface {
	FetchCCTray(ctx context.Context) ([]buildstate.StageStatus, error)
}

type Dependencies struct {
	Topology *topology.Cache
	Tracker  *buildstate.Tracker
	CCTray   CCTraySource
	Expr     *rules.ExprNamespace
	Delivery *router.Delivery
	Logger   logger.Logger
}

// Manager handles GoCD notification mail for one server.
type Manager struct {
	name           string
	wanted         router.Criteria
	engine         *rules.Engine
	topology       *topology.Cache
	tracker        *buildstate.Tracker
	cctray         CCTraySource
	cctrayInterval time.Duration
	exprNS         *rules.ExprNamespace
	delivery       *router.Delivery
	logger         logger.Logger
}

func NewManager(cfg ManagerConfig, deps Dependencies) *Manager {
	deps.Logger.Infow("Started manager",
		"manager", cfg.Name,
		"type", "gocd",
		"rules", len(cfg.Rules),
	)
	return &Manager{
		name:           cfg.Name,
		wanted:         cfg.Wanted,
		engine:         rules.NewEngine(cfg.Name, rules.NormalizeEvents(cfg.Rules), cfg.OnError, deps.Logger),
		topology:       deps.Topology,
		tracker:        deps.Tracker,
		cctray:         deps.CCTray,
		cctrayInterval: cfg.CCTrayInterval,
		exprNS:         deps.Expr,
		delivery:       deps.Delivery,
		logger:         deps.Logger,
	}
}

func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) Engine() *rules.Engine {
	return m.engine
}

func (m *Manager) Topology() *topology.Cache {
	return m.topology
}

func (m *Manager) Tracker() *buildstate.Tracker {
	return m.tracker
}

// Registry builds the filter namespaces for one evaluation over snap.
func (m *Manager) Registry(snap *topology.Snapshot) *rules.Registry {
	return Registry(snap, m.exprNS)
}

func Registry(snap *topology.Snapshot, exprNS *rules.ExprNamespace) *rules.Registry {
	registry := rules.NewRegistry().Register("pipelines", PipelinesNamespace(snap))
	if exprNS != nil {
		registry.Register("expr", exprNS.Namespace())
	}
	return registry
}

func (m *Manager) Wants(env models.Envelope) bool {
	return m.wanted.Wants(env)
}

func (m *Manager) Process(ctx context.Context, env models.Envelope) (models.Envelope, error) {
	ctx, span := tracing.GetTracer("gocd").Start(ctx, "gocd.process")
	defer span.End()

	msg, err := Extract(logging.GetMessageID(ctx), env.Data)
	if err != nil {
		metrics.ParseFailuresTotal.WithLabelValues(m.name).Inc()
		m.logger.WarnwCtx(ctx, "Unable to fully parse message",
			"subject", msg.Subject,
			"error", err,
		)
	}

	literal := msg.Event
	m.tracker.Correct(ctx, msg)
	msg.AlertLevel = models.AlertLevelForEvent(msg.Event)

	m.logger.InfowCtx(ctx, "Extracted message",
		"pipeline", msg.Pipeline,
		"stage", msg.Stage,
		"event", msg.Event.String(),
		"literal_event", literal.String(),
	)

	raw, err := m.engine.Evaluate(ctx, msg, m.Registry(m.topology.Get()))
	if err != nil {
		return models.Envelope{}, err
	}

	return m.delivery.Deliver(ctx, msg, literal, raw, env), nil
}

// Init loads the topology and seeds build state once. Failures are logged; the
// manager still works with an empty topology and no history.
func (m *Manager) Init(ctx context.Context) {
	if err := m.topology.Refresh(ctx); err != nil {
		m.logger.WarnwCtx(ctx, "Initial topology fetch failed", "manager", m.name, "error", err)
	}
	_ = m.syncBuildState(ctx)
}

// Run keeps the topology and build state fresh until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.topology.Run(ctx)
	})

	if m.cctrayInterval > 0 && m.cctray != nil {
		g.Go(func() error {
			return m.runBuildStateSync(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) runBuildStateSync(ctx context.Context) error {
	ticker := time.NewTicker(m.cctrayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = m.syncBuildState(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) syncBuildState(ctx context.Context) error {
	if m.cctray == nil {
		return nil
	}

	statuses, err := m.cctray.FetchCCTray(ctx)
	if err != nil {
		m.logger.WarnwCtx(ctx, "Unable to fetch cctray", "manager", m.name, "error", err)
		return err
	}

	applied := m.tracker.IngestSnapshot(ctx, statuses)
	m.logger.DebugwCtx(ctx, "Ingested cctray snapshot",
		"manager", m.name,
		"entries", len(statuses),
		"applied", applied,
	)
	return nil
}

// Validate checks the rules against this manager's namespaces.
func (m *Manager) Validate() []rules.ValidationError {
	return rules.Validate(m.engine.Rules(), m.Registry(&topology.Snapshot{}))
}
