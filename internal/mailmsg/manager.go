package mailmsg

import (
	"context"

	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/pkg/logging"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
)

type ManagerConfig struct {
	Name    string
	Wanted  router.Criteria
	Rules   []rules.Rule
	OnError string
}

// Manager routes generic mail using the mail and expr filter namespaces.
type Manager struct {
	name     string
	wanted   router.Criteria
	engine   *rules.Engine
	registry *rules.Registry
	delivery *router.Delivery
	logger   logger.Logger
}

func NewManager(cfg ManagerConfig, exprNS *rules.ExprNamespace, delivery *router.Delivery, log logger.Logger) *Manager {
	return &Manager{
		name:     cfg.Name,
		wanted:   cfg.Wanted,
		engine:   rules.NewEngine(cfg.Name, rules.NormalizeEvents(cfg.Rules), cfg.OnError, log),
		registry: Registry(exprNS),
		delivery: delivery,
		logger:   log,
	}
}

// Registry lists the filter namespaces available to generic mail rules.
func Registry(exprNS *rules.ExprNamespace) *rules.Registry {
	registry := rules.NewRegistry().Register("mail", Namespace())
	if exprNS != nil {
		registry.Register("expr", exprNS.Namespace())
	}
	return registry
}

func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) Wants(env models.Envelope) bool {
	return m.wanted.Wants(env)
}

func (m *Manager) Engine() *rules.Engine {
	return m.engine
}

func (m *Manager) Process(ctx context.Context, env models.Envelope) (models.Envelope, error) {
	msg, err := Parse(logging.GetMessageID(ctx), env.Data)
	if err != nil {
		metrics.ParseFailuresTotal.WithLabelValues(m.name).Inc()
		m.logger.WarnwCtx(ctx, "Unable to parse message",
			"error", err,
		)
	}
	m.logger.InfowCtx(ctx, "Extracted message",
		"subject", msg.Subject,
		"from", msg.From,
	)

	raw, err := m.engine.Evaluate(ctx, msg, m.registry)
	if err != nil {
		return models.Envelope{}, err
	}

	return m.delivery.Deliver(ctx, msg, msg.Event, raw, env), nil
}

// SelfTest has nothing to enumerate for generic mail.
func (m *Manager) SelfTest(context.Context) ([]models.GroupReport, error) {
	return []models.GroupReport{}, nil
}
