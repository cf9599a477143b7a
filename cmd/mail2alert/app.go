package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"mail2alert/internal/admin"
	"mail2alert/internal/broker"
	"mail2alert/internal/buildstate"
	"mail2alert/internal/config"
	"mail2alert/internal/constants"
	"mail2alert/internal/gocd"
	"mail2alert/internal/logger"
	"mail2alert/internal/mailmsg"
	"mail2alert/internal/notify"
	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/internal/smtpproxy"
	"mail2alert/internal/topology"
	"mail2alert/pkg/bootstrap"
	"mail2alert/pkg/circuitbreaker"
	"mail2alert/pkg/health"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
)

const (
	serviceName   = "mail2alert"
	shutdownGrace = 10 * time.Second
	// A topology older than this many TTLs marks the service degraded.
	staleTopologyFactor = 5
)

// ruleSet is what a hot reload needs to know about one manager.
type ruleSet struct {
	engine   *rules.Engine
	validate func([]rules.Rule) []rules.ValidationError
}

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client

	exprNS    *rules.ExprNamespace
	slack     router.SlackNotifier
	publisher router.DecisionPublisher

	managers     []router.Manager
	gocdManagers []*gocd.Manager
	topologyTTL  map[string]time.Duration
	ruleSetsMu   sync.Mutex
	ruleSets     map[string]ruleSet

	router      *router.Router
	forwarder   *smtpproxy.Forwarder
	smtpServer  *smtpproxy.Server
	adminServer *admin.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		ruleSets:    make(map[string]ruleSet),
		topologyTTL: make(map[string]time.Duration),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitTracing(serviceName); err != nil {
		return err
	}

	metrics.RegisterAll()

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	if a.Producer != nil && a.Config.Broker.Kafka.DecisionsEnabled {
		a.publisher = broker.NewDecisionPublisher(a.Producer, a.Config.Broker.Kafka.DecisionsTopic)
	}

	if a.Config.Slack.Enabled() {
		a.slack = notify.NewSlack(notify.SlackConfig{
			Token:  a.Config.Slack.Token,
			APIURL: a.Config.Slack.APIURL,
			RPS:    a.Config.Slack.RPS,
			Burst:  a.Config.Slack.Burst,
		}, a.Logger)
	} else {
		a.Logger.Warnw("No Slack token configured, Slack actions will be skipped")
	}

	if err := a.initManagers(ctx); err != nil {
		return err
	}

	smtpCfg := a.Config.SMTP
	a.forwarder = smtpproxy.NewForwarder(smtpproxy.ForwarderConfig{
		Remote:    smtpCfg.Remote,
		LocalName: smtpCfg.Domain,
		User:      smtpCfg.User,
		Password:  smtpCfg.Password,
		StartTLS:  smtpCfg.StartTLS,
	}, a.Logger)
	a.smtpServer = smtpproxy.NewServer(smtpproxy.Config{
		Listen:          smtpCfg.Listen,
		Domain:          smtpCfg.Domain,
		MaxMessageBytes: smtpCfg.MaxMessageBytes,
		MaxRecipients:   smtpCfg.MaxRecipients,
		ReadTimeout:     smtpCfg.ReadTimeout,
		WriteTimeout:    smtpCfg.WriteTimeout,
	}, a.router, a.forwarder, a.Logger)

	if a.Config.Admin.Enabled {
		a.initAdmin()
	}
	return nil
}

// initManagers builds the build-state store and every configured manager, then
// validates all rules. Any invalid rule aborts startup.
func (a *App) initManagers(ctx context.Context) error {
	if err := a.initBuildStateStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize build state store: %w", err)
	}

	exprNS, err := rules.NewExprNamespace()
	if err != nil {
		return fmt.Errorf("failed to initialize expression filters: %w", err)
	}
	a.exprNS = exprNS

	var problems []string
	for _, mc := range a.Config.Managers {
		onError := mc.ErrorPolicy(a.Config.Rules.OnError)
		delivery := router.NewDelivery(mc.Name, a.slack, a.publisher, a.Logger)

		switch mc.Type {
		case constants.ManagerTypeGoCD:
			m, err := a.newGoCDManager(mc, onError, delivery)
			if err != nil {
				return err
			}
			a.managers = append(a.managers, m)
			a.gocdManagers = append(a.gocdManagers, m)
			a.topologyTTL[mc.Name] = mc.TopologyTTL
			a.ruleSets[mc.Name] = ruleSet{
				engine: m.Engine(),
				validate: func(rs []rules.Rule) []rules.ValidationError {
					return rules.Validate(rs, gocd.Registry(&topology.Snapshot{}, exprNS))
				},
			}

		case constants.ManagerTypeMail:
			m := mailmsg.NewManager(mailmsg.ManagerConfig{
				Name:    mc.Name,
				Wanted:  mc.MessagesWeWant,
				Rules:   mc.Rules,
				OnError: onError,
			}, exprNS, delivery, a.Logger)
			a.managers = append(a.managers, m)
			a.ruleSets[mc.Name] = ruleSet{
				engine: m.Engine(),
				validate: func(rs []rules.Rule) []rules.ValidationError {
					return rules.Validate(rs, mailmsg.Registry(exprNS))
				},
			}

		default:
			return fmt.Errorf("manager %s: unknown type %q", mc.Name, mc.Type)
		}

		for _, verr := range a.ruleSets[mc.Name].validate(mc.Rules) {
			problems = append(problems, fmt.Sprintf("manager %s: %v", mc.Name, verr))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid rules:\n  %s", strings.Join(problems, "\n  "))
	}

	a.router = router.New(a.managers, a.Logger)
	return nil
}

func (a *App) newGoCDManager(mc config.ManagerConfig, onError string, delivery *router.Delivery) (*gocd.Manager, error) {
	clientCfg := gocd.ClientConfig{
		URL:      mc.URL,
		User:     mc.User,
		Password: mc.Password,
		Timeout:  mc.Timeout,
	}
	if cb := a.Config.CircuitBreaker; cb.Enabled {
		clientCfg.Breaker = circuitbreaker.Config{
			Name:                "gocd:" + mc.Name,
			MaxRequests:         cb.MaxRequests,
			Interval:            cb.Interval,
			Timeout:             cb.Timeout,
			ConsecutiveFailures: cb.ConsecutiveFailures,
		}
	}

	client, err := gocd.NewClient(clientCfg, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("manager %s: %w", mc.Name, err)
	}

	interval := mc.CCTrayInterval
	if interval < 0 {
		interval = 0
	}

	return gocd.NewManager(gocd.ManagerConfig{
		Name:           mc.Name,
		Wanted:         mc.MessagesWeWant,
		Rules:          mc.Rules,
		OnError:        onError,
		CCTrayInterval: interval,
	}, gocd.Dependencies{
		Topology: topology.NewCache(client, mc.TopologyTTL, a.Logger),
		Tracker:  buildstate.NewTracker(a.buildStateStore(mc.Name), a.Logger),
		CCTray:   client,
		Expr:     a.exprNS,
		Delivery: delivery,
		Logger:   a.Logger,
	}), nil
}

func (a *App) initBuildStateStore(ctx context.Context) error {
	if a.Config.BuildState.Store != constants.StoreTypeRedis {
		return nil
	}
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

// buildStateStore gives each manager its own key space so two GoCD servers with
// equally named pipelines do not share history.
func (a *App) buildStateStore(manager string) buildstate.Store {
	if a.redis == nil {
		return buildstate.NewMemoryStore()
	}
	return buildstate.NewRedisStore(a.redis, a.Config.BuildState.Redis.HashKey+":"+manager)
}

func (a *App) initAdmin() {
	registry := health.NewCheckerRegistry()
	if a.redis != nil {
		registry.Register(health.NewRedisChecker(a.redis))
	}
	registry.Register(health.NewTCPChecker("smtp_upstream", a.Config.SMTP.Remote))

	sources := make([]admin.GoCDSource, 0, len(a.gocdManagers))
	for _, m := range a.gocdManagers {
		sources = append(sources, m)
		registry.Register(topologyChecker(m, a.topologyTTL[m.Name()]))
	}

	handler := admin.NewHandler(a.router, sources, registry, a.Logger)
	limiter := admin.NewLimiter(a.Config.Admin)
	engine := admin.NewRouter(a.Config.Tracing.Enabled, limiter, handler, a.Logger)
	a.adminServer = admin.NewServer(a.Config.Admin, engine, limiter, a.Logger)
}

func topologyChecker(m *gocd.Manager, ttl time.Duration) health.Checker {
	return health.NewFuncChecker("topology:"+m.Name(), func(context.Context) error {
		snap := m.Topology().Current()
		if snap == nil || snap.FetchedAt.IsZero() {
			return health.Degraded(errors.New("topology not loaded yet"))
		}
		if age := time.Since(snap.FetchedAt); age > staleTopologyFactor*ttl {
			return health.Degraded(fmt.Errorf("topology is %s old", age.Round(time.Second)))
		}
		return nil
	})
}

// WatchConfig swaps the rules of running managers when the config file changes.
// Other settings need a restart.
func (a *App) WatchConfig(file string) {
	config.Watch(file, a.Logger, a.reloadRules)
}

func (a *App) reloadRules(cfg *config.Config) {
	a.ruleSetsMu.Lock()
	defer a.ruleSetsMu.Unlock()

	for _, mc := range cfg.Managers {
		rs, ok := a.ruleSets[mc.Name]
		if !ok {
			a.Logger.Warnw("New manager in configuration ignored until restart", "manager", mc.Name)
			continue
		}

		if verrs := rs.validate(mc.Rules); len(verrs) > 0 {
			for _, verr := range verrs {
				a.Logger.Errorw("Invalid rule in reloaded configuration", "manager", mc.Name, "error", verr)
			}
			continue
		}

		rs.engine.SetRules(rules.NormalizeEvents(mc.Rules))
		a.Logger.Infow("Reloaded rules", "manager", mc.Name, "rules", len(mc.Rules))
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, m := range a.gocdManagers {
		g.Go(func() error {
			m.Init(gCtx)
			return m.Run(gCtx)
		})
	}

	g.Go(func() error {
		return a.smtpServer.Run(gCtx)
	})

	if a.adminServer != nil {
		g.Go(func() error {
			return a.adminServer.Run(gCtx)
		})
	}

	if a.Consumer != nil && a.Config.Broker.Kafka.IntakeEnabled {
		topic := a.Config.Broker.Kafka.IntakeTopic
		handler := broker.RouteHandler(a.router, a.forwarder, a.Logger)
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting envelope intake consumer", "topic", topic)
			return a.Consumer.Consume(gCtx, topic, handler)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SelfTest builds the managers without any delivery side, loads every GoCD
// topology once and reports the routing table.
func (a *App) SelfTest(ctx context.Context) (models.SelfTestReport, error) {
	if err := a.initManagers(ctx); err != nil {
		return nil, err
	}

	for _, m := range a.gocdManagers {
		if err := m.Topology().Refresh(ctx); err != nil {
			return nil, fmt.Errorf("manager %s: failed to load topology: %w", m.Name(), err)
		}
	}

	return a.router.SelfTest(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		return a.dbConnector.ShutdownDatabases(a.redis)
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
