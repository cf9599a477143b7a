package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/internal/config"
	"mail2alert/internal/logger"
	"mail2alert/internal/router"
	"mail2alert/internal/rules"
	"mail2alert/pkg/health"
)

func mailRule(function string, args ...interface{}) rules.Rule {
	return rules.Rule{
		Filter:  rules.Filter{Function: function, Args: args},
		Actions: []string{"mailto:ops@example.com"},
	}
}

func testConfig(gocdURL string) *config.Config {
	return &config.Config{
		BuildState: config.BuildStateConfig{Store: "memory"},
		Rules:      config.RulesConfig{OnError: "skip_rule"},
		Managers: []config.ManagerConfig{
			{
				Name:           "gocd",
				Type:           "gocd",
				URL:            gocdURL,
				MessagesWeWant: router.Criteria{To: "gocd@example.com"},
				TopologyTTL:    time.Minute,
				Rules: []rules.Rule{{
					Filter:  rules.Filter{Function: "pipelines.in_group", Args: []interface{}{"g1"}},
					Actions: []string{"mailto:team@example.com"},
				}},
			},
			{
				Name:           "mail",
				Type:           "mail",
				MessagesWeWant: router.Criteria{To: "alerts@example.com"},
				Rules:          []rules.Rule{mailRule("mail.in_subject", "disk")},
			},
		},
	}
}

func TestInitManagersBuildsRouterInConfigOrder(t *testing.T) {
	app := NewApp(testConfig("http://gocd.invalid"), logger.NopLogger())
	require.NoError(t, app.initManagers(context.Background()))

	require.Len(t, app.router.Managers(), 2)
	assert.Equal(t, "gocd", app.router.Managers()[0].Name())
	assert.Equal(t, "mail", app.router.Managers()[1].Name())
	assert.Len(t, app.gocdManagers, 1)
}

func TestInitManagersRejectsInvalidRules(t *testing.T) {
	cfg := testConfig("http://gocd.invalid")
	cfg.Managers[1].Rules = []rules.Rule{mailRule("mail.no_such_function")}

	err := NewApp(cfg, logger.NopLogger()).initManagers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manager mail")
}

func TestReloadRulesSwapsOnlyValidRuleSets(t *testing.T) {
	app := NewApp(testConfig("http://gocd.invalid"), logger.NopLogger())
	require.NoError(t, app.initManagers(context.Background()))

	next := testConfig("http://gocd.invalid")
	next.Managers[1].Rules = []rules.Rule{mailRule("mail.in_subject", "disk"), mailRule("mail.from", "cron@example.com")}
	next.Managers[0].Rules = []rules.Rule{{Filter: rules.Filter{Function: "pipelines.bogus"}, Actions: []string{"mailto:x@y"}}}
	next.Managers = append(next.Managers, config.ManagerConfig{Name: "late", Type: "mail"})

	app.reloadRules(next)

	assert.Len(t, app.ruleSets["mail"].engine.Rules(), 2)
	assert.Equal(t, "pipelines.in_group", app.ruleSets["gocd"].engine.Rules()[0].Filter.Function)
	_, added := app.ruleSets["late"]
	assert.False(t, added)
}

func TestSelfTestLoadsTopology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/config/pipeline_groups":
			_, _ = w.Write([]byte(`[{"name":"g1","pipelines":[{"name":"p11"}]},{"name":"g2","pipelines":[{"name":"p21"}]}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	app := NewApp(testConfig(srv.URL), logger.NopLogger())
	report, err := app.SelfTest(context.Background())
	require.NoError(t, err)

	require.Len(t, report["gocd"], 2)
	g1, g2 := report["gocd"][0], report["gocd"][1]
	assert.Equal(t, "g1", g1.PipelineGroup)
	require.Len(t, g1.Pipelines[0].Alerts, 1)
	assert.Equal(t, []string{"mailto:team@example.com"}, g1.Pipelines[0].Alerts[0].Actions)
	assert.Len(t, g1.Pipelines[0].Alerts[0].Events, 5)
	assert.Empty(t, g2.Pipelines[0].Alerts)
	assert.Empty(t, report["mail"])
}

func TestTopologyCheckerIsDegradedUntilLoaded(t *testing.T) {
	app := NewApp(testConfig("http://gocd.invalid"), logger.NopLogger())
	require.NoError(t, app.initManagers(context.Background()))

	m := app.gocdManagers[0]
	check := topologyChecker(m, time.Minute)

	registry := health.NewCheckerRegistry()
	registry.Register(check)
	assert.Equal(t, health.StatusDegraded, registry.Check(context.Background()).Status)

	m.Topology().Set(nil)
	assert.NoError(t, check.Check(context.Background()))

	stale := health.NewCheckerRegistry()
	stale.Register(topologyChecker(m, -time.Second))
	assert.Equal(t, health.StatusDegraded, stale.Check(context.Background()).Status)
}
