package gocd

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"mail2alert/internal/rules"
	"mail2alert/internal/topology"
	"mail2alert/pkg/models"
)

// SelfTest reports, for every known pipeline, which action lists each event
// would trigger. A cold cache is filled synchronously first.
func (m *Manager) SelfTest(ctx context.Context) ([]models.GroupReport, error) {
	snap := m.topology.Current()
	if len(snap.Groups) == 0 {
		if err := m.topology.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("self-test needs the pipeline topology: %w", err)
		}
		snap = m.topology.Current()
	}

	return BuildReport(ctx, snap, m.engine.Rules(), m.Registry(snap))
}

// BuildReport runs every rule against a synthetic message for each pipeline and
// event. Alerts are grouped by identical action lists; a pipeline listed in
// several groups gets the same alerts in each.
func BuildReport(ctx context.Context, snap *topology.Snapshot, ruleList []rules.Rule, registry *rules.Registry) ([]models.GroupReport, error) {
	report := make([]models.GroupReport, len(snap.Groups))
	for i, g := range snap.Groups {
		report[i] = models.GroupReport{
			PipelineGroup: g.Name,
			Pipelines:     make([]models.PipelineReport, len(g.Pipelines)),
		}
		for j, p := range g.Pipelines {
			report[i].Pipelines[j] = models.PipelineReport{Pipeline: p.Name}
		}
	}

	entries := make(map[string][]*models.PipelineReport)
	for i := range report {
		for j := range report[i].Pipelines {
			entry := &report[i].Pipelines[j]
			entries[entry.Pipeline] = append(entries[entry.Pipeline], entry)
		}
	}

	for _, pipeline := range snap.PipelineNames() {
		for _, event := range models.Events() {
			msg := syntheticMessage(pipeline, event)
			for _, rule := range ruleList {
				matched, err := rules.Check(ctx, rule, msg, registry)
				if err != nil {
					return nil, fmt.Errorf("rule %q: %w", rule.Label(), err)
				}
				if !matched {
					continue
				}
				for _, entry := range entries[pipeline] {
					addAlert(entry, rule.Actions, event)
				}
			}
		}
	}

	for i := range report {
		for j := range report[i].Pipelines {
			for k := range report[i].Pipelines[j].Alerts {
				sort.Strings(report[i].Pipelines[j].Alerts[k].Events)
			}
		}
	}
	return report, nil
}

func addAlert(entry *models.PipelineReport, actions []string, event models.Event) {
	idx := slices.IndexFunc(entry.Alerts, func(a models.AlertReport) bool {
		return slices.Equal(a.Actions, actions)
	})
	if idx < 0 {
		entry.Alerts = append(entry.Alerts, models.AlertReport{
			Actions: slices.Clone(actions),
			Events:  []string{},
		})
		idx = len(entry.Alerts) - 1
	}

	alert := &entry.Alerts[idx]
	if !slices.Contains(alert.Events, event.String()) {
		alert.Events = append(alert.Events, event.String())
	}
}

func syntheticMessage(pipeline string, event models.Event) *models.Message {
	phrase := ""
	for p, e := range phraseEvents {
		if e == event {
			phrase = p
			break
		}
	}
	msg := models.NewMessage("selftest", "", fmt.Sprintf("Stage [%s/0/selftest/0] %s", pipeline, phrase), func() string { return "" })
	msg.Pipeline = pipeline
	msg.Stage = "selftest"
	msg.Event = event
	msg.AlertLevel = models.AlertLevelForEvent(event)
	return msg
}
