package models

// GroupReport lists, for one pipeline group, which alerts each pipeline would raise.
type GroupReport struct {
	PipelineGroup string           `json:"pipeline_group"`
	Pipelines     []PipelineReport `json:"pipelines"`
}

type PipelineReport struct {
	Pipeline string        `json:"pipeline"`
	Alerts   []AlertReport `json:"alerts,omitempty"`
}

// AlertReport groups the events that lead to the same action list.
type AlertReport struct {
	Actions []string `json:"actions"`
	Events  []string `json:"events"`
}

// SelfTestReport maps manager names to their group reports.
type SelfTestReport map[string][]GroupReport
