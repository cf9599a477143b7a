package topology

import "time"

type Pipeline struct {
	Name string `json:"name"`
}

// Group is a named set of pipelines as listed by the CI server configuration API.
type Group struct {
	Name      string     `json:"name"`
	Pipelines []Pipeline `json:"pipelines"`
}

// Snapshot is an immutable view of all groups at one point in time.
type Snapshot struct {
	Groups    []Group
	FetchedAt time.Time
}

func (s *Snapshot) Members(group string) []Pipeline {
	if s == nil {
		return nil
	}
	for _, g := range s.Groups {
		if g.Name == group {
			return g.Pipelines
		}
	}
	return nil
}

// Contains reports whether pipeline belongs to group. Unknown groups contain nothing.
func (s *Snapshot) Contains(group, pipeline string) bool {
	if pipeline == "" {
		return false
	}
	for _, p := range s.Members(group) {
		if p.Name == pipeline {
			return true
		}
	}
	return false
}

// PipelineNames lists every pipeline once, in group order.
func (s *Snapshot) PipelineNames() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, g := range s.Groups {
		for _, p := range g.Pipelines {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names
}

func (s *Snapshot) PipelineCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, g := range s.Groups {
		n += len(g.Pipelines)
	}
	return n
}
