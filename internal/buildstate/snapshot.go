package buildstate

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"mail2alert/pkg/models"
)

// StageStatus is the newest cctray entry for one pipeline stage.
type StageStatus struct {
	Pipeline        string
	Stage           string
	LastBuildStatus string
	LastBuildTime   string
}

func (s StageStatus) Key() string {
	return models.StateKey(s.Pipeline, s.Stage)
}

type cctrayProjects struct {
	XMLName  xml.Name        `xml:"Projects"`
	Projects []cctrayProject `xml:"Project"`
}

type cctrayProject struct {
	Name            string `xml:"name,attr"`
	LastBuildStatus string `xml:"lastBuildStatus,attr"`
	LastBuildTime   string `xml:"lastBuildTime,attr"`
}

// ParseCCTray reads a cctray document and keeps, per pipeline stage, the entry with the
// greatest lastBuildTime string. Job entries ("pipeline :: stage :: job") are ignored.
func ParseCCTray(r io.Reader) ([]StageStatus, error) {
	var doc cctrayProjects
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode cctray: %w", err)
	}

	newest := make(map[string]StageStatus)
	for _, p := range doc.Projects {
		parts := strings.Split(p.Name, "::")
		if len(parts) != 2 {
			continue
		}

		status := StageStatus{
			Pipeline:        strings.TrimSpace(parts[0]),
			Stage:           strings.TrimSpace(parts[1]),
			LastBuildStatus: p.LastBuildStatus,
			LastBuildTime:   p.LastBuildTime,
		}
		if status.Pipeline == "" || status.Stage == "" {
			continue
		}

		if prev, ok := newest[status.Key()]; !ok || status.LastBuildTime > prev.LastBuildTime {
			newest[status.Key()] = status
		}
	}

	out := make([]StageStatus, 0, len(newest))
	for _, s := range newest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}
