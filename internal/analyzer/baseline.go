package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
)

// BaselineStatus indicates whether a finding is new, resolved, or unchanged.
type BaselineStatus string

const (
	StatusNew       BaselineStatus = "new"
	StatusResolved  BaselineStatus = "resolved"
	StatusUnchanged BaselineStatus = "unchanged"
)

// BaselineFinding wraps a Finding with its status against a baseline.
type BaselineFinding struct {
	Finding
	Status BaselineStatus `json:"status"`
}

// baselineReport is the part of a previous report.json needed for diffing.
type baselineReport struct {
	Findings []Finding `json:"findings"`
}

// LoadBaseline reads the findings of a previous JSON report.
func LoadBaseline(path string) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	var report baselineReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	return report.Findings, nil
}

// DiffBaseline tags current findings new or unchanged, then appends baseline
// findings that disappeared as resolved.
func DiffBaseline(current, baseline []Finding) []BaselineFinding {
	baselineSet := make(map[string]bool, len(baseline))
	for i := range baseline {
		baselineSet[findingKey(&baseline[i])] = true
	}
	currentSet := make(map[string]bool, len(current))
	for i := range current {
		currentSet[findingKey(&current[i])] = true
	}

	result := make([]BaselineFinding, 0, len(current)+len(baseline))
	for _, f := range current {
		status := StatusNew
		if baselineSet[findingKey(&f)] {
			status = StatusUnchanged
		}
		result = append(result, BaselineFinding{Finding: f, Status: status})
	}
	for _, f := range baseline {
		if !currentSet[findingKey(&f)] {
			result = append(result, BaselineFinding{Finding: f, Status: StatusResolved})
		}
	}
	return result
}

// CountBaseline tallies diff entries per status.
func CountBaseline(diff []BaselineFinding) map[BaselineStatus]int {
	counts := map[BaselineStatus]int{}
	for _, d := range diff {
		counts[d.Status]++
	}
	return counts
}

// findingKey identifies a finding by type and location, ignoring its message.
func findingKey(f *Finding) string {
	key := string(f.Type) + "|" + f.Database + "|" + f.Collection
	if f.Field != "" {
		key += "|" + f.Field
	}
	return key
}
