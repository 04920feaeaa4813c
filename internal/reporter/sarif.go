package reporter

import (
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/ppiankov/mongolens/internal/analyzer"
)

// FormatSARIF is the SARIF output format constant.
const FormatSARIF Format = "sarif"

// SARIF v2.1.0 types, the subset GitHub code scanning reads.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string                     `json:"name"`
	Version        string                     `json:"version,omitempty"`
	InformationURI string                     `json:"informationUri,omitempty"`
	Rules          []sarifReportingDescriptor `json:"rules,omitempty"`
}

type sarifReportingDescriptor struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

// sarifRules defines the SARIF rule descriptors for each finding type.
var sarifRules = map[analyzer.FindingType]sarifReportingDescriptor{
	analyzer.FindingLargeDocuments:   {ID: "LARGE_DOCUMENTS", ShortDescription: sarifMessage{Text: "Sampled documents approach the BSON size limit"}, DefaultConfig: sarifDefaultConfig{Level: "error"}},
	analyzer.FindingExtremeNesting:   {ID: "EXTREME_NESTING", ShortDescription: sarifMessage{Text: "Documents are nested unusually deep"}, DefaultConfig: sarifDefaultConfig{Level: "warning"}},
	analyzer.FindingUnboundedArray:   {ID: "UNBOUNDED_ARRAY", ShortDescription: sarifMessage{Text: "Array field may grow without bound"}, DefaultConfig: sarifDefaultConfig{Level: "warning"}},
	analyzer.FindingMultikeyCaution:  {ID: "MULTIKEY_CAUTION", ShortDescription: sarifMessage{Text: "Indexing a large array creates many index entries"}, DefaultConfig: sarifDefaultConfig{Level: "note"}},
	analyzer.FindingTypePolymorphism: {ID: "TYPE_POLYMORPHISM", ShortDescription: sarifMessage{Text: "Field holds values of more than one type"}, DefaultConfig: sarifDefaultConfig{Level: "note"}},
	analyzer.FindingHighCardinality:  {ID: "HIGH_CARDINALITY_CANDIDATE", ShortDescription: sarifMessage{Text: "Selective field suitable as a leading index key"}, DefaultConfig: sarifDefaultConfig{Level: "none"}},
	analyzer.FindingLowCardinality:   {ID: "LOW_CARDINALITY_FIELD", ShortDescription: sarifMessage{Text: "Field has few distinct values; avoid as a leading index key"}, DefaultConfig: sarifDefaultConfig{Level: "none"}},
	analyzer.FindingSchemaSkipped:    {ID: "SCHEMA_SKIPPED", ShortDescription: sarifMessage{Text: "No documents could be sampled"}, DefaultConfig: sarifDefaultConfig{Level: "none"}},
}

func writeSARIF(w io.Writer, report *Report) error {
	// Collect unique rules used in findings.
	usedRules := make(map[analyzer.FindingType]bool)
	for _, f := range report.Findings {
		usedRules[f.Type] = true
	}
	var rules []sarifReportingDescriptor
	for ft := range usedRules {
		if r, ok := sarifRules[ft]; ok {
			rules = append(rules, r)
		}
	}
	slices.SortFunc(rules, func(a, b sarifReportingDescriptor) int {
		return strings.Compare(a.ID, b.ID)
	})

	// Build results.
	results := make([]sarifResult, 0, len(report.Findings))
	for _, f := range report.Findings {
		r := sarifResult{
			RuleID:  string(f.Type),
			Level:   severityToSARIFLevel(f.Severity),
			Message: sarifMessage{Text: f.Message},
		}

		// Logical location is database.collection[.field].
		loc := sarifLocation{
			LogicalLocations: []sarifLogicalLocation{{
				FullyQualifiedName: location(&f),
				Kind:               "object",
			}},
		}
		r.Locations = []sarifLocation{loc}
		results = append(results, r)
	}

	log := sarifLog{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:           "mongolens",
					Version:        report.Metadata.Version,
					InformationURI: "https://github.com/ppiankov/mongolens",
					Rules:          rules,
				},
			},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func severityToSARIFLevel(s analyzer.Severity) string {
	switch s {
	case analyzer.SeverityHigh:
		return "error"
	case analyzer.SeverityMedium:
		return "warning"
	case analyzer.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
