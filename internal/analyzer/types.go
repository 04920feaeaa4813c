package analyzer

// Severity indicates the risk level of a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// FindingType identifies the category of a schema or workload finding.
type FindingType string

const (
	FindingLargeDocuments   FindingType = "LARGE_DOCUMENTS"
	FindingExtremeNesting   FindingType = "EXTREME_NESTING"
	FindingUnboundedArray   FindingType = "UNBOUNDED_ARRAY"
	FindingMultikeyCaution  FindingType = "MULTIKEY_CAUTION"
	FindingTypePolymorphism FindingType = "TYPE_POLYMORPHISM"
	FindingHighCardinality  FindingType = "HIGH_CARDINALITY_CANDIDATE"
	FindingLowCardinality   FindingType = "LOW_CARDINALITY_FIELD"
	FindingSchemaSkipped    FindingType = "SCHEMA_SKIPPED"
)

// Finding represents a single detection result for a collection or field.
type Finding struct {
	Type       FindingType `json:"type"`
	Severity   Severity    `json:"severity"`
	Database   string      `json:"database"`
	Collection string      `json:"collection"`
	Field      string      `json:"field,omitempty"`
	Message    string      `json:"message"`
}

var severityOrder = map[Severity]int{
	SeverityInfo:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// MaxSeverity returns the highest severity found in a list of findings.
// Returns SeverityInfo if the list is empty.
func MaxSeverity(findings []Finding) Severity {
	max := SeverityInfo
	for _, f := range findings {
		if severityOrder[f.Severity] > severityOrder[max] {
			max = f.Severity
		}
	}
	return max
}

// ExitCode maps severity to a process exit code.
func ExitCode(s Severity) int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}
