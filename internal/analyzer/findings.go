package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Findings projects collection results onto typed findings, in result order.
// Within a collection, findings follow the recommendation topic order.
func Findings(results []CollectionResult) []Finding {
	var findings []Finding
	for i := range results {
		findings = append(findings, collectionFindings(&results[i])...)
	}
	return findings
}

func collectionFindings(r *CollectionResult) []Finding {
	mk := func(ft FindingType, sev Severity, field, msg string) Finding {
		return Finding{
			Type:       ft,
			Severity:   sev,
			Database:   r.Database,
			Collection: r.Collection,
			Field:      field,
			Message:    msg,
		}
	}

	if r.Skipped() {
		return []Finding{mk(FindingSchemaSkipped, SeverityInfo, "", "no documents could be sampled; schema analysis skipped")}
	}

	var findings []Finding
	s := &r.Schema
	if r.Flags.LargeDocuments {
		findings = append(findings, mk(FindingLargeDocuments, SeverityHigh, "",
			fmt.Sprintf("largest sampled document is %s (p95 %s); approaching the 16 MB BSON limit",
				humanize.IBytes(uint64(s.DocSizeBytes.Max)), humanize.IBytes(uint64(s.DocSizeBytes.P95)))))
	}
	if r.Flags.ExtremeNesting {
		findings = append(findings, mk(FindingExtremeNesting, SeverityMedium, "",
			fmt.Sprintf("documents nest up to %d levels deep (p95 %d)", s.NestingDepth.Max, s.NestingDepth.P95)))
	}
	for _, path := range r.Flags.UnboundedArrays {
		st := s.ArrayStats[path]
		findings = append(findings, mk(FindingUnboundedArray, SeverityMedium, path,
			fmt.Sprintf("array field %q has up to %d elements (p95 %d); risk of unbounded growth", path, st.Max, st.P95)))
	}
	for _, path := range sortedKeys(s.Polymorphism) {
		findings = append(findings, mk(FindingTypePolymorphism, SeverityLow, path,
			fmt.Sprintf("field %q holds multiple types: %s", path, formatTypeCounts(s.Polymorphism[path]))))
	}
	for _, path := range r.IndexInsights.HighCardinalityCandidates {
		c := s.Cardinality[path]
		findings = append(findings, mk(FindingHighCardinality, SeverityInfo, path,
			fmt.Sprintf("field %q has %s distinct values in %d documents; selective index candidate", path, distinctLabel(c), c.Present)))
	}
	for _, path := range r.IndexInsights.LowCardinalityWarnings {
		c := s.Cardinality[path]
		findings = append(findings, mk(FindingLowCardinality, SeverityInfo, path,
			fmt.Sprintf("field %q has only %d distinct values across %d documents; avoid as a leading index key", path, c.ApproxDistinct, c.Present)))
	}
	for _, path := range r.Flags.UnboundedArrays {
		findings = append(findings, mk(FindingMultikeyCaution, SeverityLow, path,
			fmt.Sprintf("indexing array field %q can cause multikey index explosion", path)))
	}
	return findings
}

// distinctLabel marks saturated counts as lower bounds.
func distinctLabel(c Cardinality) string {
	if c.Saturated {
		return fmt.Sprintf(">=%d", c.ApproxDistinct)
	}
	return fmt.Sprintf("%d", c.ApproxDistinct)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTypeCounts(tcs []TypeCount) string {
	parts := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		parts = append(parts, fmt.Sprintf("%s(%d)", tc.Type, tc.Count))
	}
	return strings.Join(parts, ", ")
}
