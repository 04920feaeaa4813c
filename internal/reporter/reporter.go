package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/ppiankov/mongolens/internal/analyzer"
	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
)

// Format specifies the output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported output format.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatSARIF}

// Metadata records how a run was configured.
type Metadata struct {
	Version    string   `json:"version"`
	Command    string   `json:"command,omitempty"`
	Databases  []string `json:"databases,omitempty"`
	SampleSize int64    `json:"sampleSize"`
	MaxScan    int64    `json:"maxDocsPerColl"`
	Seed       uint64   `json:"seed"`
	DocID      string   `json:"docId,omitempty"`
	Filter     string   `json:"filter,omitempty"`
	Lang       string   `json:"lang"`
}

// Report holds the structured analysis output.
type Report struct {
	GeneratedAt        time.Time                   `json:"generatedAt"`
	RunID              string                      `json:"runId"`
	Metadata           Metadata                    `json:"metadata"`
	Server             mongoinspect.ServerInfo     `json:"server"`
	Collections        []analyzer.CollectionResult `json:"collections"`
	URIRecommendations []string                    `json:"uriRecommendations"`
	Findings           []analyzer.Finding          `json:"findings"`
	Baseline           []analyzer.BaselineFinding  `json:"baseline,omitempty"`
	Summary            Summary                     `json:"summary"`
	MaxSeverity        analyzer.Severity           `json:"maxSeverity"`
	Errors             []string                    `json:"errors"`
}

// Summary counts findings by severity.
type Summary struct {
	Collections int `json:"collections"`
	Total       int `json:"total"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
	Info        int `json:"info"`
	Suppressed  int `json:"suppressed,omitempty"`
}

// NewReport builds a report from collection results and their findings.
// Either may be nil; the report always encodes empty lists, never null.
func NewReport(results []analyzer.CollectionResult, findings []analyzer.Finding) Report {
	if results == nil {
		results = []analyzer.CollectionResult{}
	}
	if findings == nil {
		findings = []analyzer.Finding{}
	}
	s := Summary{Collections: len(results)}
	for _, f := range findings {
		s.Total++
		switch f.Severity {
		case analyzer.SeverityHigh:
			s.High++
		case analyzer.SeverityMedium:
			s.Medium++
		case analyzer.SeverityLow:
			s.Low++
		case analyzer.SeverityInfo:
			s.Info++
		}
	}
	return Report{
		GeneratedAt:        time.Now().UTC(),
		RunID:              uuid.NewString(),
		Collections:        results,
		URIRecommendations: []string{},
		Findings:           findings,
		Summary:            s,
		MaxSeverity:        analyzer.MaxSeverity(findings),
		Errors:             []string{},
	}
}

// Write outputs the report in the given format.
func Write(w io.Writer, report *Report, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatMarkdown:
		return writeMarkdown(w, report, report.Metadata.Lang)
	case FormatSARIF:
		return writeSARIF(w, report)
	default:
		return writeText(w, report)
	}
}

func writeJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

var severityLabel = map[analyzer.Severity]string{
	analyzer.SeverityHigh:   "HIGH",
	analyzer.SeverityMedium: "MEDIUM",
	analyzer.SeverityLow:    "LOW",
	analyzer.SeverityInfo:   "INFO",
}

func writeText(w io.Writer, report *Report) error {
	if v := report.Server.Version; v != "" {
		fmt.Fprintf(w, "MongoDB %s\n", v)
	}
	if len(report.Collections) > 0 {
		fmt.Fprintf(w, "Collections analyzed: %d\n", len(report.Collections))
		for i := range report.Collections {
			writeCollectionLine(w, &report.Collections[i])
		}
		fmt.Fprintln(w)
	}

	if report.Summary.Total == 0 {
		fmt.Fprintln(w, "No findings.")
	} else {
		for _, f := range report.Findings {
			fmt.Fprintf(w, "[%s] %s: %s (%s)\n", severityLabel[f.Severity], f.Type, f.Message, location(&f))
		}
		fmt.Fprintf(w, "\nSummary: %d findings (high=%d medium=%d low=%d info=%d)\n",
			report.Summary.Total, report.Summary.High, report.Summary.Medium,
			report.Summary.Low, report.Summary.Info)
	}
	if report.Summary.Suppressed > 0 {
		fmt.Fprintf(w, "Suppressed: %d findings\n", report.Summary.Suppressed)
	}

	if len(report.Baseline) > 0 {
		counts := analyzer.CountBaseline(report.Baseline)
		fmt.Fprintf(w, "Baseline: new=%d resolved=%d unchanged=%d\n",
			counts[analyzer.StatusNew], counts[analyzer.StatusResolved], counts[analyzer.StatusUnchanged])
	}

	if len(report.URIRecommendations) > 0 {
		fmt.Fprintln(w, "\nURI recommendations:")
		for _, rec := range report.URIRecommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	return nil
}

func writeCollectionLine(w io.Writer, r *analyzer.CollectionResult) {
	docs := "n/a"
	if r.Counts.Documents != nil {
		docs = humanize.Comma(*r.Counts.Documents)
	}
	if r.Skipped() {
		fmt.Fprintf(w, "  %s  docs=%s  sampled=0 (%s)\n", r.Namespace(), docs, r.SampleSource)
		return
	}
	size := r.Schema.DocSizeBytes
	fmt.Fprintf(w, "  %s  docs=%s  sampled=%d (%s)  doc size max=%s p95=%s\n",
		r.Namespace(), docs, r.Schema.Sampled, r.SampleSource,
		humanize.IBytes(uint64(size.Max)), humanize.IBytes(uint64(size.P95)))
}

// location renders db.collection with the field appended when present.
func location(f *analyzer.Finding) string {
	loc := f.Database + "." + f.Collection
	if f.Field != "" {
		loc += "." + f.Field
	}
	return loc
}
