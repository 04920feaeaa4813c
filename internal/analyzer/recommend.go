package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/mongolens/internal/document"
	"github.com/ppiankov/mongolens/internal/schema"
	"github.com/ppiankov/mongolens/internal/stats"
)

// Thresholds control heuristic sensitivity. DefaultThresholds reproduces the
// values the reports have always used; changing them changes report output.
type Thresholds struct {
	LargeDocumentBytes          int     // max doc size >= this flags large documents
	MaxNestingDepth             int     // max depth > this flags extreme nesting
	UnboundedArrayMax           int     // max array length >= this flags unbounded
	UnboundedArrayP95           int     // p95 array length >= this flags unbounded
	MinPresence                 int     // absolute presence floor for index heuristics
	MinPresenceRatio            float64 // presence floor as a share of the sample
	HighCardinalityMinDistinct  int
	HighCardinalityRatio        float64 // distinct / present
	LowCardinalityMaxDistinct   int
	LowCardinalityPresenceRatio float64 // present / sampled
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeDocumentBytes:          12 * 1024 * 1024,
		MaxNestingDepth:             10,
		UnboundedArrayMax:           1000,
		UnboundedArrayP95:           500,
		MinPresence:                 30,
		MinPresenceRatio:            0.3,
		HighCardinalityMinDistinct:  30,
		HighCardinalityRatio:        0.5,
		LowCardinalityMaxDistinct:   5,
		LowCardinalityPresenceRatio: 0.5,
	}
}

// Unbounded reports whether an array's observed lengths suggest unbounded growth.
func (t Thresholds) Unbounded(a ArrayStats) bool {
	return a.Max >= t.UnboundedArrayMax || a.P95 >= t.UnboundedArrayP95
}

// minPresent is the presence count a scalar field needs before index
// heuristics consider it. The ratio part is truncated to an integer.
func (t Thresholds) minPresent(sampled int) int {
	return max(t.MinPresence, int(t.MinPresenceRatio*float64(sampled)))
}

// ArrayStats summarizes the observed lengths of one array field.
type ArrayStats struct {
	Max     int     `json:"max"`
	P95     int     `json:"p95"`
	Avg     float64 `json:"avg"`
	Samples int     `json:"samples"`
}

// TypeCount is one entry of a polymorphic field's type breakdown.
// It encodes as a [type, count] pair.
type TypeCount struct {
	Type  string
	Count int
}

func (tc TypeCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{tc.Type, tc.Count})
}

func (tc *TypeCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("type count: want [type, count], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &tc.Type); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &tc.Count)
}

// Cardinality describes approximate distinctness of one field.
// ApproxDistinct is exact while Saturated is false; once the per-field value
// cap is hit it is a lower bound and DistinctPerPresent understates reality.
type Cardinality struct {
	Present            int     `json:"present"`
	ApproxDistinct     int     `json:"approxDistinct"`
	DistinctPerPresent float64 `json:"distinctPerPresent"`
	PresenceRatio      float64 `json:"presenceRatio"`
	Saturated          bool    `json:"saturated"`
}

// SchemaStats is the schema block of a collection result.
type SchemaStats struct {
	Sampled       int                       `json:"sampled"`
	FieldPresence map[string]int            `json:"fieldPresence"`
	FieldTypes    map[string]map[string]int `json:"fieldTypes"`
	ArrayStats    map[string]ArrayStats     `json:"arrayStats"`
	DocSizeBytes  stats.Distribution        `json:"docSizeBytes"`
	NestingDepth  stats.Distribution        `json:"nestingDepth"`
	Polymorphism  map[string][]TypeCount    `json:"polymorphism"`
	Cardinality   map[string]Cardinality    `json:"cardinality"`
}

// Flags are the boolean schema warnings of a collection.
type Flags struct {
	UnboundedArrays []string `json:"unboundedArrays"`
	LargeDocuments  bool     `json:"largeDocuments"`
	ExtremeNesting  bool     `json:"extremeNesting"`
}

// IndexInsights lists fields by their suitability as leading index keys.
type IndexInsights struct {
	HighCardinalityCandidates []string `json:"highCardinalityCandidates"`
	LowCardinalityWarnings    []string `json:"lowCardinalityWarnings"`
}

// Assessment is everything the heuristics derive from one profile.
type Assessment struct {
	Schema          SchemaStats
	Flags           Flags
	IndexInsights   IndexInsights
	Recommendations []string
}

// Recommendation texts, in the order they are emitted.
const (
	RecLargeDocuments = "Document size approaches/exceeds limits. Consider Split/Reference/Bucket patterns"
	RecExtremeNesting = "Excessive nesting depth. Consider flattening or embedding only hot fields"
	RecUnbounded      = "Potential unbounded arrays detected. Consider Bucket/Subset/Outlier patterns"
	RecPolymorphism   = "Field type polymorphism detected. Normalize field types or split by schema variant"
	recHighPrefix     = "High-cardinality fields frequently present: consider indexing if used as filters -> "
	recLowPrefix      = "Low-cardinality fields with high presence: avoid leading index position -> "
	recMultikeyPrefix = "Caution indexing large arrays (multikey explosion): "
	RecValidate       = "Validate index effectiveness via $indexStats and query plans; prefer selective leading keys"
)

func emptySchemaStats() SchemaStats {
	return SchemaStats{
		FieldPresence: map[string]int{},
		FieldTypes:    map[string]map[string]int{},
		ArrayStats:    map[string]ArrayStats{},
		Polymorphism:  map[string][]TypeCount{},
		Cardinality:   map[string]Cardinality{},
	}
}

func emptyFlags() Flags {
	return Flags{UnboundedArrays: []string{}}
}

func emptyIndexInsights() IndexInsights {
	return IndexInsights{
		HighCardinalityCandidates: []string{},
		LowCardinalityWarnings:    []string{},
	}
}

// Evaluate derives distributions, flags, index insights and recommendations
// from a populated profile. An empty profile yields zeroed statistics, no flags
// and no recommendations.
func Evaluate(p *schema.Profile, t Thresholds) Assessment {
	a := Assessment{
		Schema:          emptySchemaStats(),
		Flags:           emptyFlags(),
		IndexInsights:   emptyIndexInsights(),
		Recommendations: []string{},
	}
	if p.Empty() {
		return a
	}

	s := &a.Schema
	s.Sampled = p.Sampled
	s.DocSizeBytes = stats.Summarize(p.DocSizes)
	s.NestingDepth = stats.Summarize(p.Depths)

	numSamples := max(1, p.Sampled)
	paths := p.Paths()
	for _, path := range paths {
		fs := p.Fields[path]
		s.FieldPresence[path] = fs.Present
		types := make(map[string]int, len(fs.Types))
		for tag, n := range fs.Types {
			types[tag] = n
		}
		s.FieldTypes[path] = types

		if fs.ArrayLengths != nil {
			d := stats.Summarize(fs.ArrayLengths)
			arr := ArrayStats{Max: d.Max, P95: d.P95, Avg: d.Avg, Samples: len(fs.ArrayLengths)}
			s.ArrayStats[path] = arr
			if t.Unbounded(arr) {
				a.Flags.UnboundedArrays = append(a.Flags.UnboundedArrays, path)
			}
		}

		if len(fs.Types) > 1 {
			s.Polymorphism[path] = typeBreakdown(fs.Types)
		}

		distinct := fs.Values.Len()
		c := Cardinality{
			Present:        fs.Present,
			ApproxDistinct: distinct,
			PresenceRatio:  float64(fs.Present) / float64(numSamples),
			Saturated:      fs.Values.AtCapacity(),
		}
		if fs.Present > 0 {
			c.DistinctPerPresent = float64(distinct) / float64(fs.Present)
		}
		s.Cardinality[path] = c

		if fs.HasType(document.TypeArray) || fs.HasType(document.TypeObject) {
			continue
		}
		if c.Present < t.minPresent(numSamples) {
			continue
		}
		if c.ApproxDistinct >= t.HighCardinalityMinDistinct && c.DistinctPerPresent >= t.HighCardinalityRatio {
			a.IndexInsights.HighCardinalityCandidates = append(a.IndexInsights.HighCardinalityCandidates, path)
		}
		if c.ApproxDistinct <= t.LowCardinalityMaxDistinct && c.PresenceRatio >= t.LowCardinalityPresenceRatio {
			a.IndexInsights.LowCardinalityWarnings = append(a.IndexInsights.LowCardinalityWarnings, path)
		}
	}

	a.Flags.LargeDocuments = s.DocSizeBytes.Max >= t.LargeDocumentBytes
	a.Flags.ExtremeNesting = s.NestingDepth.Max > t.MaxNestingDepth
	a.Recommendations = recommendations(a)
	return a
}

// typeBreakdown orders a histogram by count descending, then type name.
func typeBreakdown(types map[string]int) []TypeCount {
	out := make([]TypeCount, 0, len(types))
	for tag, n := range types {
		out = append(out, TypeCount{Type: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// recommendations renders advisory text in fixed topic order. Field lists are
// already sorted because Evaluate walks paths in sorted order.
func recommendations(a Assessment) []string {
	var recs []string
	if a.Flags.LargeDocuments {
		recs = append(recs, RecLargeDocuments)
	}
	if a.Flags.ExtremeNesting {
		recs = append(recs, RecExtremeNesting)
	}
	if len(a.Flags.UnboundedArrays) > 0 {
		recs = append(recs, RecUnbounded)
	}
	if len(a.Schema.Polymorphism) > 0 {
		recs = append(recs, RecPolymorphism)
	}
	if hi := a.IndexInsights.HighCardinalityCandidates; len(hi) > 0 {
		recs = append(recs, recHighPrefix+strings.Join(hi, ", "))
	}
	if lo := a.IndexInsights.LowCardinalityWarnings; len(lo) > 0 {
		recs = append(recs, recLowPrefix+strings.Join(lo, ", "))
	}
	for _, path := range a.Flags.UnboundedArrays {
		recs = append(recs, recMultikeyPrefix+path)
	}
	return append(recs, RecValidate)
}
