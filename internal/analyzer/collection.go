package analyzer

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
	"github.com/ppiankov/mongolens/internal/schema"
	"github.com/ppiankov/mongolens/internal/telemetry"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/ppiankov/mongolens/internal/analyzer"

// NoteNoSamples is attached to results whose sample came back empty.
const NoteNoSamples = "No samples collected; skipping schema analysis"

// CollectionSource is the database collaborator a collection analysis reads from.
type CollectionSource interface {
	CollectionStats(ctx context.Context, dbName, collName string) (mongoinspect.CollStats, error)
	EstimatedDocumentCount(ctx context.Context, dbName, collName string) (int64, error)
	Sample(ctx context.Context, dbName, collName string, opts mongoinspect.SampleOptions) ([]bson.D, mongoinspect.SampleSource)
}

// Options configure one collection analysis.
type Options struct {
	SampleSize  int64
	MaxScan     int64
	Filter      bson.D // nil means no filter
	Seed        uint64
	Thresholds  Thresholds
	Logger      *slog.Logger
	Instruments *telemetry.Instruments
}

// Counts holds document counts. Documents is nil when the count is unavailable.
type Counts struct {
	Documents *int64 `json:"documents,omitempty"`
}

// IndexSize names one index and its size in bytes.
type IndexSize struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// CollectionResult is the analysis of one collection. It is built once by
// AnalyzeCollection and not modified afterwards.
type CollectionResult struct {
	Database        string                  `json:"db"`
	Collection      string                  `json:"collection"`
	Counts          Counts                  `json:"counts"`
	CollStats       *mongoinspect.CollStats `json:"collStats"`
	IndexSizes      map[string]int64        `json:"indexSizes"`
	LargestIndex    *IndexSize              `json:"largestIndex"`
	SampleSource    string                  `json:"sampleSource"`
	Schema          SchemaStats             `json:"schema"`
	Flags           Flags                   `json:"flags"`
	Recommendations []string                `json:"recommendations"`
	IndexInsights   IndexInsights           `json:"indexInsights"`
	Notes           []string                `json:"notes"`
}

// Namespace returns "db.collection".
func (r *CollectionResult) Namespace() string {
	return r.Database + "." + r.Collection
}

// Skipped reports whether schema analysis was skipped for lack of samples.
func (r *CollectionResult) Skipped() bool {
	return r.Schema.Sampled == 0
}

// AnalyzeCollection gathers stats, samples documents and runs the schema
// heuristics for one collection. Failures of individual steps become notes;
// an empty sample is a valid outcome that skips schema analysis.
func AnalyzeCollection(ctx context.Context, src CollectionSource, target mongoinspect.Target, opts Options) CollectionResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	inst := opts.Instruments
	if inst == nil {
		inst = telemetry.NoopInstruments()
	}
	logger = logger.With(slog.String("namespace", target.Namespace()))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "analyze collection")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.namespace", target.Database),
		attribute.String("db.collection.name", target.Collection),
	)
	start := time.Now()

	res := CollectionResult{
		Database:        target.Database,
		Collection:      target.Collection,
		IndexSizes:      map[string]int64{},
		Schema:          emptySchemaStats(),
		Flags:           emptyFlags(),
		IndexInsights:   emptyIndexInsights(),
		Recommendations: []string{},
		Notes:           []string{},
	}

	if cs, err := src.CollectionStats(ctx, target.Database, target.Collection); err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("collStats failed: %v", err))
		logger.Debug("collStats unavailable", slog.Any("error", err))
	} else {
		res.CollStats = &cs
		for name, size := range cs.IndexSizes {
			res.IndexSizes[name] = size
		}
		res.LargestIndex = largestIndex(cs.IndexSizes)
	}

	if n, err := src.EstimatedDocumentCount(ctx, target.Database, target.Collection); err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("estimated_document_count failed: %v", err))
		logger.Debug("estimated count unavailable", slog.Any("error", err))
	} else {
		res.Counts.Documents = &n
	}

	samples, source := src.Sample(ctx, target.Database, target.Collection, mongoinspect.SampleOptions{
		Size:    opts.SampleSize,
		MaxScan: opts.MaxScan,
		Filter:  opts.Filter,
		Rand:    collectionRand(opts.Seed, target),
	})
	res.SampleSource = string(source)
	span.SetAttributes(
		attribute.Int("mongolens.sample.size", len(samples)),
		attribute.String("mongolens.sample.source", string(source)),
	)
	inst.RecordSample(ctx, string(source), len(samples))

	if len(samples) == 0 {
		res.Notes = append(res.Notes, NoteNoSamples)
		span.SetStatus(codes.Ok, "no samples")
		logger.Info("no samples collected", slog.String("source", string(source)))
		inst.RecordAnalysis(ctx, msSince(start))
		return res
	}

	a := Evaluate(schema.Aggregate(samples), opts.Thresholds)
	res.Schema = a.Schema
	res.Flags = a.Flags
	res.IndexInsights = a.IndexInsights
	res.Recommendations = a.Recommendations

	logger.Debug("collection analyzed",
		slog.Int("sampled", len(samples)),
		slog.String("source", string(source)),
		slog.Int("fields", len(res.Schema.FieldPresence)),
		slog.Int("recommendations", len(res.Recommendations)),
	)
	inst.RecordAnalysis(ctx, msSince(start))
	return res
}

// AnalyzeError reports a collection analysis that aborted.
type AnalyzeError struct {
	Namespace string
	Cause     any
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyze failed for %s: %v", e.Namespace, e.Cause)
}

// TryAnalyzeCollection runs AnalyzeCollection and converts a panic into an
// *AnalyzeError so one collection can never abort its siblings.
func TryAnalyzeCollection(ctx context.Context, src CollectionSource, target mongoinspect.Target, opts Options) (res CollectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AnalyzeError{Namespace: target.Namespace(), Cause: r}
		}
	}()
	return AnalyzeCollection(ctx, src, target, opts), nil
}

// collectionRand derives a generator from the run seed and the namespace, so
// the scan-subsample path is reproducible regardless of collection order.
func collectionRand(seed uint64, target mongoinspect.Target) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(target.Namespace()))
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// largestIndex picks the biggest index; ties go to the lexically smallest name.
func largestIndex(sizes map[string]int64) *IndexSize {
	if len(sizes) == 0 {
		return nil
	}
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	best := IndexSize{Name: names[0], Size: sizes[names[0]]}
	for _, name := range names[1:] {
		if sizes[name] > best.Size {
			best = IndexSize{Name: name, Size: sizes[name]}
		}
	}
	return &best
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
