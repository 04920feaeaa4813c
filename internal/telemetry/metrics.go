package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/ppiankov/mongolens"

// scanSource is the sample source reported when $sample was unavailable.
const scanSource = "scan"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	CollectionsAnalyzed metric.Int64Counter
	DocumentsSampled    metric.Int64Counter
	SamplingFallbacks   metric.Int64Counter
	AnalysisDuration    metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider,
// which is a noop until Init registers a real one.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	analyzed, _ := meter.Int64Counter("mongolens.collections.analyzed",
		metric.WithDescription("Collections analyzed, by sample source"),
	)
	sampled, _ := meter.Int64Counter("mongolens.documents.sampled",
		metric.WithDescription("Documents sampled for schema analysis"),
	)
	fallbacks, _ := meter.Int64Counter("mongolens.sampling.fallbacks",
		metric.WithDescription("Collections sampled by scan because $sample was unavailable"),
	)
	duration, _ := meter.Float64Histogram("mongolens.analysis.duration",
		metric.WithDescription("Per-collection analysis duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		CollectionsAnalyzed: analyzed,
		DocumentsSampled:    sampled,
		SamplingFallbacks:   fallbacks,
		AnalysisDuration:    duration,
	}
}

// RecordSample counts one sampled collection and its documents.
func (i *Instruments) RecordSample(ctx context.Context, source string, n int) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	i.CollectionsAnalyzed.Add(ctx, 1, attrs)
	i.DocumentsSampled.Add(ctx, int64(n), attrs)
	if source == scanSource {
		i.SamplingFallbacks.Add(ctx, 1)
	}
}

func (i *Instruments) RecordAnalysis(ctx context.Context, ms float64) {
	i.AnalysisDuration.Record(ctx, ms)
}
