// Package observe provides stenod's OpenTelemetry metrics instruments and a
// Prometheus exporter bridge so they can still be scraped via the standard
// /metrics endpoint.
//
// Tracing is intentionally not carried over from the donor's observe
// package: stenod has a single in-process request path per command (no
// cross-service spans to stitch together), so a trace exporter has nothing
// to attach to. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all stenod metrics.
const meterName = "github.com/jwulff/stenod"

// Metrics holds all OpenTelemetry metric instruments the daemon records.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// SegmentFinalizedDuration tracks the wall-clock span of a finalized
	// segment (EndedAt - StartedAt), by source.
	SegmentFinalizedDuration metric.Float64Histogram

	// CoordinatorRunDuration tracks the latency of one full summarize/
	// meeting-notes/topic-extraction coordinator run.
	CoordinatorRunDuration metric.Float64Histogram

	// SegmentsFinalized counts finalized segments, by source.
	SegmentsFinalized metric.Int64Counter

	// CoordinatorRuns counts coordinator runs, by outcome ("ok", "error").
	CoordinatorRuns metric.Int64Counter

	// RecognizerErrors counts non-cancellation recognizer errors, by source.
	RecognizerErrors metric.Int64Counter

	// ActiveSubscribers tracks the number of currently subscribed socket
	// clients.
	ActiveSubscribers metric.Int64UpDownCounter

	// EngineRecording tracks whether the engine is currently recording (0
	// or 1), exposed as a gauge so dashboards don't need to derive it from
	// status-changed events.
	EngineRecording metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time for the
	// loopback-only health/metrics server.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SegmentFinalizedDuration, err = m.Float64Histogram("stenod.segment.duration",
		metric.WithDescription("Wall-clock duration of a finalized segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CoordinatorRunDuration, err = m.Float64Histogram("stenod.coordinator.run.duration",
		metric.WithDescription("Latency of one rolling summary coordinator run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SegmentsFinalized, err = m.Int64Counter("stenod.segments.finalized",
		metric.WithDescription("Total finalized segments, by source."),
	); err != nil {
		return nil, err
	}
	if met.CoordinatorRuns, err = m.Int64Counter("stenod.coordinator.runs",
		metric.WithDescription("Total coordinator runs, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("stenod.recognizer.errors",
		metric.WithDescription("Total non-cancellation recognizer errors, by source."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSubscribers, err = m.Int64UpDownCounter("stenod.active_subscribers",
		metric.WithDescription("Number of currently subscribed socket clients."),
	); err != nil {
		return nil, err
	}
	if met.EngineRecording, err = m.Int64UpDownCounter("stenod.engine.recording",
		metric.WithDescription("Whether the engine is currently recording (0 or 1)."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("stenod.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSegmentFinalized records a finalized-segment duration and count
// increment with the standard "source" attribute.
func (m *Metrics) RecordSegmentFinalized(ctx context.Context, source string, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.SegmentFinalizedDuration.Record(ctx, durationSeconds, attrs)
	m.SegmentsFinalized.Add(ctx, 1, attrs)
}

// RecordCoordinatorRun records a coordinator run's duration and outcome.
func (m *Metrics) RecordCoordinatorRun(ctx context.Context, outcome string, durationSeconds float64) {
	m.CoordinatorRunDuration.Record(ctx, durationSeconds)
	m.CoordinatorRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRecognizerError records a non-cancellation recognizer error.
func (m *Metrics) RecordRecognizerError(ctx context.Context, source string) {
	m.RecognizerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
