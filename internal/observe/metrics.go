// Package observe provides application-wide observability primitives for
// Callyx: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Callyx metrics.
const meterName = "github.com/MrWong99/callyx"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TurnDuration tracks decision latency for one conversational turn,
	// from inbound event to computed directive.
	TurnDuration metric.Float64Histogram

	// Turns counts processed turns. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("confidence", ...)
	Turns metric.Int64Counter

	// Directives counts outbound directives by action. Use with attribute:
	//   attribute.String("action", ...)
	Directives metric.Int64Counter

	// CallOutcomes counts terminal results. Use with attribute:
	//   attribute.String("outcome", ...)
	CallOutcomes metric.Int64Counter

	// LowConfidence counts turns routed through the retry policy.
	LowConfidence metric.Int64Counter

	// SinkErrors counts failed result emissions to the backend.
	SinkErrors metric.Int64Counter

	// ActiveCalls tracks the number of live call sessions.
	ActiveCalls metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Turn
// decisions are purely computational, so the buckets skew low; the carrier's
// per-turn response deadline sits near the top of the range.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("callyx.turn.duration",
		metric.WithDescription("Latency of one turn decision, event to directive."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("callyx.turns",
		metric.WithDescription("Total processed turns by intent and confidence."),
	); err != nil {
		return nil, err
	}
	if met.Directives, err = m.Int64Counter("callyx.directives",
		metric.WithDescription("Total outbound directives by action."),
	); err != nil {
		return nil, err
	}
	if met.CallOutcomes, err = m.Int64Counter("callyx.call.outcomes",
		metric.WithDescription("Total terminal call results by outcome."),
	); err != nil {
		return nil, err
	}
	if met.LowConfidence, err = m.Int64Counter("callyx.turns.low_confidence",
		metric.WithDescription("Total turns routed through the retry policy."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("callyx.sink.errors",
		metric.WithDescription("Total failed result emissions to the backend."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("callyx.active_calls",
		metric.WithDescription("Number of live call sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("callyx.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordTurn records one processed turn with its decision latency.
func (m *Metrics) RecordTurn(ctx context.Context, intent, confidence string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("confidence", confidence),
	)
	m.Turns.Add(ctx, 1, attrs)
	m.TurnDuration.Record(ctx, seconds, attrs)
	if confidence == "low" {
		m.LowConfidence.Add(ctx, 1)
	}
}

// RecordDirective records an outbound directive by action.
func (m *Metrics) RecordDirective(ctx context.Context, action string) {
	m.Directives.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordOutcome records a terminal call result by outcome.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	m.CallOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
