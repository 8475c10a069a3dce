// Package observe provides application-wide observability primitives for
// Deep-Focus: OpenTelemetry metrics, structured logging, and HTTP middleware
// that ties them together.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Deep-Focus metrics.
const meterName = "github.com/deepfocus-ai/deepfocus"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// BackendDuration tracks per-attempt inference latency. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	BackendDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool handler execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// LibraryIndexDuration tracks full corpus index runs.
	LibraryIndexDuration metric.Float64Histogram

	// --- Counters ---

	// RouteDecisions counts routing decisions. Use with attributes:
	//   attribute.String("path", ...), attribute.String("reason", ...)
	RouteDecisions metric.Int64Counter

	// LocalOutcomes counts local-attempt audit outcomes. Use with attribute:
	//   attribute.String("outcome", ...)
	LocalOutcomes metric.Int64Counter

	// Responses counts final responses by originating tier. Use with attribute:
	//   attribute.String("source", "local"|"cloud")
	// The on-device ratio the project optimises for is derived from this.
	Responses metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// LibrarySearches counts retrieval queries. Use with attribute:
	//   attribute.String("mode", "semantic"|"keyword")
	LibrarySearches metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts true backend failures (timeouts, API errors).
	// Confidence rejections are outcomes, not errors, and are never counted
	// here. Use with attributes:
	//   attribute.String("source", ...), attribute.String("kind", ...)
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveRequests tracks the number of chat requests currently in flight.
	ActiveRequests metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) spanning
// sub-second on-device attempts up to slow cloud round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.BackendDuration, err = m.Float64Histogram("deepfocus.backend.duration",
		metric.WithDescription("Latency of one inference attempt by source and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("deepfocus.tool_execution.duration",
		metric.WithDescription("Latency of tool handler execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LibraryIndexDuration, err = m.Float64Histogram("deepfocus.library.index.duration",
		metric.WithDescription("Duration of full library index runs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RouteDecisions, err = m.Int64Counter("deepfocus.route.decisions",
		metric.WithDescription("Total routing decisions by path and reason."),
	); err != nil {
		return nil, err
	}
	if met.LocalOutcomes, err = m.Int64Counter("deepfocus.local.outcomes",
		metric.WithDescription("Local-attempt audit outcomes by outcome code."),
	); err != nil {
		return nil, err
	}
	if met.Responses, err = m.Int64Counter("deepfocus.responses",
		metric.WithDescription("Final responses by originating tier."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("deepfocus.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.LibrarySearches, err = m.Int64Counter("deepfocus.library.searches",
		metric.WithDescription("Retrieval queries by search mode."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.BackendErrors, err = m.Int64Counter("deepfocus.backend.errors",
		metric.WithDescription("True backend failures by source and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRequests, err = m.Int64UpDownCounter("deepfocus.requests.active",
		metric.WithDescription("Chat requests currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("deepfocus.http.request.duration",
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

// RecordRouteDecision is a convenience method that records a routing decision
// counter increment with the standard attribute set.
func (m *Metrics) RecordRouteDecision(ctx context.Context, path, reason string) {
	m.RouteDecisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("reason", reason),
		),
	)
}

// RecordLocalOutcome is a convenience method that records one local-attempt
// audit outcome.
func (m *Metrics) RecordLocalOutcome(ctx context.Context, outcome string) {
	m.LocalOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordBackendAttempt is a convenience method that records one inference
// attempt's latency with the standard attribute set.
func (m *Metrics) RecordBackendAttempt(ctx context.Context, source string, elapsed time.Duration, status string) {
	m.BackendDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordBackendError is a convenience method that records a true backend
// failure counter increment.
func (m *Metrics) RecordBackendError(ctx context.Context, source, kind string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("kind", kind),
		),
	)
}

// RecordResponse is a convenience method that records a final response
// counter increment by originating tier.
func (m *Metrics) RecordResponse(ctx context.Context, source string) {
	m.Responses.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordLibrarySearch is a convenience method that records a retrieval query
// counter increment by search mode.
func (m *Metrics) RecordLibrarySearch(ctx context.Context, mode string) {
	m.LibrarySearches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}
