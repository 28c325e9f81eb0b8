// Package observe provides application-wide observability primitives for
// promptwheel: OpenTelemetry metrics, tracing, and the Prometheus exporter
// bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all promptwheel metrics.
const meterName = "github.com/promptwheel/promptwheel"

// Metrics holds all OpenTelemetry metric instruments for the scroll engine.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// WordsMatched counts recognized words aligned to the script. Use with
	// attribute.String("session_id", ...).
	WordsMatched metric.Int64Counter

	// WordsUnmatched counts recognized words rejected as off-script noise.
	WordsUnmatched metric.Int64Counter

	// WordsSkipped accumulates script words silently advanced over when
	// the speaker jumps ahead.
	WordsSkipped metric.Int64Counter

	// FillerDetections counts filler-word detections. Use with
	// attribute.String("filler", ...).
	FillerDetections metric.Int64Counter

	// ScrollUpdates counts scroll position updates pushed to the view.
	ScrollUpdates metric.Int64Counter

	// ReportSaves counts session summary persistence attempts. Use with
	// attribute.String("status", ...).
	ReportSaves metric.Int64Counter

	// TickDuration tracks the latency of one full engine tick (all
	// components, synchronous).
	TickDuration metric.Float64Histogram

	// EventDuration tracks the latency of processing one recognized-word
	// event through the full fan-out.
	EventDuration metric.Float64Histogram

	// ActiveSessions tracks the number of live teleprompter sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// the engine's real-time loop, which must comfortably fit inside a 50 ms tick.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WordsMatched, err = m.Int64Counter("promptwheel.words.matched",
		metric.WithDescription("Recognized words aligned to the script."),
	); err != nil {
		return nil, err
	}
	if met.WordsUnmatched, err = m.Int64Counter("promptwheel.words.unmatched",
		metric.WithDescription("Recognized words rejected as off-script noise."),
	); err != nil {
		return nil, err
	}
	if met.WordsSkipped, err = m.Int64Counter("promptwheel.words.skipped",
		metric.WithDescription("Script words advanced over without being spoken."),
	); err != nil {
		return nil, err
	}
	if met.FillerDetections, err = m.Int64Counter("promptwheel.filler.detections",
		metric.WithDescription("Filler-word detections by token."),
	); err != nil {
		return nil, err
	}
	if met.ScrollUpdates, err = m.Int64Counter("promptwheel.scroll.updates",
		metric.WithDescription("Scroll position updates emitted to the view layer."),
	); err != nil {
		return nil, err
	}
	if met.ReportSaves, err = m.Int64Counter("promptwheel.report.saves",
		metric.WithDescription("Session summary persistence attempts by status."),
	); err != nil {
		return nil, err
	}

	if met.TickDuration, err = m.Float64Histogram("promptwheel.tick.duration",
		metric.WithDescription("Latency of one engine tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EventDuration, err = m.Float64Histogram("promptwheel.event.duration",
		metric.WithDescription("Latency of processing one recognized-word event."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("promptwheel.active_sessions",
		metric.WithDescription("Number of live teleprompter sessions."),
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

// RecordMatch records a matched word with its skip count.
func (m *Metrics) RecordMatch(ctx context.Context, sessionID string, skipped int) {
	attrs := metric.WithAttributes(Attr("session_id", sessionID))
	m.WordsMatched.Add(ctx, 1, attrs)
	if skipped > 0 {
		m.WordsSkipped.Add(ctx, int64(skipped), attrs)
	}
}

// RecordUnmatched records an off-script word.
func (m *Metrics) RecordUnmatched(ctx context.Context, sessionID string) {
	m.WordsUnmatched.Add(ctx, 1, metric.WithAttributes(Attr("session_id", sessionID)))
}

// RecordFiller records a filler detection for the given token.
func (m *Metrics) RecordFiller(ctx context.Context, token string) {
	m.FillerDetections.Add(ctx, 1, metric.WithAttributes(Attr("filler", token)))
}

// RecordReportSave records a session report persistence attempt.
func (m *Metrics) RecordReportSave(ctx context.Context, status string) {
	m.ReportSaves.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}
