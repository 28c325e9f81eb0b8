package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordMatch_CountsWordsAndSkips(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMatch(ctx, "s1", 0)
	m.RecordMatch(ctx, "s1", 2)
	m.RecordUnmatched(ctx, "s1")

	rm := collect(t, reader)

	matched := findMetric(rm, "promptwheel.words.matched")
	if matched == nil {
		t.Fatal("promptwheel.words.matched not found")
	}
	sum, ok := matched.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("words.matched data type = %T, want Sum[int64]", matched.Data)
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("words.matched = %d, want 2", got)
	}
	if v, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("session_id")); !ok || v.AsString() != "s1" {
		t.Errorf("session_id attribute = %q, want s1", v.AsString())
	}

	skipped := findMetric(rm, "promptwheel.words.skipped")
	if skipped == nil {
		t.Fatal("promptwheel.words.skipped not found")
	}
	sum, ok = skipped.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("words.skipped data type = %T, want Sum[int64]", skipped.Data)
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("words.skipped = %d, want 2", got)
	}

	unmatched := findMetric(rm, "promptwheel.words.unmatched")
	if unmatched == nil {
		t.Fatal("promptwheel.words.unmatched not found")
	}
}

func TestTickDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TickDuration.Record(ctx, 0.0004)
	m.TickDuration.Record(ctx, 0.002)

	rm := collect(t, reader)
	tick := findMetric(rm, "promptwheel.tick.duration")
	if tick == nil {
		t.Fatal("promptwheel.tick.duration not found")
	}
	hist, ok := tick.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("tick.duration data type = %T, want Histogram[float64]", tick.Data)
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("tick.duration count = %d, want 2", got)
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	g := findMetric(rm, "promptwheel.active_sessions")
	if g == nil {
		t.Fatal("promptwheel.active_sessions not found")
	}
	sum, ok := g.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("active_sessions data type = %T, want Sum[int64]", g.Data)
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}
}
