package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
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

func TestCallDurationObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CallDuration.Record(ctx, 4.2, metric.WithAttributes(
		attribute.String("outcome", "voicemail"),
	))
	m.CallDuration.Record(ctx, 187.5, metric.WithAttributes(
		attribute.String("outcome", "completed"),
	))

	rm := collect(t, reader)
	met := findMetric(rm, "vocero.call.duration")
	if met == nil {
		t.Fatal("metric vocero.call.duration not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	// One data point per outcome attribute set.
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2", len(hist.DataPoints))
	}
}

func TestDetectionEventsByKind(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, kind := range []string{"voicemail", "ivr", "human", "farewell", "voicemail"} {
		m.DetectionEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
		))
	}

	rm := collect(t, reader)
	met := findMetric(rm, "vocero.detection.events")
	if met == nil {
		t.Fatal("metric vocero.detection.events not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) != 4 {
		t.Fatalf("attribute sets = %d, want 4", len(sum.DataPoints))
	}

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if kind, ok := dp.Attributes.Value("kind"); ok && kind.AsString() == "voicemail" {
			if dp.Value != 2 {
				t.Errorf("voicemail count = %d, want 2", dp.Value)
			}
		}
	}
	if total != 5 {
		t.Errorf("total detections = %d, want 5", total)
	}
}

func TestActiveCallsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveCalls.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "vocero.active_calls")
	if met == nil {
		t.Fatal("metric vocero.active_calls not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active calls = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
