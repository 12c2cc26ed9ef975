// Package observe provides application-wide observability primitives for
// Vocero: OpenTelemetry metrics, tracing helpers, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vocero metrics.
const meterName = "github.com/vocero-ai/vocero"

// Metrics holds all OpenTelemetry metric instruments for the call bridge.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CallDuration tracks full call duration in seconds. Use with attribute:
	//   attribute.String("outcome", ...)
	CallDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// CallsStarted counts inbound calls accepted by the gateway. Use with
	// attribute: attribute.String("client_key", ...)
	CallsStarted metric.Int64Counter

	// DetectionEvents counts state-machine detections. Use with attribute:
	//   attribute.String("kind", "voicemail"|"ivr"|"human"|"farewell")
	DetectionEvents metric.Int64Counter

	// DTMFDigitsSent counts menu digits actually pressed.
	DTMFDigitsSent metric.Int64Counter

	// ActuatorErrors counts failed telephony control calls. Use with
	// attribute: attribute.String("op", "dtmf"|"hangup")
	ActuatorErrors metric.Int64Counter

	// PersistFailures counts call records lost to a failed save.
	PersistFailures metric.Int64Counter

	// UpstreamErrors counts AI speech-session failures. Use with attribute:
	//   attribute.String("stage", "connect"|"stream")
	UpstreamErrors metric.Int64Counter

	// ActiveCalls tracks the number of live call sessions.
	ActiveCalls metric.Int64UpDownCounter
}

// callDurationBuckets defines histogram boundaries (in seconds) for whole
// phone calls: a voicemail hangs up within seconds, a good sales
// conversation runs minutes.
var callDurationBuckets = []float64{
	1, 5, 10, 30, 60, 120, 300, 600, 1200,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CallDuration, err = m.Float64Histogram("vocero.call.duration",
		metric.WithDescription("Duration of finished calls by outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callDurationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocero.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CallsStarted, err = m.Int64Counter("vocero.calls.started",
		metric.WithDescription("Inbound calls accepted by the gateway, by client key."),
	); err != nil {
		return nil, err
	}
	if met.DetectionEvents, err = m.Int64Counter("vocero.detection.events",
		metric.WithDescription("State-machine detections by kind."),
	); err != nil {
		return nil, err
	}
	if met.DTMFDigitsSent, err = m.Int64Counter("vocero.dtmf.sent",
		metric.WithDescription("Menu digits pressed on automated phone menus."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ActuatorErrors, err = m.Int64Counter("vocero.actuator.errors",
		metric.WithDescription("Failed telephony control calls by operation."),
	); err != nil {
		return nil, err
	}
	if met.PersistFailures, err = m.Int64Counter("vocero.persist.failures",
		metric.WithDescription("Call records lost to a failed save."),
	); err != nil {
		return nil, err
	}
	if met.UpstreamErrors, err = m.Int64Counter("vocero.upstream.errors",
		metric.WithDescription("AI speech-session failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("vocero.active_calls",
		metric.WithDescription("Number of live call sessions."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
