package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers for the bridge.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "vocero".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry, usually
	// the build version stamped into the binary.
	ServiceVersion string

	// TraceExporter ships spans somewhere. When nil, spans are still created
	// (so correlation IDs keep working) but never leave the process. Set an
	// OTLP exporter here to send call traces to a collector.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider wires up the global OTel SDK for the bridge process: a meter
// provider backed by a Prometheus exporter, so call and HTTP metrics land on
// the /metrics scrape endpoint, and a tracer provider that batches spans to
// cfg.TraceExporter when one is configured.
//
// The returned shutdown function flushes both providers. main defers it so
// in-flight call spans survive a restart.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vocero"
	}

	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	var closers []func(context.Context) error

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range closers {
			if e := fn(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		return errors.Join(errs...)
	}

	return shutdown, nil
}

// serviceResource builds the OTel resource identifying this bridge instance
// in exported telemetry.
func serviceResource(cfg ProviderConfig) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}
