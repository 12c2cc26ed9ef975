package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseTap wraps [http.ResponseWriter] so the middleware can see which
// status code the handler wrote. Handlers that never call WriteHeader count
// as 200.
type responseTap struct {
	http.ResponseWriter
	status int
}

func (t *responseTap) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every HTTP endpoint the bridge exposes: the Twilio
// webhook, the dashboard API, health checks and the metrics scrape. Each
// request gets an OTel server span (continuing a W3C Trace Context carried in
// the request headers when present), an X-Correlation-ID response header
// derived from the trace ID, a latency sample in
// [Metrics.HTTPRequestDuration], and a completion log line.
//
// The trace ID in X-Correlation-ID is the handle for chasing one phone call
// across webhook, media stream and persistence logs.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			tap := &responseTap{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tap, r.WithContext(ctx))

			finishRequest(ctx, m, span, r, tap.status, time.Since(start))
		})
	}
}

// finishRequest records the latency sample, stamps the final status on the
// span and emits the completion log line.
func finishRequest(ctx context.Context, m *Metrics, span trace.Span, r *http.Request, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
		),
	)
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))

	slog.LogAttrs(ctx, slog.LevelInfo, "request completed",
		slog.String("trace_id", CorrelationID(ctx)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	)
}
