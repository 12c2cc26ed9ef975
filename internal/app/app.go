// Package app wires all Vocero subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithProfileStore,
// WithActuator, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocero-ai/vocero/internal/api"
	"github.com/vocero-ai/vocero/internal/call"
	"github.com/vocero-ai/vocero/internal/config"
	"github.com/vocero-ai/vocero/internal/health"
	"github.com/vocero-ai/vocero/internal/lead"
	"github.com/vocero-ai/vocero/internal/observe"
	"github.com/vocero-ai/vocero/internal/profile"
	"github.com/vocero-ai/vocero/internal/telephony"
	"github.com/vocero-ai/vocero/internal/testbench"
	"github.com/vocero-ai/vocero/pkg/realtime"
	"github.com/vocero-ai/vocero/pkg/realtime/openai"
)

// App owns all subsystem lifetimes and serves the telephony, API, and
// testbench surfaces from a single listener.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	pool     *pgxpool.Pool
	profiles profile.Store
	leads    lead.Store
	sink     call.Sink
	convos   testbench.Store

	registry *call.Registry
	machine  *call.Machine
	actuator call.Actuator
	ai       realtime.Provider

	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProfileStore injects a client profile store instead of creating one
// from config.
func WithProfileStore(s profile.Store) Option {
	return func(a *App) { a.profiles = s }
}

// WithLeadStore injects a lead store instead of creating one from config.
func WithLeadStore(s lead.Store) Option {
	return func(a *App) { a.leads = s }
}

// WithCallSink injects a call record sink instead of creating one from config.
func WithCallSink(s call.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithConversationStore injects a testbench conversation store.
func WithConversationStore(s testbench.Store) Option {
	return func(a *App) { a.convos = s }
}

// WithActuator injects a call actuator instead of building the Twilio one.
func WithActuator(act call.Actuator) Option {
	return func(a *App) { a.actuator = act }
}

// WithAIProvider injects a realtime provider instead of the OpenAI one.
func WithAIProvider(p realtime.Provider) Option {
	return func(a *App) { a.ai = p }
}

// WithMetrics injects a metrics set instead of using the global provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	a.initActuator()
	a.initAI()

	a.registry = call.NewRegistry()
	a.machine = call.NewMachine(call.MachineConfig{
		Registry: a.registry,
		Actuator: a.actuator,
		Sink:     a.sink,
		Leads:    a.leads,
		Metrics:  a.metrics,
	})

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStores connects the PostgreSQL pool and runs migrations, or falls back
// to in-memory stores when no DSN is configured. Injected stores are never
// replaced or migrated.
func (a *App) initStores(ctx context.Context) error {
	dsn := a.cfg.Postgres.DSN
	if dsn == "" {
		if a.profiles == nil {
			a.profiles = profile.NewMemStore()
		}
		if a.leads == nil {
			a.leads = lead.NewMemStore()
		}
		if a.sink == nil {
			a.sink = call.NewMemSink()
		}
		if a.convos == nil {
			a.convos = testbench.NewMemStore()
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	if a.profiles == nil {
		s := profile.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate profiles: %w", err)
		}
		a.profiles = s
	}
	if a.leads == nil {
		s := lead.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate leads: %w", err)
		}
		a.leads = s
	}
	if a.sink == nil {
		s := call.NewPostgresSink(pool)
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate call records: %w", err)
		}
		a.sink = s
	}
	if a.convos == nil {
		s := testbench.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate test conversations: %w", err)
		}
		a.convos = s
	}
	return nil
}

// initActuator builds the Twilio actuator when credentials are configured.
// Without credentials the machine still runs but control calls are dropped.
func (a *App) initActuator() {
	if a.actuator != nil {
		return
	}
	if a.cfg.Twilio.AccountSID != "" {
		a.actuator = telephony.NewTwilioActuator(a.cfg.Twilio.AccountSID, a.cfg.Twilio.AuthToken)
		return
	}
	a.actuator = noopActuator{}
}

func (a *App) initAI() {
	if a.ai != nil {
		return
	}
	var opts []openai.Option
	if a.cfg.OpenAI.Model != "" {
		opts = append(opts, openai.WithModel(a.cfg.OpenAI.Model))
	}
	if a.cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(a.cfg.OpenAI.BaseURL))
	}
	a.ai = openai.New(a.cfg.OpenAI.APIKey, opts...)
}

// buildHandler assembles the full route table and wraps it in the tracing
// and metrics middleware.
func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()

	streamURL := "wss://" + a.cfg.Server.PublicHost + "/media-stream"
	mux.Handle("POST /incoming-call", telephony.NewWebhook(a.profiles, a.registry, streamURL, a.metrics))
	mux.Handle("GET /media-stream", telephony.NewStreamHandler(telephony.StreamConfig{
		Registry: a.registry,
		Machine:  a.machine,
		AI:       a.ai,
		Voice:    a.cfg.OpenAI.Voice,
		Metrics:  a.metrics,
	}))

	api.New(a.profiles, a.leads, a.convos).Register(mux)

	var checkers []health.Checker
	if a.pool != nil {
		checkers = append(checkers, health.PingChecker("database", a.pool))
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	if a.cfg.Testbench.Enabled {
		mux.Handle("GET /test-session", testbench.NewHandler(testbench.Config{
			Profiles:  a.profiles,
			AI:        a.ai,
			Voice:     a.cfg.OpenAI.Voice,
			PaceDelay: time.Duration(a.cfg.Testbench.PaceDelayMS) * time.Millisecond,
			Metrics:   a.metrics,
		}))
	}

	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the fully assembled HTTP handler. Exposed for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled or the listener fails. On
// cancellation it returns ctx.Err; the caller is expected to follow up
// with [App.Shutdown].
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("app running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"testbench", a.cfg.Testbench.Enabled,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server and tears down all subsystems in
// reverse-init order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// noopActuator stands in when Twilio credentials are absent. Control calls
// are logged and dropped so local runs without credentials stay usable.
type noopActuator struct{}

func (noopActuator) SendDigits(_ context.Context, callID, digits string) error {
	slog.Warn("no actuator configured; dropping DTMF", "call_id", callID, "digits", digits)
	return nil
}

func (noopActuator) Hangup(_ context.Context, callID string) error {
	slog.Warn("no actuator configured; dropping hangup", "call_id", callID)
	return nil
}
