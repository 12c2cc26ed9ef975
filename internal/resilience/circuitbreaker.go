// Package resilience provides the circuit breaker guarding outbound REST
// calls to the telephony API.
//
// The central type is [CircuitBreaker], a classic three-state breaker
// (closed, open, half-open). Control calls on a live phone call are
// fire-and-forget, so when the API is down the breaker fails them fast
// instead of tying up the event path in connect timeouts.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the reset timeout has not yet elapsed. Callers treat it like
// any other failed control call: log and move on.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to find out
	// whether the API recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the guarded endpoint in log messages (e.g. "twilio").
	Name string

	// MaxFailures is the consecutive-failure budget in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing again.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds how many probe calls run in the half-open state
	// before the breaker decides. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker implements the three-state breaker pattern around a single
// remote endpoint.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failStreak    int
	lastFailure   time.Time
	probesStarted int
	probesFailed  int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields get
// the documented defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker is shedding load. Open state returns
// [ErrCircuitOpen] without calling fn; half-open admits fn as one of the
// bounded probes. fn's error is passed through unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	asProbe, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if callErr != nil {
		cb.onFailure(asProbe)
	} else {
		cb.onSuccess(asProbe)
	}
	return callErr
}

// admit decides whether the next call may run and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (asProbe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesStarted = 0
		cb.probesFailed = 0
		slog.Info("circuit breaker probing after reset timeout", "name", cb.name)

	case StateHalfOpen:
		if cb.probesStarted >= cb.halfOpenMax {
			// Probe budget already spent.
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probesStarted++
		return true, nil
	}
	return false, nil
}

// onFailure updates the accounting after a failed call. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(asProbe bool) {
	cb.lastFailure = time.Now()

	if asProbe {
		// One failed probe is enough evidence the endpoint is still down.
		cb.probesFailed++
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("circuit breaker re-opened, endpoint still failing", "name", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failStreak)
	}
}

// onSuccess updates the accounting after a successful call. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(asProbe bool) {
	if asProbe {
		if cb.probesStarted-cb.probesFailed >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failStreak = 0
			cb.probesStarted = 0
			cb.probesFailed = 0
			slog.Info("circuit breaker closed, endpoint recovered", "name", cb.name)
		}
		return
	}
	cb.failStreak = 0
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the stored transition happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probesStarted = 0
	cb.probesFailed = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
