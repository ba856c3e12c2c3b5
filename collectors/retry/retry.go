// Package retry provides a circuit breaker that wraps probes to handle
// persistent failures. When a probe fails repeatedly, the breaker opens and
// reports the probe's metrics as unavailable for increasing intervals
// instead of calling it every cycle.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
)

var _ collectors.Probe = (*CircuitBreaker)(nil)

// ErrOpen is returned while the circuit is open. It wraps
// collectors.ErrMetricUnavailable so the collector records the probe's keys
// as unavailable without logging.
var ErrOpen = fmt.Errorf("circuit open: %w", collectors.ErrMetricUnavailable)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is normal operation; calls pass through to the probe.
	StateClosed State = iota
	// StateOpen means failures reached the threshold; calls are skipped.
	StateOpen
	// StateHalfOpen lets one call through to test whether the probe recovered.
	StateHalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures the circuit breaker behavior.
type Config struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// ResetTimeout is the initial wait before a half-open attempt.
	ResetTimeout time.Duration
	// MaxResetTimeout caps the exponential backoff.
	MaxResetTimeout time.Duration
	// BackoffMultiplier grows ResetTimeout on each re-open.
	BackoffMultiplier float64
	// Logger for circuit breaker events. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns the defaults used for host probes.
func DefaultConfig() Config {
	return Config{
		MaxFailures:       3,
		ResetTimeout:      time.Minute,
		MaxResetTimeout:   30 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// Stats holds circuit breaker statistics for external inspection.
type Stats struct {
	State            State
	ConsecutiveFails int
	TotalFailures    int
	TotalSuccesses   int
	Skipped          int
	CurrentTimeout   time.Duration
}

// CircuitBreaker wraps a collectors.Probe with failure tracking.
type CircuitBreaker struct {
	probe  collectors.Probe
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu             sync.Mutex
	state          State
	failures       int
	openedAt       time.Time
	currentTimeout time.Duration
	totalFailures  int
	totalSuccesses int
	skipped        int
}

// NewCircuitBreaker wraps p. Zero fields in cfg take their DefaultConfig
// values.
func NewCircuitBreaker(p collectors.Probe, cfg Config) *CircuitBreaker {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.MaxResetTimeout < cfg.ResetTimeout {
		cfg.MaxResetTimeout = max(def.MaxResetTimeout, cfg.ResetTimeout)
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CircuitBreaker{
		probe:          p,
		config:         cfg,
		logger:         logger,
		now:            time.Now,
		currentTimeout: cfg.ResetTimeout,
	}
}

// Name delegates to the wrapped probe.
func (cb *CircuitBreaker) Name() string { return cb.probe.Name() }

// Description delegates to the wrapped probe, appending the circuit state.
func (cb *CircuitBreaker) Description() string {
	return fmt.Sprintf("%s [circuit: %s]", cb.probe.Description(), cb.State())
}

// Keys delegates to the wrapped probe.
func (cb *CircuitBreaker) Keys() []string { return cb.probe.Keys() }

// Collect runs the wrapped probe unless the circuit is open, in which case
// it returns ErrOpen at once.
func (cb *CircuitBreaker) Collect(ctx context.Context, interval time.Duration) (collectors.Reading, error) {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if wait := cb.currentTimeout - cb.now().Sub(cb.openedAt); wait > 0 {
			cb.skipped++
			cb.mu.Unlock()
			return nil, ErrOpen
		}
		cb.state = StateHalfOpen
		cb.logger.Info("probe circuit half-open", "probe", cb.probe.Name())
	}
	cb.mu.Unlock()

	reading, err := cb.probe.Collect(ctx, interval)
	if err != nil && ctx.Err() == nil {
		cb.recordFailure(err)
	} else if err == nil {
		cb.recordSuccess()
	}
	return reading, err
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.totalFailures++

	switch {
	case cb.state == StateHalfOpen:
		cb.currentTimeout = min(
			time.Duration(float64(cb.currentTimeout)*cb.config.BackoffMultiplier),
			cb.config.MaxResetTimeout)
		cb.open()
		cb.logger.Warn("probe circuit re-opened",
			"probe", cb.probe.Name(), "failures", cb.failures,
			"retry_in", cb.currentTimeout, "error", err)
	case cb.failures >= cb.config.MaxFailures:
		cb.currentTimeout = cb.config.ResetTimeout
		cb.open()
		level := slog.LevelWarn
		if errors.Is(err, collectors.ErrMetricUnavailable) {
			level = slog.LevelInfo
		}
		cb.logger.Log(context.Background(), level, "probe circuit opened",
			"probe", cb.probe.Name(), "failures", cb.failures,
			"retry_in", cb.currentTimeout, "error", err)
	}
}

// open must be called with mu held.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.logger.Info("probe circuit closed", "probe", cb.probe.Name())
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.totalSuccesses++
	cb.currentTimeout = cb.config.ResetTimeout
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the circuit breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:            cb.state,
		ConsecutiveFails: cb.failures,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		Skipped:          cb.skipped,
		CurrentTimeout:   cb.currentTimeout,
	}
}

// Wrap returns probes each wrapped in its own breaker with cfg.
func Wrap(probes []collectors.Probe, cfg Config) []collectors.Probe {
	out := make([]collectors.Probe, len(probes))
	for i, p := range probes {
		out[i] = NewCircuitBreaker(p, cfg)
	}
	return out
}
