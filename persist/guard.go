package persist

import (
	"context"
	"time"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/resilience"
)

// GuardConfig configures Guard.
type GuardConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxFailures opens the breaker after this many failed saves.
	// Default: 5
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open. Default: 30s
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// MaxAttempts per save, including the first. Default: 2
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the initial backoff. Default: 50ms
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Timeout bounds each attempt. Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// Guard wraps a Backend so saves pass through a circuit breaker, retry, and
// timeout. While the breaker is open, saves fail fast with
// resilience.ErrCircuitOpen and the write is dropped.
type Guard struct {
	Backend
	exec    *resilience.Executor
	breaker *resilience.CircuitBreaker
}

// NewGuard wraps b.
func NewGuard(b Backend, cfg GuardConfig) *Guard {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		IsFailure: func(err error) bool {
			return err != nil && !resilience.IsPermanent(err)
		},
	})

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}

	return &Guard{
		Backend: b,
		breaker: breaker,
		exec: resilience.NewExecutor(
			resilience.WithCircuitBreaker(breaker),
			resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
				MaxAttempts:  maxAttempts,
				InitialDelay: durationOr(cfg.RetryDelay, 50*time.Millisecond),
				Jitter:       true,
			})),
			resilience.WithTimeout(durationOr(cfg.Timeout, 5*time.Second)),
		),
	}
}

// Save writes st through the executor.
func (g *Guard) Save(ctx context.Context, st *cache.State) error {
	return g.exec.Execute(ctx, func(ctx context.Context) error {
		return g.Backend.Save(ctx, st)
	})
}

// Breaker exposes the circuit breaker for health checks.
func (g *Guard) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}

// Unwrap returns the guarded backend.
func (g *Guard) Unwrap() Backend {
	return g.Backend
}

var _ Backend = (*Guard)(nil)
