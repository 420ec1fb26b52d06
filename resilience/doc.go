// Package resilience guards best-effort side effects such as cache
// persistence writes.
//
// Three patterns compose through an Executor:
//
//   - CircuitBreaker stops calling a sink after repeated failures and probes
//     it again after a cool-down.
//   - Retry repeats a failed call with exponential or constant backoff.
//     Errors marked with Permanent are not retried.
//   - Timeout bounds each attempt.
//
// The breaker wraps the retry loop, so one exhausted retry sequence counts
// as one failure:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  3,
//	        ResetTimeout: time.Minute,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(2*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return store.Save(ctx, state)
//	})
package resilience
