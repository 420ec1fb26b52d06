package health

import (
	"context"

	"github.com/jonwraymond/respcache/cache"
	"github.com/jonwraymond/respcache/resilience"
)

// CacheChecker reports on a cache.Interceptor and, optionally, the circuit
// breaker guarding its persistence writes.
type CacheChecker struct {
	name    string
	cache   *cache.Interceptor
	breaker *resilience.CircuitBreaker
}

// NewCacheChecker returns a checker named "cache". breaker may be nil.
func NewCacheChecker(c *cache.Interceptor, breaker *resilience.CircuitBreaker) *CacheChecker {
	return &CacheChecker{name: "cache", cache: c, breaker: breaker}
}

// Name implements Checker.
func (c *CacheChecker) Name() string { return c.name }

// Check is degraded while the cache is disabled or persistence writes are
// being dropped. Both leave calls working, so it is never unhealthy.
func (c *CacheChecker) Check(context.Context) Result {
	stats := c.cache.Stats()
	policy := c.cache.Policy()
	details := map[string]any{
		"enabled":     c.cache.Enabled(),
		"entries":     c.cache.Len(),
		"max_entries": policy.MaxEntries,
		"max_age":     policy.MaxAge.String(),
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"hit_rate":    stats.HitRate,
	}

	var result Result
	switch {
	case !c.cache.Enabled():
		result = Degraded("cache disabled; all calls bypass")
	case !policy.ShouldCache():
		result = Degraded("cache policy stores nothing")
	default:
		result = Healthy("cache serving")
	}

	if c.breaker != nil {
		m := c.breaker.Metrics()
		details["persist_breaker"] = m.State.String()
		details["persist_failures"] = m.Failures
		details["persist_rejected"] = m.Rejected

		switch m.State {
		case resilience.StateOpen:
			result.Status = StatusDegraded
			result.Message = "persistence circuit open; writes dropped"
		case resilience.StateHalfOpen:
			result.Status = StatusDegraded
			result.Message = "persistence circuit probing"
		}
	}

	return result.WithDetails(details)
}

var _ Checker = (*CacheChecker)(nil)
