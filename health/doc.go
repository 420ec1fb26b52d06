// Package health reports whether the cache service is fit to serve.
//
// A Checker reports a Status: Healthy, Degraded, or Unhealthy. The
// Aggregator runs registered checkers with a shared timeout and folds their
// results into one Report. CacheChecker inspects a cache.Interceptor and the
// persistence circuit breaker: a disabled cache or an open breaker degrades
// the service without making it unready, since calls still succeed.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// registers /healthz (liveness), /readyz (readiness), /health (JSON report),
// and /health/{name} (one checker).
package health
