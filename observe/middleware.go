package observe

import (
	"context"
	"time"
)

// FetchFunc performs one real transport call and returns the raw response.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Middleware wraps real transport calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap returns a FetchFunc that is safe for concurrent use.
//   - Context: the span context is propagated into the wrapped call.
//   - Errors: errors from the wrapped call are recorded and returned unchanged.
//   - Ownership: response bytes are passed through without copying.
type Middleware struct {
	tracer  Tracer
	metrics CacheMetrics
	logger  Logger
}

// NewMiddleware creates a Middleware from its parts. Nil parts are replaced
// by no-op implementations.
func NewMiddleware(tracer Tracer, metrics CacheMetrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the CacheMetrics used by the middleware.
func (m *Middleware) Metrics() CacheMetrics { return m.metrics }

// Logger returns the Logger used by the middleware.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps fn so every call is traced, timed, and logged under target.
func (m *Middleware) Wrap(target string, fn FetchFunc) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		ctx, span := m.tracer.StartFetch(ctx, target)

		start := time.Now()
		data, err := fn(ctx)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, duration, err)

		fields := []Field{
			F("target", target),
			F("duration_ms", float64(duration.Microseconds())/1000),
		}
		if err != nil {
			fields = append(fields, F("error", err))
			m.logger.Error(ctx, "fetch failed", fields...)
		} else {
			fields = append(fields, F("bytes", len(data)))
			m.logger.Debug(ctx, "fetch completed", fields...)
		}

		return data, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewCacheMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
