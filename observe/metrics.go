package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricLookups       = "cache.lookups"
	MetricBypass        = "cache.bypass"
	MetricEvictions     = "cache.evictions"
	MetricEntries       = "cache.entries"
	MetricFetchDuration = "cache.fetch.duration_ms"
	MetricFetchErrors   = "cache.fetch.errors"
	MetricPersistErrors = "cache.persist.errors"
)

// CacheMetrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly and never block the caller.
// - Errors: implementations must not panic.
type CacheMetrics interface {
	// RecordLookup records a store lookup as a hit or a miss.
	RecordLookup(ctx context.Context, hit bool)

	// RecordBypass records a call that skipped the store, with the reason.
	RecordBypass(ctx context.Context, reason string)

	// RecordEviction records an entry removed by the evictor.
	RecordEviction(ctx context.Context, reason string)

	// RecordFetch records one real transport call.
	RecordFetch(ctx context.Context, duration time.Duration, err error)

	// RecordPersist records one persistence write.
	RecordPersist(ctx context.Context, duration time.Duration, err error)
}

type otelMetrics struct {
	lookups       metric.Int64Counter
	bypass        metric.Int64Counter
	evictions     metric.Int64Counter
	fetchDuration metric.Float64Histogram
	fetchErrors   metric.Int64Counter
	persistErrors metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics backed by the given meter.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	var (
		m   otelMetrics
		err error
	)

	if m.lookups, err = meter.Int64Counter(MetricLookups,
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if m.bypass, err = meter.Int64Counter(MetricBypass,
		metric.WithDescription("Calls that skipped the cache"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter(MetricEvictions,
		metric.WithDescription("Entries removed by capacity or age bounds"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.fetchDuration, err = meter.Float64Histogram(MetricFetchDuration,
		metric.WithDescription("Real transport call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.fetchErrors, err = meter.Int64Counter(MetricFetchErrors,
		metric.WithDescription("Real transport calls that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.persistErrors, err = meter.Int64Counter(MetricPersistErrors,
		metric.WithDescription("Dropped persistence writes"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *otelMetrics) RecordLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.result", result)))
}

func (m *otelMetrics) RecordBypass(ctx context.Context, reason string) {
	m.bypass.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.reason", reason)))
}

func (m *otelMetrics) RecordEviction(ctx context.Context, reason string) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.evict_reason", reason)))
}

func (m *otelMetrics) RecordFetch(ctx context.Context, duration time.Duration, err error) {
	m.fetchDuration.Record(ctx, float64(duration.Microseconds())/1000)
	if err != nil {
		m.fetchErrors.Add(ctx, 1)
	}
}

func (m *otelMetrics) RecordPersist(ctx context.Context, _ time.Duration, err error) {
	if err != nil {
		m.persistErrors.Add(ctx, 1)
	}
}

// RegisterEntriesGauge exports the live entry count as an observable gauge.
// count is called on every collection.
func RegisterEntriesGauge(meter metric.Meter, count func() int64) error {
	_, err := meter.Int64ObservableGauge(MetricEntries,
		metric.WithDescription("Entries currently held by the cache"),
		metric.WithUnit("{entry}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(count())
			return nil
		}),
	)
	return err
}

type nopMetrics struct{}

// NopMetrics returns CacheMetrics that record nothing.
func NopMetrics() CacheMetrics { return nopMetrics{} }

func (nopMetrics) RecordLookup(context.Context, bool)                  {}
func (nopMetrics) RecordBypass(context.Context, string)                {}
func (nopMetrics) RecordEviction(context.Context, string)              {}
func (nopMetrics) RecordFetch(context.Context, time.Duration, error)   {}
func (nopMetrics) RecordPersist(context.Context, time.Duration, error) {}
