package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/respcache/observe"
)

// Bypass reasons reported to metrics.
const (
	BypassDisabled    = "disabled"
	BypassUncacheable = "uncacheable"
	BypassKeyError    = "key_error"
)

// maxQueryLen bounds Entry.Query.
const maxQueryLen = 200

// FetchFunc performs the real call for a request.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Request describes one outbound call.
type Request struct {
	// Target identifies the destination, such as "POST https://host/v1/chat".
	Target string

	// Body is the request payload. It is canonicalized for keying.
	Body any

	// Query is a short display form. Defaults to Target.
	Query string

	// Tags classify the call. See UnsafeTags.
	Tags []string

	// Streaming marks long-lived or streamed calls, which are never cached.
	Streaming bool
}

// InterceptorConfig configures an Interceptor.
type InterceptorConfig struct {
	// Policy bounds the store and decides cacheability.
	Policy Policy

	// Keyer derives keys. Defaults to DefaultKeyer.
	Keyer Keyer

	// Persister loads state on construction and saves it after mutations.
	// If nil, state lives only in memory.
	Persister Persister

	// PersistDebounce coalesces writes. Zero writes synchronously after
	// every mutation.
	PersistDebounce time.Duration

	// Disabled starts the interceptor in bypass mode.
	Disabled bool

	// Middleware wraps real calls with tracing, metrics, and logging.
	// Defaults to no-op telemetry.
	Middleware *observe.Middleware

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Interceptor memoizes real calls. It owns the store, the counters, and the
// enabled flag. It is the only component that invokes a FetchFunc.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Errors: Handle returns the real call's error unchanged. Internal faults
//   never fail a call.
type Interceptor struct {
	policy    Policy
	keyer     Keyer
	store     *Store
	stats     Stats
	enabled   atomic.Bool
	flights   singleflight.Group
	now       func() time.Time
	mw        *observe.Middleware
	metrics   observe.CacheMetrics
	logger    observe.Logger
	persister Persister
	debounce  time.Duration

	saveMu   sync.Mutex
	dirty    chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	closed   atomic.Bool
}

// NewInterceptor creates an Interceptor and loads any persisted state.
// Unusable persisted state is logged and ignored.
func NewInterceptor(ctx context.Context, cfg InterceptorConfig) (*Interceptor, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	mw := cfg.Middleware
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, nil)
	}
	keyer := cfg.Keyer
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	i := &Interceptor{
		policy:    cfg.Policy,
		keyer:     keyer,
		now:       now,
		mw:        mw,
		metrics:   mw.Metrics(),
		logger:    mw.Logger().With(observe.F("component", "cache")),
		persister: cfg.Persister,
		debounce:  cfg.PersistDebounce,
	}
	i.enabled.Store(!cfg.Disabled)

	evictor := NewEvictor(cfg.Policy)
	evictor.Now = now
	evictor.OnEvict = i.onEvict
	i.store = NewStore(evictor)

	i.restore(ctx)

	if i.persister != nil && i.debounce > 0 {
		i.dirty = make(chan struct{}, 1)
		i.done = make(chan struct{})
		i.loopDone = make(chan struct{})
		go i.persistLoop()
	}

	return i, nil
}

func (i *Interceptor) onEvict(key string, reason EvictReason) {
	ctx := context.Background()
	i.metrics.RecordEviction(ctx, string(reason))
	i.logger.Debug(ctx, "cache entry evicted", observe.F("key", key), observe.F("reason", string(reason)))
}

// Handle serves req from the cache or performs fetch and stores a
// successful result. The returned slice belongs to the caller: the store
// keeps its own copy, so modifying it never changes a later hit.
func (i *Interceptor) Handle(ctx context.Context, req Request, fetch FetchFunc) ([]byte, error) {
	call := i.mw.Wrap(req.Target, observe.FetchFunc(fetch))

	// Bypass when disabled or when the policy cannot hold anything
	if !i.enabled.Load() || !i.policy.ShouldCache() {
		i.metrics.RecordBypass(ctx, BypassDisabled)
		return call(ctx)
	}
	// Only allow-listed requests touch the store
	if !i.policy.Cacheable(req) {
		i.metrics.RecordBypass(ctx, BypassUncacheable)
		return call(ctx)
	}

	// Derive the key; a body that cannot be serialized is not cached
	key, err := i.keyer.Key(req.Target, req.Body)
	if err != nil {
		i.logger.Debug(ctx, "cache key derivation failed; bypassing",
			observe.F("target", req.Target),
			observe.F("error", err),
		)
		i.metrics.RecordBypass(ctx, BypassKeyError)
		return call(ctx)
	}

	// Hit: no transport call
	if entry, ok := i.store.Hit(key); ok {
		i.stats.RecordHit()
		i.metrics.RecordLookup(ctx, true)
		i.markDirty(ctx)
		return bytes.Clone(entry.Response), nil
	}

	// Miss: one shared fetch per key
	i.stats.RecordMiss()
	i.metrics.RecordLookup(ctx, false)
	i.markDirty(ctx)

	return i.fetchShared(ctx, key, req, call)
}

// Key returns the cache key for req.
func (i *Interceptor) Key(req Request) (string, error) {
	return i.keyer.Key(req.Target, req.Body)
}

// fetchShared collapses concurrent misses for key into one call. Each
// caller waits under its own ctx. A caller that receives the leader's
// cancellation while its own ctx is live retries, possibly as the new leader.
func (i *Interceptor) fetchShared(ctx context.Context, key string, req Request, call observe.FetchFunc) ([]byte, error) {
	for {
		var led bool
		ch := i.flights.DoChan(key, func() (any, error) {
			led = true
			return i.fetchAndStore(ctx, key, req, call)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				data := res.Val.([]byte)
				if !led {
					data = bytes.Clone(data)
				}
				return data, nil
			}
			if !led && isCancellation(res.Err) && ctx.Err() == nil {
				continue
			}
			return nil, res.Err
		}
	}
}

func (i *Interceptor) fetchAndStore(ctx context.Context, key string, req Request, call observe.FetchFunc) ([]byte, error) {
	// A flight that finished just before this one may have stored the key.
	if entry, ok := i.store.Get(key); ok {
		return bytes.Clone(entry.Response), nil
	}

	data, err := call(ctx)
	if err != nil {
		return nil, err
	}
	// A result that arrives after cancellation is returned to nobody.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Store only successful, uncancelled results
	i.store.Put(Entry{
		Key:       key,
		Query:     queryOf(req),
		Response:  bytes.Clone(data),
		Timestamp: i.now(),
		Size:      len(data),
	})
	i.markDirty(ctx)
	return data, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func queryOf(req Request) string {
	q := req.Query
	if q == "" {
		q = req.Target
	}
	if len(q) <= maxQueryLen {
		return q
	}
	return strings.ToValidUTF8(q[:maxQueryLen], "") + "..."
}

// Clear removes every entry. Counters are unchanged.
func (i *Interceptor) Clear(ctx context.Context) int {
	n := i.store.Clear()
	i.logger.Info(ctx, "cache cleared", observe.F("entries", n))
	i.markDirty(ctx)
	return n
}

// ResetStats zeroes the hit and miss counters.
func (i *Interceptor) ResetStats(ctx context.Context) {
	i.stats.Reset()
	i.logger.Info(ctx, "cache stats reset")
	i.markDirty(ctx)
}

// SetEnabled toggles bypass mode. Entries are kept while disabled.
func (i *Interceptor) SetEnabled(enabled bool) {
	i.enabled.Store(enabled)
}

// Enabled reports whether lookups and stores are active.
func (i *Interceptor) Enabled() bool {
	return i.enabled.Load()
}

// ExportSnapshot returns every entry and the counters. It has no side
// effects.
func (i *Interceptor) ExportSnapshot() Snapshot {
	st := i.state()
	return Snapshot{
		Entries:    st.Entries,
		HitCount:   st.HitCount,
		MissCount:  st.MissCount,
		ExportedAt: i.now().UTC(),
	}
}

// DeleteEntry removes the entry for key. It reports whether one existed.
func (i *Interceptor) DeleteEntry(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	if !i.store.Delete(key) {
		return false, nil
	}
	i.markDirty(ctx)
	return true, nil
}

// ListEntries returns a summary of every entry in eviction order.
func (i *Interceptor) ListEntries() []Summary {
	entries := i.store.Entries()
	now := i.now()
	out := make([]Summary, len(entries))
	for n, e := range entries {
		out[n] = e.Summarize(now)
	}
	return out
}

// Stats returns the current counters.
func (i *Interceptor) Stats() StatsSnapshot {
	return i.stats.Snapshot()
}

// Len returns the number of stored entries.
func (i *Interceptor) Len() int {
	return i.store.Len()
}

// Policy returns the interceptor's policy.
func (i *Interceptor) Policy() Policy {
	return i.policy
}

// Flush writes the current state now.
func (i *Interceptor) Flush(ctx context.Context) error {
	if i.closed.Load() {
		return ErrClosed
	}
	if i.persister == nil {
		return nil
	}
	return i.save(ctx)
}

// Close stops the persistence loop and writes the final state.
// Calling Close more than once is a no-op.
func (i *Interceptor) Close(ctx context.Context) error {
	if i.closed.Swap(true) {
		return nil
	}
	if i.done != nil {
		close(i.done)
		<-i.loopDone
	}
	if i.persister == nil {
		return nil
	}
	return i.save(ctx)
}
