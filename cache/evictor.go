package cache

import (
	"fmt"
	"strings"
	"time"
)

// EvictionPolicy selects which entry is removed when the store is full.
type EvictionPolicy int

const (
	// EvictFIFO removes the oldest inserted entry. Hits do not reorder.
	EvictFIFO EvictionPolicy = iota
	// EvictLRU removes the least recently hit entry.
	EvictLRU
)

func (p EvictionPolicy) String() string {
	if p == EvictLRU {
		return "lru"
	}
	return "fifo"
}

// ParseEvictionPolicy parses "fifo" or "lru". Empty selects FIFO.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(s) {
	case "", "fifo":
		return EvictFIFO, nil
	case "lru":
		return EvictLRU, nil
	default:
		return EvictFIFO, fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidPolicy, s)
	}
}

// EvictReason says why an entry left the store.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

// Evictor enforces the entry-count and entry-age bounds of a Store.
//
// Capacity is enforced on insert: while the store holds MaxEntries or more,
// the front of the order list is removed before the new entry is added.
// Age is enforced lazily: lookups treat entries older than MaxAge as absent
// and remove them. There is no background sweep.
type Evictor struct {
	// MaxEntries bounds the entry count. Zero or less means unbounded.
	MaxEntries int

	// MaxAge bounds entry age. Zero or less means entries never expire.
	MaxAge time.Duration

	// Policy selects FIFO or LRU ordering.
	Policy EvictionPolicy

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// OnEvict, if set, is called once per removed entry after the store lock
	// is released.
	OnEvict func(key string, reason EvictReason)
}

// NewEvictor returns an Evictor enforcing the bounds of p.
func NewEvictor(p Policy) *Evictor {
	return &Evictor{
		MaxEntries: p.MaxEntries,
		MaxAge:     p.MaxAge,
		Policy:     p.Eviction,
	}
}

func (e *Evictor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Expired reports whether entry is older than MaxAge at now.
func (e *Evictor) Expired(entry Entry, now time.Time) bool {
	return e.MaxAge > 0 && now.Sub(entry.Timestamp) > e.MaxAge
}

// full reports whether a store holding n entries must evict before an insert.
func (e *Evictor) full(n int) bool {
	return e.MaxEntries > 0 && n >= e.MaxEntries
}

type eviction struct {
	key    string
	reason EvictReason
}

func (e *Evictor) notify(evicted []eviction) {
	if e.OnEvict == nil {
		return
	}
	for _, ev := range evicted {
		e.OnEvict(ev.key, ev.reason)
	}
}
