// Package cache memoizes the responses of idempotent outbound calls.
//
// An Interceptor sits between a caller and its transport. For each call it
// decides whether the request is cacheable, derives a deterministic key with
// a Keyer, and looks the key up in a bounded Store. A hit returns the stored
// bytes without touching the transport. A miss performs the real call once,
// even under concurrent identical requests, and stores only successful
// results.
//
// The Store is bounded by entry count and entry age. Capacity eviction is
// FIFO by default and LRU on request. Age is checked lazily on lookup.
// State is persisted through a Persister after every mutation, either
// synchronously or debounced.
package cache
