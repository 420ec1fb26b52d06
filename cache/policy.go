package cache

import (
	"fmt"
	"strings"
	"time"
)

// Default bounds.
const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = 24 * time.Hour
)

// UnsafeTags are tags that mark a request as having side effects.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// CacheableFunc decides whether a request may be served from the cache.
type CacheableFunc func(req Request) bool

// Policy configures caching behavior.
type Policy struct {
	// MaxEntries bounds the number of stored entries.
	// If zero, caching is disabled.
	MaxEntries int

	// MaxAge bounds how long an entry may be served.
	// If zero, caching is disabled.
	MaxAge time.Duration

	// Eviction selects FIFO or LRU capacity eviction.
	Eviction EvictionPolicy

	// AllowUnsafe permits caching requests with unsafe tags.
	AllowUnsafe bool

	// TargetPrefixes, if non-empty, limits caching to targets starting with
	// one of the prefixes.
	TargetPrefixes []string

	// Filter, if set, replaces the built-in cacheability rules.
	Filter CacheableFunc
}

// DefaultPolicy returns the default caching policy.
// MaxEntries: 100, MaxAge: 24 hours, Eviction: FIFO.
func DefaultPolicy() Policy {
	return Policy{
		MaxEntries: DefaultMaxEntries,
		MaxAge:     DefaultMaxAge,
		Eviction:   EvictFIFO,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.MaxEntries > 0 && p.MaxAge > 0
}

// Validate rejects negative bounds.
func (p Policy) Validate() error {
	if p.MaxEntries < 0 {
		return fmt.Errorf("%w: max entries %d", ErrInvalidPolicy, p.MaxEntries)
	}
	if p.MaxAge < 0 {
		return fmt.Errorf("%w: max age %s", ErrInvalidPolicy, p.MaxAge)
	}
	return nil
}

// Cacheable reports whether req may be served from and stored in the cache.
// Streaming requests, requests with unsafe tags (unless AllowUnsafe), and
// targets outside TargetPrefixes are rejected.
func (p Policy) Cacheable(req Request) bool {
	if p.Filter != nil {
		return p.Filter(req)
	}
	if req.Streaming {
		return false
	}
	if !p.AllowUnsafe && HasUnsafeTag(req.Tags) {
		return false
	}
	if len(p.TargetPrefixes) == 0 {
		return true
	}
	for _, prefix := range p.TargetPrefixes {
		if strings.HasPrefix(req.Target, prefix) {
			return true
		}
	}
	return false
}

// HasUnsafeTag reports whether any tag is in UnsafeTags.
// Tag matching is case-insensitive.
func HasUnsafeTag(tags []string) bool {
	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		for _, unsafe := range UnsafeTags {
			if tagLower == unsafe {
				return true
			}
		}
	}
	return false
}
