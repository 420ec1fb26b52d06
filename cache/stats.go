package cache

import "sync/atomic"

// Stats counts cache lookups. It is safe for concurrent use.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// StatsSnapshot is a point-in-time view of Stats.
type StatsSnapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Lookups int64   `json:"lookups"`
	HitRate float64 `json:"hitRate"`
}

// RecordHit counts one hit.
func (s *Stats) RecordHit() { s.hits.Add(1) }

// RecordMiss counts one miss.
func (s *Stats) RecordMiss() { s.misses.Add(1) }

// Hits returns the hit count.
func (s *Stats) Hits() int64 { return s.hits.Load() }

// Misses returns the miss count.
func (s *Stats) Misses() int64 { return s.misses.Load() }

// HitRate returns hits as a percentage of lookups, or 0 with no lookups.
func (s *Stats) HitRate() float64 {
	return hitRate(s.hits.Load(), s.misses.Load())
}

// Reset zeroes both counters.
func (s *Stats) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
}

// Restore sets the counters, typically from persisted state. Negative
// values are treated as zero.
func (s *Stats) Restore(hits, misses int64) {
	s.hits.Store(max(hits, 0))
	s.misses.Store(max(misses, 0))
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	h, m := s.hits.Load(), s.misses.Load()
	return StatsSnapshot{
		Hits:    h,
		Misses:  m,
		Lookups: h + m,
		HitRate: hitRate(h, m),
	}
}

func hitRate(h, m int64) float64 {
	if h+m == 0 {
		return 0
	}
	return 100 * float64(h) / float64(h+m)
}
