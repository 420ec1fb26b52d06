package cache

import (
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey         = errors.New("cache: key is invalid")
	ErrKeyTooLong         = errors.New("cache: key exceeds max length")
	ErrUnserializableBody = errors.New("cache: request body cannot be serialized")
	ErrInvalidPolicy      = errors.New("cache: invalid policy")
	ErrClosed             = errors.New("cache: interceptor is closed")
)

// Entry is one cached response.
//
// Response is returned to callers as stored. Callers must not modify it.
type Entry struct {
	Key       string    `json:"key"`
	Query     string    `json:"query"`
	Response  []byte    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"`
	Hits      int64     `json:"hits"`
}

// Age returns how long ago the entry was created.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

// Summary describes an entry without its response body.
type Summary struct {
	Key       string        `json:"key"`
	Query     string        `json:"query"`
	Timestamp time.Time     `json:"timestamp"`
	Size      int           `json:"size"`
	Hits      int64         `json:"hits"`
	Age       time.Duration `json:"age"`
}

// Summarize returns the entry's Summary as of now.
func (e Entry) Summarize(now time.Time) Summary {
	return Summary{
		Key:       e.Key,
		Query:     e.Query,
		Timestamp: e.Timestamp,
		Size:      e.Size,
		Hits:      e.Hits,
		Age:       e.Age(now),
	}
}

// State is the persisted record.
type State struct {
	Entries   []Entry `json:"entries"`
	HitCount  int64   `json:"hitCount"`
	MissCount int64   `json:"missCount"`
}

// Snapshot is a read-only export of the cache for inspection.
type Snapshot struct {
	Entries    []Entry   `json:"entries"`
	HitCount   int64     `json:"hitCount"`
	MissCount  int64     `json:"missCount"`
	ExportedAt time.Time `json:"exportedAt"`
}

// ValidateKey checks if a key is valid for lookup or deletion.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
