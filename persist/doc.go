// Package persist provides durable backends for cache state.
//
// Every backend implements cache.Persister and stores one logical record:
// the entries in eviction order plus the hit and miss counters.
//
//   - FileStore writes a JSON document through a temp file and rename.
//   - SQLiteStore keeps entries and counters in two tables and replaces both
//     in one transaction.
//   - RedisStore keeps the JSON document under one key.
//
// Guard wraps any backend so writes go through a circuit breaker, retry,
// and timeout. Open builds a backend, optionally guarded, from Config.
package persist
