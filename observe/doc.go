// Package observe provides observability primitives for the response cache.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// metrics for lookups, evictions, fetches and persistence, and tracing spans
// around real transport calls. Exporter setup lives in the exporters
// subpackage. The cache and transport packages consume these primitives; this
// package never performs a fetch itself.
package observe
