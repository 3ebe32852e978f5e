// Package metrics aggregates per-endpoint request counts, latency, and
// error counts for the security pipeline. Counters are monotonic for
// the process lifetime; resetting is an operational concern, not a
// pipeline one.
package metrics
