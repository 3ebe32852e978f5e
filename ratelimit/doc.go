// Package ratelimit implements per-key request throttling for the
// security pipeline.
//
// The default algorithm is a sliding-window log: one timestamped marker
// per accepted request, pruned and counted atomically against a
// pluggable Store. A Redis-backed store runs the whole check as one Lua
// script for multi-instance deployments; an in-process store backs
// tests and single-instance deployments. A token-bucket limiter covers
// weighted and globally shared costs.
//
// When the store is unreachable the service fails open and allows the
// request. Availability is preferred over strict enforcement.
package ratelimit
