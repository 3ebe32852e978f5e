// Package cache provides a small bounded, TTL-expiring cache used by the
// authentication, IP filtering, and CSRF services. It wraps an expirable
// LRU so that memory stays bounded under adversarial key churn, and adds
// hit/miss statistics for observability.
package cache
