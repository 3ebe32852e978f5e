package metrics

import (
	"sync"
)

// EndpointMetrics is the aggregate for one endpoint path.
type EndpointMetrics struct {
	RequestCount     int64
	CumulativeTimeMs float64
	ErrorCount       int64
}

// AverageTimeMs returns the mean request duration for the endpoint.
func (e EndpointMetrics) AverageTimeMs() float64 {
	if e.RequestCount == 0 {
		return 0
	}
	return e.CumulativeTimeMs / float64(e.RequestCount)
}

// ErrorRate returns the fraction of requests that ended in error.
func (e EndpointMetrics) ErrorRate() float64 {
	if e.RequestCount == 0 {
		return 0
	}
	return float64(e.ErrorCount) / float64(e.RequestCount)
}

// AuxiliaryCounters carries point-in-time observability values sampled
// from other pipeline components at snapshot time.
type AuxiliaryCounters struct {
	AllowlistSize  int
	DenylistSize   int
	TokenCacheSize int
	UserCacheSize  int
	CSRFTokenCount int
	RateLimitKeys  int
}

// AuxiliarySource supplies AuxiliaryCounters on demand. Registered by
// the pipeline so snapshots reflect current component state.
type AuxiliarySource func() AuxiliaryCounters

// Snapshot is a read-only view of collected metrics.
type Snapshot struct {
	Endpoints map[string]EndpointMetrics
	Auxiliary AuxiliaryCounters
}

// Collector aggregates per-endpoint metrics. Safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	endpoints map[string]*EndpointMetrics
	auxiliary AuxiliarySource
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		endpoints: make(map[string]*EndpointMetrics),
	}
}

// SetAuxiliarySource registers the callback sampled into snapshots.
func (c *Collector) SetAuxiliarySource(src AuxiliarySource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auxiliary = src
}

// UpdateMetrics records one completed request for the endpoint.
func (c *Collector) UpdateMetrics(endpoint string, elapsedMs float64, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.endpoints[endpoint]
	if !ok {
		m = &EndpointMetrics{}
		c.endpoints[endpoint] = m
	}

	m.RequestCount++
	m.CumulativeTimeMs += elapsedMs
	if isError {
		m.ErrorCount++
	}
}

// GetMetrics returns a snapshot of all endpoint aggregates plus the
// auxiliary counters. The returned map is a copy; mutating it does not
// affect the collector.
func (c *Collector) GetMetrics() Snapshot {
	c.mu.RLock()
	endpoints := make(map[string]EndpointMetrics, len(c.endpoints))
	for path, m := range c.endpoints {
		endpoints[path] = *m
	}
	aux := c.auxiliary
	c.mu.RUnlock()

	snap := Snapshot{Endpoints: endpoints}
	if aux != nil {
		// Sampled outside the collector lock; sources take their own
		// locks and must not call back into the collector.
		snap.Auxiliary = aux()
	}
	return snap
}
