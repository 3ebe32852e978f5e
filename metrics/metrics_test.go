package metrics

import (
	"sync"
	"testing"
)

func TestCollector_UpdateAndSnapshot(t *testing.T) {
	c := NewCollector()

	c.UpdateMetrics("/api/data", 10, false)
	c.UpdateMetrics("/api/data", 30, true)
	c.UpdateMetrics("/api/other", 5, false)

	snap := c.GetMetrics()

	data := snap.Endpoints["/api/data"]
	if data.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", data.RequestCount)
	}
	if data.CumulativeTimeMs != 40 {
		t.Errorf("CumulativeTimeMs = %v, want 40", data.CumulativeTimeMs)
	}
	if data.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", data.ErrorCount)
	}
	if got := data.AverageTimeMs(); got != 20 {
		t.Errorf("AverageTimeMs() = %v, want 20", got)
	}
	if got := data.ErrorRate(); got != 0.5 {
		t.Errorf("ErrorRate() = %v, want 0.5", got)
	}

	other := snap.Endpoints["/api/other"]
	if other.RequestCount != 1 || other.ErrorCount != 0 {
		t.Errorf("other endpoint = %+v", other)
	}
}

func TestCollector_SnapshotIsCopy(t *testing.T) {
	c := NewCollector()
	c.UpdateMetrics("/api/data", 1, false)

	snap := c.GetMetrics()
	snap.Endpoints["/api/data"] = EndpointMetrics{RequestCount: 999}

	if got := c.GetMetrics().Endpoints["/api/data"].RequestCount; got != 1 {
		t.Errorf("RequestCount after snapshot mutation = %d, want 1", got)
	}
}

func TestCollector_EmptyEndpoint(t *testing.T) {
	var m EndpointMetrics
	if m.AverageTimeMs() != 0 {
		t.Error("AverageTimeMs() on empty metrics should be 0")
	}
	if m.ErrorRate() != 0 {
		t.Error("ErrorRate() on empty metrics should be 0")
	}
}

func TestCollector_AuxiliarySource(t *testing.T) {
	c := NewCollector()
	c.SetAuxiliarySource(func() AuxiliaryCounters {
		return AuxiliaryCounters{AllowlistSize: 3, DenylistSize: 7}
	})

	snap := c.GetMetrics()
	if snap.Auxiliary.AllowlistSize != 3 {
		t.Errorf("AllowlistSize = %d, want 3", snap.Auxiliary.AllowlistSize)
	}
	if snap.Auxiliary.DenylistSize != 7 {
		t.Errorf("DenylistSize = %d, want 7", snap.Auxiliary.DenylistSize)
	}
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector()

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.UpdateMetrics("/api/data", 1, n%2 == 0)
			}
		}(i)
	}
	wg.Wait()

	data := c.GetMetrics().Endpoints["/api/data"]
	if data.RequestCount != workers*perWorker {
		t.Errorf("RequestCount = %d, want %d", data.RequestCount, workers*perWorker)
	}
	if data.ErrorCount != workers/2*perWorker {
		t.Errorf("ErrorCount = %d, want %d", data.ErrorCount, workers/2*perWorker)
	}
}
