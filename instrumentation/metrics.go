package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the pipeline
type Metrics struct {
	// Pipeline metrics
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
	RequestsBlocked metric.Int64Counter

	// Security metrics
	RateLimitExceeded metric.Int64Counter
	AuthFailures      metric.Int64Counter
	CSRFRejected      metric.Int64Counter

	// Component size gauges (observed via RegisterSizeCallbacks)
	IPAllowlistSize      metric.Int64ObservableGauge
	IPDenylistSize       metric.Int64ObservableGauge
	CSRFTokenCount       metric.Int64ObservableGauge
	RateLimitTrackedKeys metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	pipelineMeter := inst.Meter("pipeline")
	securityMeter := inst.Meter("security")

	var err error
	m.RequestsTotal, err = pipelineMeter.Int64Counter(
		"gatekit.pipeline.requests.total",
		metric.WithDescription("Total number of requests processed by the pipeline"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline.requests.total counter: %w", err)
	}

	m.RequestDuration, err = pipelineMeter.Float64Histogram(
		"gatekit.pipeline.request.duration",
		metric.WithDescription("Pipeline request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline.request.duration histogram: %w", err)
	}

	m.RequestsBlocked, err = pipelineMeter.Int64Counter(
		"gatekit.pipeline.requests.blocked",
		metric.WithDescription("Number of requests blocked by a pipeline stage"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline.requests.blocked counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"gatekit.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.AuthFailures, err = securityMeter.Int64Counter(
		"gatekit.auth.failures",
		metric.WithDescription("Number of authentication failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.failures counter: %w", err)
	}

	m.CSRFRejected, err = securityMeter.Int64Counter(
		"gatekit.csrf.rejected",
		metric.WithDescription("Number of CSRF validation failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.rejected counter: %w", err)
	}

	m.IPAllowlistSize, err = securityMeter.Int64ObservableGauge(
		"gatekit.ip.allowlist.size",
		metric.WithDescription("Current number of allow-listed IPs"),
		metric.WithUnit("{ip}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ip.allowlist.size gauge: %w", err)
	}

	m.IPDenylistSize, err = securityMeter.Int64ObservableGauge(
		"gatekit.ip.denylist.size",
		metric.WithDescription("Current number of deny-listed IPs"),
		metric.WithUnit("{ip}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ip.denylist.size gauge: %w", err)
	}

	m.CSRFTokenCount, err = securityMeter.Int64ObservableGauge(
		"gatekit.csrf.tokens",
		metric.WithDescription("Current number of live CSRF tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.tokens gauge: %w", err)
	}

	m.RateLimitTrackedKeys, err = securityMeter.Int64ObservableGauge(
		"gatekit.rate_limit.tracked_keys",
		metric.WithDescription("Current number of tracked rate-limit keys"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.tracked_keys gauge: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordRequest records one completed pipeline request
func (m *Metrics) RecordRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	}

	m.RequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordBlocked records a request rejected by a pipeline stage
func (m *Metrics) RecordBlocked(ctx context.Context, reason string) {
	m.RequestsBlocked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordAuthFailure records an authentication failure by error code
func (m *Metrics) RecordAuthFailure(ctx context.Context, errorCode string) {
	m.AuthFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_code", errorCode),
	))
}

// RecordCSRFRejected records a CSRF validation failure
func (m *Metrics) RecordCSRFRejected(ctx context.Context) {
	m.CSRFRejected.Add(ctx, 1)
}
