package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceVersion is used when no version is provided
	DefaultServiceVersion = "unknown"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service embedding the pipeline
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used (zero overhead).
	Enabled bool

	// LogClientIPs controls whether client IP addresses are included in
	// traces and metrics. Client IPs may be PII under GDPR and similar
	// regulations; disable in strict jurisdictions.
	LogClientIPs bool

	// Resource allows custom resource attributes.
	// If nil, a default resource is created from name and version.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry components for the pipeline
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	// Shutdown functions (registered during New() only, not thread-safe
	// after initialization)
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = "gatekit"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	var res *resource.Resource
	var err error
	if config.Resource != nil {
		res = config.Resource
	} else {
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	// No-op providers either way for now; exporters (Prometheus, OTLP)
	// plug in through the provider fields without API changes.
	inst.meterProvider = noop.NewMeterProvider()
	inst.tracerProvider = tracenoop.NewTracerProvider()

	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// Shutdown gracefully shuts down all instrumentation providers.
// Call when the application is terminating.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil {
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope.
// Scopes are layer names like "pipeline", "auth", "ratelimit", "cache".
// The full name will be "github.com/gatekit/gatekit/{scope}".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter("github.com/gatekit/gatekit/" + scope)
}

// Tracer returns a named tracer for the given scope.
// The full name will be "github.com/gatekit/gatekit/{scope}".
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer("github.com/gatekit/gatekit/" + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// ShouldLogClientIPs returns whether client IP addresses should be
// included in observability data.
func (i *Instrumentation) ShouldLogClientIPs() bool {
	return i.config.LogClientIPs
}

// SizeCallback is a function that returns the current size of a
// pipeline component.
type SizeCallback func() int64

// RegisterSizeCallbacks registers observable-gauge callbacks for the
// pipeline's bounded stores. Pass nil for any component that is not
// wired.
//
// Example:
//
//	inst.RegisterSizeCallbacks(
//	    func() int64 { a, _ := filter.ListSizes(); return int64(a) },
//	    func() int64 { _, d := filter.ListSizes(); return int64(d) },
//	    func() int64 { return int64(csrf.GetStats().Entries) },
//	    func() int64 { return int64(store.Keys()) },
//	)
func (i *Instrumentation) RegisterSizeCallbacks(
	allowlistSize, denylistSize, csrfTokenCount, rateLimitKeys SizeCallback,
) error {
	if i.meterProvider == nil {
		return fmt.Errorf("meter provider not initialized")
	}

	meter := i.Meter("pipeline")

	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if allowlistSize != nil {
				observer.ObserveInt64(i.metrics.IPAllowlistSize, allowlistSize())
			}
			if denylistSize != nil {
				observer.ObserveInt64(i.metrics.IPDenylistSize, denylistSize())
			}
			if csrfTokenCount != nil {
				observer.ObserveInt64(i.metrics.CSRFTokenCount, csrfTokenCount())
			}
			if rateLimitKeys != nil {
				observer.ObserveInt64(i.metrics.RateLimitTrackedKeys, rateLimitKeys())
			}
			return nil
		},
		i.metrics.IPAllowlistSize,
		i.metrics.IPDenylistSize,
		i.metrics.CSRFTokenCount,
		i.metrics.RateLimitTrackedKeys,
	)

	return err
}
