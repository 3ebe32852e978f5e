// Package instrumentation provides OpenTelemetry (OTEL) instrumentation
// for the gatekit security pipeline.
//
// It exposes metrics (request counters, latency histograms, cache-size
// gauges) and distributed tracing for every pipeline stage. When
// disabled, no-op providers are used and the overhead is zero.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-service",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
package instrumentation
