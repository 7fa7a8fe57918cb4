// Package observability provides OpenTelemetry instrumentation for the
// composition engine: OTLP HTTP exporters for metrics and traces, plus the
// instrument set the composer decorators and the metrics bridge record to.
//
// Initialization is optional. When no provider is initialized the otel
// globals are no-ops, so composers can be instrumented unconditionally.
//
//	mp, _ := observability.InitMeter(ctx, observability.DefaultMeterConfig("composekit"))
//	defer mp.Shutdown(ctx)
package observability
