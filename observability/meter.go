package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Instruments holds the metric instruments recorded by the engine.
type Instruments struct {
	compositionTotal    metric.Int64Counter
	compositionDuration metric.Float64Histogram
	pipelineTotal       metric.Int64Counter
	pipelineDuration    metric.Float64Histogram
	pipelineActive      metric.Int64UpDownCounter
	errorTotal          metric.Int64Counter
}

// NewInstruments creates the engine's metric instruments on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	compositionTotal, err := meter.Int64Counter("composition.total",
		metric.WithDescription("Total number of composition executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating composition.total counter: %w", err)
	}

	compositionDuration, err := meter.Float64Histogram("composition.duration",
		metric.WithDescription("Duration of composition executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating composition.duration histogram: %w", err)
	}

	pipelineTotal, err := meter.Int64Counter("pipeline.total",
		metric.WithDescription("Total number of pipeline invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.total counter: %w", err)
	}

	pipelineDuration, err := meter.Float64Histogram("pipeline.duration",
		metric.WithDescription("Duration of pipeline invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.duration histogram: %w", err)
	}

	pipelineActive, err := meter.Int64UpDownCounter("pipeline.active",
		metric.WithDescription("Number of currently running pipelines"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.active counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("engine.errors",
		metric.WithDescription("Total number of pipeline and composition errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engine.errors counter: %w", err)
	}

	return &Instruments{
		compositionTotal:    compositionTotal,
		compositionDuration: compositionDuration,
		pipelineTotal:       pipelineTotal,
		pipelineDuration:    pipelineDuration,
		pipelineActive:      pipelineActive,
		errorTotal:          errorTotal,
	}, nil
}

// RecordComposition records one composition execution.
func (i *Instruments) RecordComposition(ctx context.Context, pattern string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("pattern", pattern),
		attribute.Bool("success", success),
	)
	i.compositionTotal.Add(ctx, 1, attrs)
	i.compositionDuration.Record(ctx, duration.Seconds(), attrs)
	if !success {
		i.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", "composition"),
			attribute.String("pattern", pattern),
		))
	}
}

// RecordPipeline records one pipeline invocation.
func (i *Instruments) RecordPipeline(ctx context.Context, pipelineID string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("pipeline", pipelineID),
		attribute.Bool("success", success),
	)
	i.pipelineTotal.Add(ctx, 1, attrs)
	i.pipelineDuration.Record(ctx, duration.Seconds(), attrs)
	if !success {
		i.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", "pipeline"),
			attribute.String("pipeline", pipelineID),
		))
	}
}

// PipelineStarted increments the active-pipeline gauge.
func (i *Instruments) PipelineStarted(ctx context.Context) {
	i.pipelineActive.Add(ctx, 1)
}

// PipelineSettled decrements the active-pipeline gauge.
func (i *Instruments) PipelineSettled(ctx context.Context) {
	i.pipelineActive.Add(ctx, -1)
}
