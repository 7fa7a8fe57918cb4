package composer

import (
	"context"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/logger"
	"github.com/skillsenselab/composekit/observability"
)

// WithTracing wraps a Processor with OpenTelemetry span creation.
// Each invocation creates a span named "{prefix}.{pipelineID}".
func WithTracing(p composition.Processor, prefix, pipelineID string) composition.Processor {
	return &tracingProcessor{inner: p, prefix: prefix, pipelineID: pipelineID}
}

type tracingProcessor struct {
	inner      composition.Processor
	prefix     string
	pipelineID string
}

func (t *tracingProcessor) Process(ctx context.Context, input any, opts map[string]any) (any, error) {
	ctx, span := observability.StartSpan(ctx, t.prefix+"."+t.pipelineID)
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrPipelineID, t.pipelineID)

	output, err := t.inner.Process(ctx, input, opts)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return output, err
}

// WithMetrics wraps a Processor with metric recording: per-pipeline count,
// duration, and active gauge.
func WithMetrics(p composition.Processor, pipelineID string, inst *observability.Instruments) composition.Processor {
	return &metricsProcessor{inner: p, pipelineID: pipelineID, inst: inst}
}

type metricsProcessor struct {
	inner      composition.Processor
	pipelineID string
	inst       *observability.Instruments
}

func (m *metricsProcessor) Process(ctx context.Context, input any, opts map[string]any) (any, error) {
	m.inst.PipelineStarted(ctx)
	start := time.Now()

	output, err := m.inner.Process(ctx, input, opts)

	m.inst.PipelineSettled(ctx)
	m.inst.RecordPipeline(ctx, m.pipelineID, time.Since(start), err == nil)
	return output, err
}

// WithLogging wraps a Processor with invocation logging: pipeline id,
// duration, and success or error status.
func WithLogging(p composition.Processor, pipelineID string, log *logger.Logger) composition.Processor {
	return &loggingProcessor{inner: p, pipelineID: pipelineID, log: log}
}

type loggingProcessor struct {
	inner      composition.Processor
	pipelineID string
	log        *logger.Logger
}

func (l *loggingProcessor) Process(ctx context.Context, input any, opts map[string]any) (any, error) {
	start := time.Now()
	output, err := l.inner.Process(ctx, input, opts)
	duration := time.Since(start)

	if err != nil {
		l.log.Error("pipeline process failed", logger.Fields(
			logger.FieldPipeline, l.pipelineID,
			logger.FieldDuration, duration.String(),
			logger.FieldError, err.Error(),
		))
		return output, err
	}

	l.log.Debug("pipeline process completed", logger.Fields(
		logger.FieldPipeline, l.pipelineID,
		logger.FieldDuration, duration.String(),
	))
	return output, err
}
