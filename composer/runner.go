package composer

import (
	"context"
	"sort"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/logger"
	"github.com/skillsenselab/composekit/resilience"
)

// Recorder receives one record per composition execution. The metrics
// aggregator implements it; composers only ever call this one method, so
// the dependency points from composer to metrics and never back.
type Recorder interface {
	RecordExecution(pattern composition.Pattern, executionTime time.Duration, success bool)
}

// runner carries the state and helpers shared by all four composers.
type runner struct {
	cfg config.EngineConfig
	log *logger.Logger
	rec Recorder
	reg *Registry
}

func newRunner(cfg config.EngineConfig, log *logger.Logger, rec Recorder, component string) runner {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return runner{
		cfg: cfg,
		log: log.WithComponent(component),
		rec: rec,
		reg: NewRegistry(),
	}
}

func (r *runner) record(pattern composition.Pattern, d time.Duration, success bool) {
	if r.rec != nil {
		r.rec.RecordExecution(pattern, d, success)
	}
}

// invoke drives one pipeline: admission condition, input transform, the
// timeout-vs-process race, the retry budget, and the output transform.
// The returned Result carries Success=false and Err when the pipeline
// ultimately failed; recording into the ExecutionContext is the caller's
// job so each composer controls its own bookkeeping.
func (r *runner) invoke(ctx context.Context, ref *composition.PipelineRef, input any, prior []composition.Result) composition.Result {
	start := time.Now()

	if ref.Condition != nil && !ref.Condition(input) {
		r.log.Debug("pipeline skipped by condition", logger.Fields(logger.FieldPipeline, ref.ID))
		return composition.Result{PipelineID: ref.ID, Skipped: true, Success: true}
	}

	processInput := input
	if ref.InputTransform != nil {
		processInput = ref.InputTransform(input, prior)
	}

	attempts := 0
	policy := resilience.RetryPolicy{
		MaxAttempts: ref.RetryCount + 1,
		BaseDelay:   r.cfg.RetryBackoffBase,
		MaxDelay:    r.cfg.MaxRetryBackoff,
		RetryIf:     enginerr.IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			r.log.Debug("retrying pipeline", logger.Fields(
				logger.FieldPipeline, ref.ID,
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"backoff", delay.String(),
			))
		},
	}

	output, err := resilience.Do(ctx, policy, func(attempt int) (any, error) {
		attempts = attempt + 1
		return r.processOnce(ctx, ref, processInput)
	})

	duration := time.Since(start)

	if err != nil {
		if attempts > 1 {
			err = enginerr.RetriesExhausted(ref.ID, attempts, err)
		}
		return composition.Result{
			PipelineID: ref.ID,
			Success:    false,
			Err:        err,
			Duration:   duration,
			Attempts:   attempts,
		}
	}

	if ref.OutputTransform != nil {
		output = ref.OutputTransform(output)
	}

	return composition.Result{
		PipelineID: ref.ID,
		Output:     output,
		Success:    true,
		Duration:   duration,
		Attempts:   attempts,
	}
}

// processOnce races one process invocation against the pipeline's timeout.
// A timeout is a retryable failure; cancellation of the owning execution
// is not.
func (r *runner) processOnce(ctx context.Context, ref *composition.PipelineRef, input any) (any, error) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if ref.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, ref.Timeout)
	}
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := ref.Processor.Process(runCtx, input, ref.Options)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if ctx.Err() != nil {
				return nil, enginerr.ExecutionCancelled("").WithCause(ctx.Err())
			}
			if runCtx.Err() == context.DeadlineExceeded {
				return nil, enginerr.PipelineTimeout(ref.ID, ref.Timeout)
			}
			return nil, enginerr.PipelineFailed(ref.ID, o.err)
		}
		return o.output, nil
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, enginerr.ExecutionCancelled("").WithCause(ctx.Err())
		}
		return nil, enginerr.PipelineTimeout(ref.ID, ref.Timeout)
	}
}

// waitForChange blocks until a pipeline settles, the safety tick fires, or
// the context is cancelled.
func (r *runner) waitForChange(ctx context.Context, ec *ExecutionContext) error {
	timer := time.NewTimer(r.cfg.TickInterval)
	defer timer.Stop()
	select {
	case <-ec.changeSignal():
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// orderResults arranges a parallel run's results per the configured order.
func orderResults(results []composition.Result, order composition.ResultOrder, declared []composition.PipelineRef) []composition.Result {
	switch order {
	case composition.OrderDeclared:
		index := make(map[string]int, len(declared))
		for i, p := range declared {
			index[p.ID] = i
		}
		sorted := make([]composition.Result, len(results))
		copy(sorted, results)
		sort.SliceStable(sorted, func(i, j int) bool {
			return index[sorted[i].PipelineID] < index[sorted[j].PipelineID]
		})
		return sorted
	case composition.OrderPriority:
		prio := make(map[string]int, len(declared))
		for _, p := range declared {
			prio[p.ID] = p.Priority
		}
		sorted := make([]composition.Result, len(results))
		copy(sorted, results)
		sort.SliceStable(sorted, func(i, j int) bool {
			return prio[sorted[i].PipelineID] > prio[sorted[j].PipelineID]
		})
		return sorted
	default:
		return results
	}
}

// newCompositionResult assembles the caller-facing result value.
func newCompositionResult(comp *composition.Composition, results []composition.Result, errs []composition.PipelineError, elapsed time.Duration, success bool, metadata map[string]any) *composition.CompositionResult {
	return &composition.CompositionResult{
		CompositionID: comp.ID,
		Pattern:       comp.Pattern,
		Success:       success,
		Results:       results,
		Errors:        errs,
		ExecutionTime: elapsed,
		Timestamp:     time.Now(),
		Metadata:      metadata,
	}
}
