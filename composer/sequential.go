package composer

import (
	"context"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/logger"
)

// Sequential executes pipelines strictly in declared order, optionally
// piping each pipeline's output into the next. It is the baseline pattern
// the other composers compare against.
type Sequential struct {
	runner
}

// NewSequential creates a sequential composer.
func NewSequential(cfg config.EngineConfig, log *logger.Logger, rec Recorder) *Sequential {
	return &Sequential{runner: newRunner(cfg, log, rec, "sequential")}
}

// Cancel requests cooperative cancellation of a running execution.
func (s *Sequential) Cancel(executionID string) bool {
	return s.reg.Cancel(executionID)
}

// Execute runs the composition against the given input and returns the
// assembled result. Under fail_fast the first unrecovered pipeline error is
// returned alongside the partial result.
func (s *Sequential) Execute(ctx context.Context, comp *composition.Composition, input any) (*composition.CompositionResult, error) {
	if comp.Pattern != composition.PatternSequential {
		return nil, enginerr.InvalidComposition("sequential composer requires a sequential composition")
	}
	if err := comp.Validate(s.cfg.MaxLayerDepth); err != nil {
		return nil, err
	}

	execID, runCtx, cancel := s.reg.register(ctx)
	defer cancel()
	defer s.reg.deregister(execID)

	log := s.log.WithExecution(comp.ID, execID)
	log.Debug("starting sequential execution", logger.Fields("pipelines", len(comp.Pipelines)))

	start := time.Now()
	ec := newExecutionContext()
	results, errs, runErr := s.runSequential(runCtx, ec, comp.Pipelines, comp.Sequential, input)
	elapsed := time.Since(start)

	success := runErr == nil && len(errs) == 0
	s.record(comp.Pattern, elapsed, success)

	shaped := shapeSequentialResults(results, comp.Sequential)
	metadata := sequentialMetadata(comp, results)

	result := newCompositionResult(comp, shaped, errs, elapsed, success, metadata)
	if runErr != nil {
		log.Warn("sequential execution aborted", logger.Fields(logger.FieldError, runErr.Error()))
		return result, runErr
	}

	log.Info("sequential execution finished", logger.Fields(
		logger.FieldStatus, success,
		logger.FieldDuration, elapsed.Milliseconds(),
	))
	return result, nil
}

// runSequential is the pattern's core loop, shared with the adaptive
// composer's sequential delegation.
func (r *runner) runSequential(ctx context.Context, ec *ExecutionContext, pipelines []composition.PipelineRef, opts composition.SequentialOptions, input any) ([]composition.Result, []composition.PipelineError, error) {
	var (
		results []composition.Result
		errs    []composition.PipelineError
		current = input
		piped   = false
	)

	for i := range pipelines {
		if err := ctx.Err(); err != nil {
			return results, errs, enginerr.ExecutionCancelled("").WithCause(err)
		}

		ref := &pipelines[i]
		pipelineInput := input
		if opts.PassPreviousResults && piped {
			pipelineInput = current
		}

		ec.MarkRunning(ref.ID)
		res := r.invoke(ctx, ref, pipelineInput, results)

		if res.Skipped {
			ec.Complete(res)
			results = append(results, res)
			continue
		}

		if !res.Success {
			ec.Fail(ref.ID, res.Err, res.Duration)
			results = append(results, res)
			errs = append(errs, composition.PipelineError{
				PipelineID: ref.ID,
				Err:        res.Err,
				Message:    res.Err.Error(),
			})
			if opts.Strategy == composition.FailFast {
				return results, errs, res.Err
			}
			continue
		}

		if opts.StopOnShortCircuit {
			if sc, ok := res.Output.(composition.ShortCircuit); ok {
				res.Output = sc.Value
				ec.Complete(res)
				results = append(results, res)
				break
			}
		}

		ec.Complete(res)
		results = append(results, res)
		current = res.Output
		piped = true
	}

	return results, errs, nil
}

// shapeSequentialResults applies the return mode and optional aggregation.
func shapeSequentialResults(results []composition.Result, opts composition.SequentialOptions) []composition.Result {
	shaped := results
	switch opts.ReturnMode {
	case composition.ReturnLast:
		if len(results) > 0 {
			shaped = results[len(results)-1:]
		}
	case composition.ReturnSuccessful:
		shaped = make([]composition.Result, 0, len(results))
		for _, res := range results {
			if res.Success && !res.Skipped {
				shaped = append(shaped, res)
			}
		}
	}

	if !opts.Aggregate || len(shaped) == 0 {
		return shaped
	}

	outputs := make([]any, 0, len(shaped))
	allOK := true
	var total time.Duration
	for _, res := range shaped {
		outputs = append(outputs, res.Output)
		total += res.Duration
		if !res.Success {
			allOK = false
		}
	}
	return []composition.Result{{
		PipelineID: "aggregate",
		Output:     outputs,
		Success:    allOK,
		Duration:   total,
	}}
}

func sequentialMetadata(comp *composition.Composition, results []composition.Result) map[string]any {
	var skipped []string
	executed := 0
	for _, res := range results {
		if res.Skipped {
			skipped = append(skipped, res.PipelineID)
			continue
		}
		executed++
	}
	return map[string]any{
		"pipelinesDeclared": len(comp.Pipelines),
		"pipelinesExecuted": executed,
		"pipelinesSkipped":  skipped,
	}
}
