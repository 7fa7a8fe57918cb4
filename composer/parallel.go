package composer

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/logger"
	"github.com/skillsenselab/composekit/resilience"
)

// Parallel executes pipelines concurrently under a concurrency cap with
// dependency gating, load balancing, and configurable synchronization.
type Parallel struct {
	runner
}

// NewParallel creates a parallel composer.
func NewParallel(cfg config.EngineConfig, log *logger.Logger, rec Recorder) *Parallel {
	return &Parallel{runner: newRunner(cfg, log, rec, "parallel")}
}

// Cancel requests cooperative cancellation of a running execution.
func (p *Parallel) Cancel(executionID string) bool {
	return p.reg.Cancel(executionID)
}

// Execute runs the composition's pipelines concurrently and returns the
// assembled result once the synchronization strategy is satisfied.
func (p *Parallel) Execute(ctx context.Context, comp *composition.Composition, input any) (*composition.CompositionResult, error) {
	if comp.Pattern != composition.PatternParallel {
		return nil, enginerr.InvalidComposition("parallel composer requires a parallel composition")
	}
	if err := comp.Validate(p.cfg.MaxLayerDepth); err != nil {
		return nil, err
	}

	execID, runCtx, cancel := p.reg.register(ctx)
	defer cancel()
	defer p.reg.deregister(execID)

	log := p.log.WithExecution(comp.ID, execID)
	log.Debug("starting parallel execution", logger.Fields(
		"pipelines", len(comp.Pipelines),
		"max_concurrency", p.maxConcurrency(comp.Parallel),
		"sync", string(comp.Parallel.Sync),
	))

	start := time.Now()
	ec := newExecutionContext()
	outcome := p.runParallel(runCtx, ec, comp.Pipelines, comp.Parallel, input)
	elapsed := time.Since(start)

	results := orderResults(ec.Results(), comp.Parallel.Order, comp.Pipelines)
	errs := ec.Errors()
	success := outcome.err == nil && len(errs) == 0
	p.record(comp.Pattern, elapsed, success)

	metadata := map[string]any{
		"maxConcurrency":  p.maxConcurrency(comp.Parallel),
		"balancing":       string(comp.Parallel.Balancing),
		"sync":            string(comp.Parallel.Sync),
		"attempted":       ec.ConcludedCount(),
		"unattempted":     outcome.unattempted,
		"earlyTerminated": outcome.earlyTerminated,
	}

	result := newCompositionResult(comp, results, errs, elapsed, success, metadata)
	if outcome.err != nil {
		log.Warn("parallel execution aborted", logger.Fields(logger.FieldError, outcome.err.Error()))
		return result, outcome.err
	}

	log.Info("parallel execution finished", logger.Fields(
		logger.FieldStatus, success,
		logger.FieldDuration, elapsed.Milliseconds(),
	))
	return result, nil
}

func (r *runner) maxConcurrency(opts composition.ParallelOptions) int {
	if opts.MaxConcurrency > 0 {
		return opts.MaxConcurrency
	}
	return r.cfg.DefaultMaxConcurrency
}

// parallelOutcome summarizes how the admission loop ended.
type parallelOutcome struct {
	err             error
	earlyTerminated bool
	unattempted     []string
}

// runParallel is the pattern's admission loop, shared with the adaptive
// composer's parallel delegation.
//
// Admission re-evaluates on every settle event: while pipelines remain
// pending and a bulkhead slot is free, the next ready pipeline (all
// declared dependencies completed) is selected by the balancer and
// launched. A pipeline with unmet dependencies blocks individually; it
// never blocks ready siblings.
func (r *runner) runParallel(ctx context.Context, ec *ExecutionContext, pipelines []composition.PipelineRef, opts composition.ParallelOptions, input any) parallelOutcome {
	opts.ApplyDefaults()

	runCtx, stopRunning := context.WithCancel(ctx)
	defer stopRunning()

	bh := resilience.NewBulkhead(r.maxConcurrency(opts))
	bal := newBalancer(opts.Balancing)

	pending := make([]int, len(pipelines))
	for i := range pipelines {
		pending[i] = i
	}

	var wg sync.WaitGroup
	outcome := parallelOutcome{}
	admissionOpen := true

	for {
		if err := ctx.Err(); err != nil {
			outcome.err = enginerr.ExecutionCancelled("").WithCause(err)
			break
		}

		if syncSatisfied(opts.Sync, ec, pipelines) {
			break
		}
		if ec.RunningCount() == 0 && (len(pending) == 0 || !admissionOpen) {
			break
		}

		if admissionOpen && opts.EarlyTermination != nil && opts.EarlyTermination(ec.Results()) {
			admissionOpen = false
			outcome.earlyTerminated = true
		}

		if admissionOpen {
			var abort error
			pending, abort = r.admit(runCtx, ec, &wg, bh, bal, pending, pipelines, opts, input)
			if abort != nil {
				outcome.err = abort
				break
			}
		}

		if opts.Strategy == composition.FailFast {
			if first := firstFailure(ec); first != nil {
				outcome.err = first
				break
			}
		}

		// Deadlock: work remains but nothing runs and nothing can start.
		if admissionOpen && ec.RunningCount() == 0 && len(pending) > 0 {
			if ready, _ := readyPipelines(pending, pipelines, ec); len(ready) == 0 {
				for _, idx := range pending {
					id := pipelines[idx].ID
					ec.Fail(id, enginerr.DependencyWaitCancelled(id), 0)
				}
				pending = nil
				continue
			}
		}

		if err := r.waitForChange(ctx, ec); err != nil {
			outcome.err = enginerr.ExecutionCancelled("").WithCause(err)
			break
		}
	}

	// Stop whatever is still running and let it settle cooperatively.
	stopRunning()
	wg.Wait()

	for _, idx := range pending {
		outcome.unattempted = append(outcome.unattempted, pipelines[idx].ID)
	}
	return outcome
}

// admit launches ready pipelines while bulkhead slots are free. Pipelines
// whose dependencies terminally failed are failed immediately. Returns the
// remaining pending set.
func (r *runner) admit(runCtx context.Context, ec *ExecutionContext, wg *sync.WaitGroup, bh *resilience.Bulkhead, bal balancer, pending []int, pipelines []composition.PipelineRef, opts composition.ParallelOptions, input any) ([]int, error) {
	for {
		ready, depFailed := readyPipelines(pending, pipelines, ec)

		for _, idx := range depFailed {
			id := pipelines[idx].ID
			_, failedDep := ec.DependencyState(pipelines[idx].DependsOn)
			err := enginerr.PipelineFailed(id, enginerr.New(enginerr.ErrCodePipelineFailed,
				"dependency "+failedDep+" failed"))
			err.Retryable = false
			ec.Fail(id, err, 0)
			pending = removeIndex(pending, idx)
			if opts.Strategy == composition.FailFast {
				return pending, err
			}
		}

		if len(ready) == 0 {
			return pending, nil
		}
		if !bh.TryAcquire() {
			return pending, nil
		}

		pick := bal.next(ready, pipelines, ec)
		pending = removeIndex(pending, pick)

		ref := &pipelines[pick]
		ec.MarkRunning(ref.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer bh.Release()
			res := r.invoke(runCtx, ref, input, nil)
			switch {
			case res.Success:
				ec.Complete(res)
			case enginerr.CodeOf(res.Err) == enginerr.ErrCodeExecutionCancelled:
				// Cancelled by the stopping condition, not failed.
				ec.Abandon(ref.ID)
			default:
				ec.Fail(ref.ID, res.Err, res.Duration)
			}
		}()
	}
}

// readyPipelines partitions the pending set into those whose dependencies
// are all completed and those whose dependencies terminally failed.
func readyPipelines(pending []int, pipelines []composition.PipelineRef, ec *ExecutionContext) (ready, depFailed []int) {
	for _, idx := range pending {
		switch state, _ := ec.DependencyState(pipelines[idx].DependsOn); state {
		case depsMet:
			ready = append(ready, idx)
		case depsFailed:
			depFailed = append(depFailed, idx)
		}
	}
	return ready, depFailed
}

// syncSatisfied reports whether the run's stopping condition is met.
func syncSatisfied(sync composition.SyncStrategy, ec *ExecutionContext, pipelines []composition.PipelineRef) bool {
	total := len(pipelines)
	switch sync {
	case composition.WaitAny:
		return ec.ConcludedCount() >= 1
	case composition.WaitMajority:
		return ec.ConcludedCount() > total/2
	case composition.WaitPriority:
		sawHigh := false
		for i := range pipelines {
			if pipelines[i].Priority >= composition.HighPriorityThreshold {
				sawHigh = true
				if !ec.Concluded(pipelines[i].ID) {
					return false
				}
			}
		}
		if sawHigh {
			return true
		}
		// No high-priority pipelines declared: behave like wait_all.
		return ec.ConcludedCount() >= total
	default: // wait_all
		return ec.ConcludedCount() >= total
	}
}

// firstFailure returns the earliest recorded failure, if any.
func firstFailure(ec *ExecutionContext) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, id := range ec.completionOrder {
		if err, ok := ec.failed[id]; ok {
			return err
		}
	}
	return nil
}

func removeIndex(pending []int, target int) []int {
	out := pending[:0]
	for _, idx := range pending {
		if idx != target {
			out = append(out, idx)
		}
	}
	return out
}
