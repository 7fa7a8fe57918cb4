package composer

import (
	"context"
	"sort"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/logger"
)

// Cascading executes layers of pipelines in ascending layer-id order.
// The lowest layer always runs; higher layers run only when triggered by
// results of earlier layers. Each layer owns a bounded input buffer and a
// scaling policy that decides its internal concurrency per invocation.
type Cascading struct {
	runner
	scale *scaler
}

// NewCascading creates a cascading composer. Scaling history persists on
// the composer instance, so the predictive policy improves across runs.
func NewCascading(cfg config.EngineConfig, log *logger.Logger, rec Recorder) *Cascading {
	return &Cascading{
		runner: newRunner(cfg, log, rec, "cascading"),
		scale:  newScaler(),
	}
}

// Cancel requests cooperative cancellation of a running execution.
func (c *Cascading) Cancel(executionID string) bool {
	return c.reg.Cancel(executionID)
}

// Execute runs the composition's layers in order and returns the aggregated
// result.
func (c *Cascading) Execute(ctx context.Context, comp *composition.Composition, input any) (*composition.CompositionResult, error) {
	if comp.Pattern != composition.PatternCascading {
		return nil, enginerr.InvalidComposition("cascading composer requires a cascading composition")
	}
	if err := comp.Validate(c.cfg.MaxLayerDepth); err != nil {
		return nil, err
	}

	execID, runCtx, cancel := c.reg.register(ctx)
	defer cancel()
	defer c.reg.deregister(execID)

	log := c.log.WithExecution(comp.ID, execID)
	log.Debug("starting cascading execution", logger.Fields("layers", len(comp.Layers)))

	layers := make([]composition.Layer, len(comp.Layers))
	copy(layers, comp.Layers)
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })

	start := time.Now()
	ec := newExecutionContext()
	run := cascadeRun{
		input:   input,
		current: input,
	}
	runErr := c.runLayers(runCtx, ec, layers, comp.Cascading, &run, log)
	elapsed := time.Since(start)

	errs := ec.Errors()
	success := runErr == nil && len(errs) == 0
	c.record(comp.Pattern, elapsed, success)

	results := aggregateCascade(run.all, comp.Cascading.Aggregation, layers)
	metadata := map[string]any{
		"totalLayers":      len(layers),
		"layersExecuted":   run.executed,
		"layersSkipped":    run.skipped,
		"scalingDecisions": run.decisions,
		"bufferOverflows":  run.overflows,
		"propagation":      string(comp.Cascading.Propagation),
		"aggregation":      string(comp.Cascading.Aggregation),
	}

	result := newCompositionResult(comp, results, errs, elapsed, success, metadata)
	if runErr != nil {
		log.Warn("cascading execution aborted", logger.Fields(logger.FieldError, runErr.Error()))
		return result, runErr
	}

	log.Info("cascading execution finished", logger.Fields(
		logger.FieldStatus, success,
		logger.FieldDuration, elapsed.Milliseconds(),
		"layers_executed", run.executed,
	))
	return result, nil
}

// cascadeRun accumulates per-run state across layers.
type cascadeRun struct {
	input     any
	current   any
	all       []composition.Result
	executed  int
	skipped   []int
	decisions []ScalingDecision
	overflows int
}

func (c *Cascading) runLayers(ctx context.Context, ec *ExecutionContext, layers []composition.Layer, opts composition.CascadingOptions, run *cascadeRun, log *logger.Logger) error {
	opts.ApplyDefaults()

	for i := range layers {
		if err := ctx.Err(); err != nil {
			return enginerr.ExecutionCancelled("").WithCause(err)
		}

		layer := layers[i]
		layer.ApplyDefaults()

		if i > 0 && !layerTriggered(&layer, ec) {
			run.skipped = append(run.skipped, layer.ID)
			log.Debug("layer skipped, no trigger fired", logger.Fields(logger.FieldLayer, layer.ID))
			continue
		}

		buf := newLayerBuffer(c.bufferSize(&layer), layer.Overflow)
		buf.Push(run.current)
		queued, occupancy := buf.Len(), buf.Occupancy()

		decision := c.scale.decide(layer.ID, layer.Scaling, queued, occupancy)
		run.decisions = append(run.decisions, decision)

		layerInput, _ := buf.Pop()
		run.overflows += buf.Dropped()

		layerResults, err := c.runLayer(ctx, ec, &layer, opts, decision, occupancy, layerInput)
		run.executed++

		for j := range layerResults {
			layerResults[j].Layer = layer.ID
			ec.AddLayerResult(layer.ID, layerResults[j])
		}
		run.all = append(run.all, layerResults...)

		if err != nil {
			if opts.Strategy == composition.FailFast {
				return err
			}
			// continue_on_error: failures are already recorded in ec.
		}

		run.current = propagate(opts.Propagation, &layer, layerResults, run.input, run.current)
	}
	return nil
}

// runLayer executes one layer's pipelines under its effective mode.
func (c *Cascading) runLayer(ctx context.Context, ec *ExecutionContext, layer *composition.Layer, opts composition.CascadingOptions, decision ScalingDecision, occupancy float64, input any) ([]composition.Result, error) {
	mode := layer.Mode
	if mode == composition.LayerAdaptive {
		if occupancy > composition.AdaptiveOccupancyThreshold {
			mode = composition.LayerParallel
		} else {
			mode = composition.LayerSequential
		}
	}

	if mode == composition.LayerParallel {
		popts := composition.ParallelOptions{
			MaxConcurrency: decision.Instances,
			Strategy:       opts.Strategy,
			Order:          composition.OrderDeclared,
		}
		outcome := c.runParallel(ctx, ec, layer.Pipelines, popts, input)
		results := collectLayerResults(ec, layer)
		return results, outcome.err
	}

	// Sequential: every pipeline receives the layer's input.
	sopts := composition.SequentialOptions{Strategy: opts.Strategy}
	sopts.ApplyDefaults()
	results, _, err := c.runSequential(ctx, ec, layer.Pipelines, sopts, input)
	return results, err
}

func (c *Cascading) bufferSize(layer *composition.Layer) int {
	if layer.BufferSize > 0 {
		return layer.BufferSize
	}
	return c.cfg.DefaultBufferSize
}

// layerTriggered reports whether any pipeline trigger predicate fires
// against its referenced earlier layer's accumulated results. A layer
// declaring no triggers always runs.
func layerTriggered(layer *composition.Layer, ec *ExecutionContext) bool {
	declared := false
	for i := range layer.Pipelines {
		for _, trig := range layer.Pipelines[i].Triggers {
			declared = true
			if trig.Predicate == nil {
				continue
			}
			if trig.Predicate(ec.LayerResults(trig.Layer)) {
				return true
			}
		}
	}
	return !declared
}

// collectLayerResults gathers the shared context's results for one layer's
// pipelines, in declared order. Pipeline ids are unique across the
// composition, so no cross-layer collision is possible.
func collectLayerResults(ec *ExecutionContext, layer *composition.Layer) []composition.Result {
	results := make([]composition.Result, 0, len(layer.Pipelines))
	for i := range layer.Pipelines {
		if res, ok := ec.Completed(layer.Pipelines[i].ID); ok {
			results = append(results, res)
		}
	}
	return results
}

// propagate computes the next layer's input from the current layer's
// results.
func propagate(mode composition.PropagationMode, layer *composition.Layer, results []composition.Result, original, current any) any {
	switch mode {
	case composition.PropagateBatched:
		outputs := make([]any, 0, len(results))
		for _, res := range results {
			if res.Success && !res.Skipped {
				outputs = append(outputs, res.Output)
			}
		}
		return composition.LayerBatch{Original: original, Outputs: outputs}
	case composition.PropagateThreshold:
		succeeded := 0
		for _, res := range results {
			if res.Success && !res.Skipped {
				succeeded++
			}
		}
		if succeeded*2 < len(layer.Pipelines) {
			return current
		}
		return lastOutput(results, current)
	default: // immediate
		return lastOutput(results, current)
	}
}

func lastOutput(results []composition.Result, fallback any) any {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Success && !results[i].Skipped {
			return results[i].Output
		}
	}
	return fallback
}

// aggregateCascade shapes the final result list per the aggregation mode.
func aggregateCascade(all []composition.Result, mode composition.AggregationMode, layers []composition.Layer) []composition.Result {
	switch mode {
	case composition.AggregateGlobal:
		if len(all) == 0 {
			return nil
		}
		outputs := make([]any, 0, len(all))
		allOK := true
		var total time.Duration
		for _, res := range all {
			outputs = append(outputs, res.Output)
			total += res.Duration
			if !res.Success {
				allOK = false
			}
		}
		return []composition.Result{{
			PipelineID: "global",
			Output:     outputs,
			Success:    allOK,
			Duration:   total,
		}}
	case composition.AggregateSelective:
		lastPerLayer := make(map[int]composition.Result, len(layers))
		for _, res := range all {
			lastPerLayer[res.Layer] = res
		}
		out := make([]composition.Result, 0, len(lastPerLayer))
		for _, layer := range layers {
			if res, ok := lastPerLayer[layer.ID]; ok {
				out = append(out, res)
			}
		}
		return out
	default: // per_layer
		return all
	}
}
