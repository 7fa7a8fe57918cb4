package composition

import (
	"context"
	"time"
)

// Processor is the contract every composed pipeline satisfies: one
// asynchronous, fallible operation. The engine never assumes a concrete
// type behind it.
type Processor interface {
	Process(ctx context.Context, input any, opts map[string]any) (any, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, input any, opts map[string]any) (any, error)

// Process calls the underlying function.
func (f ProcessorFunc) Process(ctx context.Context, input any, opts map[string]any) (any, error) {
	return f(ctx, input, opts)
}

// Trigger gates a cascading layer on an earlier layer's accumulated results.
type Trigger struct {
	// Layer is the id of the earlier layer whose results are examined.
	Layer int `json:"layer"`
	// Predicate receives that layer's accumulated results.
	Predicate func(results []Result) bool `json:"-"`
}

// PipelineRef references an external pipeline together with its
// composition-local metadata. Immutable once the composition is built;
// the engine reads it, it never writes it.
type PipelineRef struct {
	// ID uniquely identifies the pipeline within one composition.
	ID string `json:"id" validate:"required"`
	// Processor is the opaque unit of work.
	Processor Processor `json:"-" validate:"required"`
	// Priority orders pipelines for priority balancing and wait_priority
	// synchronization. Higher runs first; >= 8 counts as high priority.
	Priority int `json:"priority,omitempty"`
	// Weight biases weighted-random balancing. Zero means 1.
	Weight float64 `json:"weight,omitempty"`
	// Timeout bounds one process invocation. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// RetryCount is the retry budget: a pipeline is invoked at most
	// RetryCount+1 times.
	RetryCount int `json:"retry_count,omitempty" validate:"gte=0"`
	// DependsOn lists pipeline ids that must complete before this one starts.
	DependsOn []string `json:"depends_on,omitempty"`
	// Options is passed verbatim to the process operation.
	Options map[string]any `json:"options,omitempty"`
	// Condition admits the pipeline. When it returns false the pipeline is
	// skipped without consuming a slot.
	Condition func(input any) bool `json:"-"`
	// InputTransform derives the pipeline's input from the raw input and
	// all prior results.
	InputTransform func(input any, prior []Result) any `json:"-"`
	// OutputTransform rewrites the pipeline's output before it is recorded.
	OutputTransform func(output any) any `json:"-"`
	// Triggers gate the enclosing cascading layer (cascading only).
	Triggers []Trigger `json:"triggers,omitempty"`
}

// EffectiveWeight returns the balancing weight, defaulting zero to 1.
func (p *PipelineRef) EffectiveWeight() float64 {
	if p.Weight <= 0 {
		return 1
	}
	return p.Weight
}

// ShortCircuit is an output marker: when a sequential composition runs with
// StopOnShortCircuit, a pipeline returning a ShortCircuit value ends the run
// early and Value is recorded as its output.
type ShortCircuit struct {
	Value any
}
