package composition

// Pattern tags the execution pattern a composition runs under.
type Pattern string

const (
	PatternSequential Pattern = "sequential"
	PatternParallel   Pattern = "parallel"
	PatternCascading  Pattern = "cascading"
	PatternAdaptive   Pattern = "adaptive"
)

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternSequential, PatternParallel, PatternCascading, PatternAdaptive:
		return true
	}
	return false
}

// FailureStrategy controls how a composer reacts to an unrecovered
// pipeline failure.
type FailureStrategy string

const (
	// FailFast aborts the run and surfaces the first error.
	FailFast FailureStrategy = "fail_fast"
	// ContinueOnError records the error and proceeds.
	ContinueOnError FailureStrategy = "continue_on_error"
)

// ReturnMode selects which results a sequential run returns.
type ReturnMode string

const (
	ReturnAll        ReturnMode = "all"
	ReturnLast       ReturnMode = "last"
	ReturnSuccessful ReturnMode = "successful_only"
)

// SequentialOptions configures the sequential composer.
type SequentialOptions struct {
	// PassPreviousResults pipes each pipeline's output into the next.
	PassPreviousResults bool `json:"pass_previous_results"`
	// StopOnShortCircuit ends the run early when a result carries the
	// ShortCircuit marker.
	StopOnShortCircuit bool `json:"stop_on_short_circuit"`
	// ReturnMode selects the result subset returned. Default "all".
	ReturnMode ReturnMode `json:"return_mode"`
	// Aggregate wraps the returned results into one synthetic result.
	Aggregate bool `json:"aggregate"`
	// Strategy is the failure policy. Default fail_fast.
	Strategy FailureStrategy `json:"strategy"`
}

// ApplyDefaults applies default values to sequential options.
func (o *SequentialOptions) ApplyDefaults() {
	if o.ReturnMode == "" {
		o.ReturnMode = ReturnAll
	}
	if o.Strategy == "" {
		o.Strategy = FailFast
	}
}

// BalancingStrategy selects among ready pipelines during admission.
type BalancingStrategy string

const (
	BalanceRoundRobin     BalancingStrategy = "round_robin"
	BalancePriority       BalancingStrategy = "priority"
	BalanceWeightedRandom BalancingStrategy = "weighted_random"
	BalanceLeastLoaded    BalancingStrategy = "least_loaded"
)

// SyncStrategy determines a parallel run's stopping condition.
type SyncStrategy string

const (
	WaitAll      SyncStrategy = "wait_all"
	WaitAny      SyncStrategy = "wait_any"
	WaitMajority SyncStrategy = "wait_majority"
	WaitPriority SyncStrategy = "wait_priority"
)

// HighPriorityThreshold is the priority at and above which a pipeline
// participates in wait_priority synchronization.
const HighPriorityThreshold = 8

// ResultOrder selects the ordering of a parallel run's results.
type ResultOrder string

const (
	OrderCompletion ResultOrder = "completion"
	OrderDeclared   ResultOrder = "declared"
	OrderPriority   ResultOrder = "priority"
)

// ParallelOptions configures the parallel composer.
type ParallelOptions struct {
	// MaxConcurrency caps concurrently running pipelines. Zero uses the
	// engine default.
	MaxConcurrency int `json:"max_concurrency" validate:"gte=0"`
	// Balancing selects the load-balancing strategy. Default round_robin.
	Balancing BalancingStrategy `json:"balancing"`
	// Sync selects the stopping condition. Default wait_all.
	Sync SyncStrategy `json:"sync"`
	// Order selects result ordering. Default completion.
	Order ResultOrder `json:"order"`
	// Strategy is the failure policy. Default continue_on_error.
	Strategy FailureStrategy `json:"strategy"`
	// EarlyTermination, when set, is evaluated against accumulated results
	// on each loop tick; returning true stops further admission.
	EarlyTermination func(results []Result) bool `json:"-"`
}

// ApplyDefaults applies default values to parallel options.
func (o *ParallelOptions) ApplyDefaults() {
	if o.Balancing == "" {
		o.Balancing = BalanceRoundRobin
	}
	if o.Sync == "" {
		o.Sync = WaitAll
	}
	if o.Order == "" {
		o.Order = OrderCompletion
	}
	if o.Strategy == "" {
		o.Strategy = ContinueOnError
	}
}

// PropagationMode controls how results move between cascading layers.
type PropagationMode string

const (
	// PropagateImmediate feeds the last result of layer N into layer N+1.
	PropagateImmediate PropagationMode = "immediate"
	// PropagateBatched packages all of layer N's outputs with the original input.
	PropagateBatched PropagationMode = "batched"
	// PropagateThreshold propagates only if at least half the layer's
	// pipelines succeeded; otherwise the prior input flows on unchanged.
	PropagateThreshold PropagationMode = "threshold_based"
)

// AggregationMode controls the final shape of a cascading run's results.
type AggregationMode string

const (
	// AggregatePerLayer returns every result, layer-tagged.
	AggregatePerLayer AggregationMode = "per_layer"
	// AggregateGlobal returns one synthetic result wrapping every layer's outputs.
	AggregateGlobal AggregationMode = "global"
	// AggregateSelective returns only the last result recorded per layer.
	AggregateSelective AggregationMode = "selective"
)

// CascadingOptions configures the cascading composer.
type CascadingOptions struct {
	// Propagation selects inter-layer propagation. Default immediate.
	Propagation PropagationMode `json:"propagation"`
	// Aggregation selects final aggregation. Default per_layer.
	Aggregation AggregationMode `json:"aggregation"`
	// Strategy is the failure policy. Default continue_on_error.
	Strategy FailureStrategy `json:"strategy"`
}

// ApplyDefaults applies default values to cascading options.
func (o *CascadingOptions) ApplyDefaults() {
	if o.Propagation == "" {
		o.Propagation = PropagateImmediate
	}
	if o.Aggregation == "" {
		o.Aggregation = AggregatePerLayer
	}
	if o.Strategy == "" {
		o.Strategy = ContinueOnError
	}
}

// AdaptiveOptions configures the adaptive composer.
type AdaptiveOptions struct {
	// InitialPattern is the pattern the first iteration runs under.
	// Default sequential.
	InitialPattern Pattern `json:"initial_pattern"`
	// FallbackPattern is switched to when an iteration fails outright.
	FallbackPattern Pattern `json:"fallback_pattern,omitempty"`
	// MaxAdaptations bounds the outer loop. Zero uses the engine default (3).
	MaxAdaptations int `json:"max_adaptations" validate:"gte=0"`
	// Rules are evaluated after every iteration. Each rule must carry a
	// name; cooldown bookkeeping is keyed on it.
	Rules []Rule `json:"rules,omitempty" validate:"omitempty,dive"`
	// EnableLearning turns on the learned-pattern cache.
	EnableLearning bool `json:"enable_learning"`
	// Concurrency seeds the caller-tracked concurrency value adjusted by
	// adjust_concurrency and scale actions. Zero uses the engine default.
	Concurrency int `json:"concurrency" validate:"gte=0"`
	// Sequential configures iterations delegated to the sequential path.
	Sequential SequentialOptions `json:"sequential"`
	// Parallel configures iterations delegated to the parallel path.
	Parallel ParallelOptions `json:"parallel"`
}

// ApplyDefaults applies default values to adaptive options.
func (o *AdaptiveOptions) ApplyDefaults() {
	if o.InitialPattern == "" {
		o.InitialPattern = PatternSequential
	}
	o.Sequential.ApplyDefaults()
	o.Parallel.ApplyDefaults()
}
