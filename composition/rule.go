package composition

import "time"

// Metric names a live measurement an adaptation rule can reference.
type Metric string

const (
	// MetricLatency is the rolling average iteration latency in milliseconds.
	MetricLatency Metric = "latency"
	// MetricThroughput is completed operations per elapsed second.
	MetricThroughput Metric = "throughput"
	// MetricErrorRate is failed operations over total operations (0..1).
	MetricErrorRate Metric = "error_rate"
	// MetricSuccessRate is 1 - error rate (0..1).
	MetricSuccessRate Metric = "success_rate"
)

// Comparison is the operator a rule applies between metric and threshold.
type Comparison string

const (
	CompareGT  Comparison = "gt"
	CompareGTE Comparison = "gte"
	CompareLT  Comparison = "lt"
	CompareLTE Comparison = "lte"
	CompareEQ  Comparison = "eq"
)

// ActionKind enumerates the corrective actions a rule can take.
type ActionKind int

const (
	// ActionSwitchPattern changes the adaptive composer's current pattern.
	ActionSwitchPattern ActionKind = iota
	// ActionAdjustConcurrency applies a bounded delta to the tracked
	// concurrency value.
	ActionAdjustConcurrency
	// ActionReorder re-sorts remaining pipelines by recent performance.
	ActionReorder
	// ActionScale multiplies the tracked concurrency by a factor.
	ActionScale
	// ActionCustom invokes the rule's Custom callback.
	ActionCustom
)

// String returns the action's wire name.
func (a ActionKind) String() string {
	switch a {
	case ActionSwitchPattern:
		return "switch_pattern"
	case ActionAdjustConcurrency:
		return "adjust_concurrency"
	case ActionReorder:
		return "reorder"
	case ActionScale:
		return "scale"
	case ActionCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// LiveMetrics is the snapshot rules are evaluated against.
type LiveMetrics struct {
	// AvgLatencyMS is the rolling average iteration latency in milliseconds.
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	// Throughput is completed operations per elapsed second.
	Throughput float64 `json:"throughput"`
	// ErrorRate is failures over total operations (0..1).
	ErrorRate float64 `json:"error_rate"`
	// PipelineCount is the number of pipelines in the composition.
	PipelineCount int `json:"pipeline_count"`
	// Concurrency is the currently tracked concurrency value.
	Concurrency int `json:"concurrency"`
}

// Value returns the named metric from the snapshot.
func (m LiveMetrics) Value(metric Metric) (float64, bool) {
	switch metric {
	case MetricLatency:
		return m.AvgLatencyMS, true
	case MetricThroughput:
		return m.Throughput, true
	case MetricErrorRate:
		return m.ErrorRate, true
	case MetricSuccessRate:
		return 1 - m.ErrorRate, true
	default:
		return 0, false
	}
}

// Rule pairs a metric trigger with a corrective action. Rules are supplied
// by the caller and read-only during execution; only the cooldown timestamp
// (kept on the composer, not here) changes.
type Rule struct {
	// Name identifies the rule in logs and cooldown bookkeeping.
	Name string `json:"name" validate:"required"`
	// Metric is the measurement the rule watches.
	Metric Metric `json:"metric" validate:"required"`
	// Threshold is compared against the metric value.
	Threshold float64 `json:"threshold"`
	// Comparison is the operator. Default gt.
	Comparison Comparison `json:"comparison"`
	// Window is the number of recent samples the metric is computed over.
	// Zero means all samples of the run.
	Window int `json:"window" validate:"gte=0"`
	// Action is what the rule does when it fires.
	Action ActionKind `json:"action"`
	// TargetPattern is the pattern ActionSwitchPattern switches to.
	TargetPattern Pattern `json:"target_pattern,omitempty"`
	// Delta is the signed adjustment ActionAdjustConcurrency applies.
	Delta int `json:"delta,omitempty"`
	// Factor is the multiplier ActionScale applies.
	Factor float64 `json:"factor,omitempty"`
	// Custom is invoked by ActionCustom. A nil callback makes the rule a
	// no-op, logged rather than silently ignored.
	Custom func(m LiveMetrics) error `json:"-"`
	// Cooldown suppresses re-firing for the given duration.
	Cooldown time.Duration `json:"cooldown"`
	// Priority breaks ties when multiple rules fire in the same evaluation.
	Priority int `json:"priority"`
}

// Holds reports whether the rule's condition is satisfied by the snapshot.
// Unknown metrics never hold.
func (r *Rule) Holds(m LiveMetrics) bool {
	value, ok := m.Value(r.Metric)
	if !ok {
		return false
	}
	cmp := r.Comparison
	if cmp == "" {
		cmp = CompareGT
	}
	switch cmp {
	case CompareGT:
		return value > r.Threshold
	case CompareGTE:
		return value >= r.Threshold
	case CompareLT:
		return value < r.Threshold
	case CompareLTE:
		return value <= r.Threshold
	case CompareEQ:
		return value == r.Threshold
	default:
		return false
	}
}
