package composition

import (
	"context"
	"strings"
	"testing"

	enginerr "github.com/skillsenselab/composekit/errors"
)

func noopProcessor() Processor {
	return ProcessorFunc(func(ctx context.Context, input any, opts map[string]any) (any, error) {
		return input, nil
	})
}

func TestNewSequential_GeneratesID(t *testing.T) {
	c, err := NewSequential("", []PipelineRef{{ID: "p1", Processor: noopProcessor()}}, SequentialOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.ID == "" {
		t.Error("expected generated id")
	}
	if c.Pattern != PatternSequential {
		t.Errorf("expected sequential pattern, got %s", c.Pattern)
	}
	if c.Sequential.Strategy != FailFast {
		t.Errorf("expected default fail_fast, got %s", c.Sequential.Strategy)
	}
	if c.Sequential.ReturnMode != ReturnAll {
		t.Errorf("expected default return mode all, got %s", c.Sequential.ReturnMode)
	}
}

func TestNewSequential_RejectsEmptyPipelines(t *testing.T) {
	_, err := NewSequential("c1", nil, SequentialOptions{})
	if err == nil {
		t.Fatal("expected error for empty pipeline list")
	}
	if enginerr.CodeOf(err) != enginerr.ErrCodeInvalidComposition {
		t.Errorf("expected INVALID_COMPOSITION, got %s", enginerr.CodeOf(err))
	}
}

func TestNewParallel_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewParallel("c1", []PipelineRef{
		{ID: "p1", Processor: noopProcessor()},
		{ID: "p1", Processor: noopProcessor()},
	}, ParallelOptions{})
	if err == nil {
		t.Fatal("expected error for duplicate ids")
	}
	if !strings.Contains(err.Error(), "duplicate pipeline id") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewParallel_RejectsUnknownDependency(t *testing.T) {
	_, err := NewParallel("c1", []PipelineRef{
		{ID: "p1", Processor: noopProcessor(), DependsOn: []string{"ghost"}},
	}, ParallelOptions{})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if !strings.Contains(err.Error(), "unknown pipeline") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewCascading_DefaultsAndValidation(t *testing.T) {
	layers := []Layer{
		{ID: 0, Pipelines: []PipelineRef{{ID: "a", Processor: noopProcessor()}}},
		{ID: 1, Pipelines: []PipelineRef{{ID: "b", Processor: noopProcessor()}}},
	}
	c, err := NewCascading("cascade", layers, CascadingOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Cascading.Propagation != PropagateImmediate {
		t.Errorf("expected immediate propagation default, got %s", c.Cascading.Propagation)
	}
	if c.Layers[0].Mode != LayerSequential {
		t.Errorf("expected sequential layer mode default, got %s", c.Layers[0].Mode)
	}
	if c.Layers[0].Overflow != DropOldest {
		t.Errorf("expected drop_oldest default, got %s", c.Layers[0].Overflow)
	}
	if c.Layers[0].Scaling.Kind != ScaleFixed {
		t.Errorf("expected fixed scaling default, got %s", c.Layers[0].Scaling.Kind)
	}
}

func TestNewCascading_RejectsForwardTrigger(t *testing.T) {
	layers := []Layer{
		{ID: 0, Pipelines: []PipelineRef{{
			ID:        "a",
			Processor: noopProcessor(),
			Triggers:  []Trigger{{Layer: 0, Predicate: func([]Result) bool { return true }}},
		}}},
	}
	_, err := NewCascading("cascade", layers, CascadingOptions{})
	if err == nil {
		t.Fatal("expected error for trigger referencing own layer")
	}
}

func TestValidate_LayerDepth(t *testing.T) {
	layers := []Layer{
		{ID: 0, Pipelines: []PipelineRef{{ID: "a", Processor: noopProcessor()}}},
		{ID: 1, Pipelines: []PipelineRef{{ID: "b", Processor: noopProcessor()}}},
		{ID: 2, Pipelines: []PipelineRef{{ID: "c", Processor: noopProcessor()}}},
	}
	c, err := NewCascading("deep", layers, CascadingOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Validate(2); err == nil {
		t.Error("expected depth violation with max 2")
	}
	if err := c.Validate(3); err != nil {
		t.Errorf("expected no error with max 3, got %v", err)
	}
	if err := c.Validate(0); err != nil {
		t.Errorf("expected no error with depth check disabled, got %v", err)
	}
}

func TestPipelineRef_EffectiveWeight(t *testing.T) {
	p := PipelineRef{}
	if p.EffectiveWeight() != 1 {
		t.Errorf("expected default weight 1, got %f", p.EffectiveWeight())
	}
	p.Weight = 2.5
	if p.EffectiveWeight() != 2.5 {
		t.Errorf("expected weight 2.5, got %f", p.EffectiveWeight())
	}
}

func TestRule_Holds(t *testing.T) {
	m := LiveMetrics{AvgLatencyMS: 75, Throughput: 12, ErrorRate: 0.25}

	cases := []struct {
		name string
		rule Rule
		want bool
	}{
		{"latency gt fires", Rule{Metric: MetricLatency, Threshold: 50, Comparison: CompareGT}, true},
		{"latency gt holds off", Rule{Metric: MetricLatency, Threshold: 100, Comparison: CompareGT}, false},
		{"default comparison is gt", Rule{Metric: MetricLatency, Threshold: 50}, true},
		{"throughput lt", Rule{Metric: MetricThroughput, Threshold: 20, Comparison: CompareLT}, true},
		{"error rate gte", Rule{Metric: MetricErrorRate, Threshold: 0.25, Comparison: CompareGTE}, true},
		{"success rate derived", Rule{Metric: MetricSuccessRate, Threshold: 0.5, Comparison: CompareGT}, true},
		{"unknown metric never holds", Rule{Metric: "entropy", Threshold: 0, Comparison: CompareGT}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.rule.Holds(m); got != c.want {
				t.Errorf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestNewAdaptive_RejectsUnnamedRule(t *testing.T) {
	_, err := NewAdaptive("a1", []PipelineRef{{ID: "p1", Processor: noopProcessor()}}, AdaptiveOptions{
		Rules: []Rule{{Metric: MetricLatency, Threshold: 50}},
	})
	if err == nil {
		t.Fatal("expected error for rule without a name")
	}

	_, err = NewAdaptive("a2", []PipelineRef{{ID: "p1", Processor: noopProcessor()}}, AdaptiveOptions{
		Rules: []Rule{{Name: "slow", Metric: MetricLatency, Threshold: 50}},
	})
	if err != nil {
		t.Fatalf("named rule rejected: %v", err)
	}
}

func TestActionKind_String(t *testing.T) {
	cases := map[ActionKind]string{
		ActionSwitchPattern:     "switch_pattern",
		ActionAdjustConcurrency: "adjust_concurrency",
		ActionReorder:           "reorder",
		ActionScale:             "scale",
		ActionCustom:            "custom",
	}
	for action, want := range cases {
		if action.String() != want {
			t.Errorf("expected %s, got %s", want, action.String())
		}
	}
}

func TestPattern_Valid(t *testing.T) {
	for _, p := range []Pattern{PatternSequential, PatternParallel, PatternCascading, PatternAdaptive} {
		if !p.Valid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	if Pattern("roundabout").Valid() {
		t.Error("expected unknown pattern to be invalid")
	}
}
