package composer

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/config"
	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/testutil"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		RetryBackoffBase: time.Millisecond,
		TickInterval:     time.Millisecond,
	}
}

func seqComposition(t *testing.T, pipelines []composition.PipelineRef, opts composition.SequentialOptions) *composition.Composition {
	t.Helper()
	comp, err := composition.NewSequential("seq-test", pipelines, opts)
	if err != nil {
		t.Fatalf("NewSequential: %v", err)
	}
	return comp
}

func TestSequentialPipesOutputs(t *testing.T) {
	double := &testutil.FakePipeline{Transform: func(in any) any { return in.(int) * 2 }}
	addOne := &testutil.FakePipeline{Transform: func(in any) any { return in.(int) + 1 }}

	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "double", Processor: double},
		{ID: "add-one", Processor: addOne},
	}, composition.SequentialOptions{PassPreviousResults: true})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, 5)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}
	if got := result.Results[1].Output; got != 11 {
		t.Errorf("piped output = %v, want 11", got)
	}
	if got := addOne.LastInput(); got != 10 {
		t.Errorf("second pipeline input = %v, want 10", got)
	}
}

func TestSequentialWithoutPipingUsesOriginalInput(t *testing.T) {
	a := &testutil.FakePipeline{Output: "a"}
	b := &testutil.FakePipeline{Output: "b"}

	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "a", Processor: a},
		{ID: "b", Processor: b},
	}, composition.SequentialOptions{})

	s := NewSequential(testEngineConfig(), nil, nil)
	if _, err := s.Execute(context.Background(), comp, "input"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := b.LastInput(); got != "input" {
		t.Errorf("second pipeline input = %v, want original input", got)
	}
}

func TestSequentialFailFastSkipsRemaining(t *testing.T) {
	ok := &testutil.FakePipeline{Output: 1}
	boom := &testutil.FakePipeline{Err: stderrors.New("boom")}
	never := &testutil.FakePipeline{Output: 3}

	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "first", Processor: ok},
		{ID: "second", Processor: boom},
		{ID: "third", Processor: never},
	}, composition.SequentialOptions{Strategy: composition.FailFast})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err == nil {
		t.Fatal("expected error under fail_fast")
	}
	if got := enginerr.PipelineOf(err); got != "second" {
		t.Errorf("failing pipeline id = %q, want %q", got, "second")
	}
	if never.Calls() != 0 {
		t.Errorf("third pipeline invoked %d times, want 0", never.Calls())
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(result.Errors))
	}
	if len(result.Results) != 2 {
		t.Errorf("partial results = %d, want 2", len(result.Results))
	}
}

func TestSequentialContinueOnError(t *testing.T) {
	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "a", Processor: &testutil.FakePipeline{Output: 1}},
		{ID: "b", Processor: &testutil.FakePipeline{Err: stderrors.New("boom")}},
		{ID: "c", Processor: &testutil.FakePipeline{Output: 3}},
	}, composition.SequentialOptions{Strategy: composition.ContinueOnError})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Error("composition with errors must not report success")
	}
	if len(result.Results) != 3 {
		t.Errorf("results = %d, want 3", len(result.Results))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].PipelineID != "b" {
		t.Errorf("error pipeline = %q, want %q", result.Errors[0].PipelineID, "b")
	}
}

func TestSequentialRetryBudget(t *testing.T) {
	flaky := &testutil.FakePipeline{
		FailuresBeforeSuccess: 2,
		FailErr:               stderrors.New("transient"),
		Output:                "done",
	}
	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "flaky", Processor: flaky, RetryCount: 2},
	}, composition.SequentialOptions{})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if flaky.Calls() != 3 {
		t.Errorf("invocations = %d, want 3", flaky.Calls())
	}
	if result.Results[0].Attempts != 3 {
		t.Errorf("recorded attempts = %d, want 3", result.Results[0].Attempts)
	}
}

func TestSequentialRetriesExhausted(t *testing.T) {
	always := &testutil.FakePipeline{Err: stderrors.New("permanent")}
	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "always", Processor: always, RetryCount: 2},
	}, composition.SequentialOptions{Strategy: composition.FailFast})

	s := NewSequential(testEngineConfig(), nil, nil)
	_, err := s.Execute(context.Background(), comp, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if always.Calls() != 3 {
		t.Errorf("invocations = %d, want exactly retry budget 3", always.Calls())
	}
	if got := enginerr.CodeOf(err); got != enginerr.ErrCodeRetriesExhausted {
		t.Errorf("error code = %q, want %q", got, enginerr.ErrCodeRetriesExhausted)
	}
}

func TestSequentialTimeoutIsRetried(t *testing.T) {
	slow := &testutil.FakePipeline{Latency: 50 * time.Millisecond, Output: "late"}
	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "slow", Processor: slow, Timeout: 5 * time.Millisecond, RetryCount: 1},
	}, composition.SequentialOptions{Strategy: composition.FailFast})

	s := NewSequential(testEngineConfig(), nil, nil)
	_, err := s.Execute(context.Background(), comp, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if slow.Calls() != 2 {
		t.Errorf("invocations = %d, want 2 (timeout consumes a retry)", slow.Calls())
	}
}

func TestSequentialShortCircuit(t *testing.T) {
	cutter := &testutil.FakePipeline{Output: composition.ShortCircuit{Value: "early"}}
	never := &testutil.FakePipeline{Output: "never"}

	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "cutter", Processor: cutter},
		{ID: "never", Processor: never},
	}, composition.SequentialOptions{StopOnShortCircuit: true})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if never.Calls() != 0 {
		t.Errorf("pipeline after short circuit invoked %d times, want 0", never.Calls())
	}
	if len(result.Results) != 1 || result.Results[0].Output != "early" {
		t.Errorf("results = %+v, want single unwrapped short-circuit value", result.Results)
	}
}

func TestSequentialConditionSkip(t *testing.T) {
	skipped := &testutil.FakePipeline{Output: "unused"}
	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "gated", Processor: skipped, Condition: func(any) bool { return false }},
		{ID: "runs", Processor: &testutil.FakePipeline{Output: "ran"}},
	}, composition.SequentialOptions{})

	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if skipped.Calls() != 0 {
		t.Errorf("gated pipeline invoked %d times, want 0", skipped.Calls())
	}
	if !result.Results[0].Skipped {
		t.Error("gated pipeline result not marked skipped")
	}
	meta := result.Metadata["pipelinesSkipped"].([]string)
	if len(meta) != 1 || meta[0] != "gated" {
		t.Errorf("pipelinesSkipped = %v, want [gated]", meta)
	}
}

func TestSequentialReturnLastAndAggregate(t *testing.T) {
	pipelines := []composition.PipelineRef{
		{ID: "a", Processor: &testutil.FakePipeline{Output: 1}},
		{ID: "b", Processor: &testutil.FakePipeline{Output: 2}},
	}

	comp := seqComposition(t, pipelines, composition.SequentialOptions{ReturnMode: composition.ReturnLast})
	s := NewSequential(testEngineConfig(), nil, nil)
	result, err := s.Execute(context.Background(), comp, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].PipelineID != "b" {
		t.Errorf("return_mode last gave %+v", result.Results)
	}

	comp2 := seqComposition(t, pipelines, composition.SequentialOptions{Aggregate: true})
	result2, err := s.Execute(context.Background(), comp2, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result2.Results) != 1 {
		t.Fatalf("aggregate gave %d results, want 1", len(result2.Results))
	}
	outputs := result2.Results[0].Output.([]any)
	if len(outputs) != 2 || outputs[0] != 1 || outputs[1] != 2 {
		t.Errorf("aggregate outputs = %v", outputs)
	}
}

func TestSequentialRejectsWrongPattern(t *testing.T) {
	comp, err := composition.NewParallel("p", []composition.PipelineRef{
		{ID: "x", Processor: &testutil.FakePipeline{}},
	}, composition.ParallelOptions{})
	if err != nil {
		t.Fatalf("NewParallel: %v", err)
	}

	s := NewSequential(testEngineConfig(), nil, nil)
	if _, err := s.Execute(context.Background(), comp, nil); err == nil {
		t.Fatal("expected pattern mismatch error")
	}
}

func TestSequentialCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	comp := seqComposition(t, []composition.PipelineRef{
		{ID: "a", Processor: &testutil.FakePipeline{Output: 1}},
	}, composition.SequentialOptions{})

	s := NewSequential(testEngineConfig(), nil, nil)
	_, err := s.Execute(ctx, comp, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if got := enginerr.CodeOf(err); got != enginerr.ErrCodeExecutionCancelled {
		t.Errorf("error code = %q, want %q", got, enginerr.ErrCodeExecutionCancelled)
	}
}
