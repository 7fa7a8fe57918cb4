package composer

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

func TestExecutionContextMonotonicOutcome(t *testing.T) {
	ec := newExecutionContext()
	ec.MarkRunning("p")

	if !ec.Complete(composition.Result{PipelineID: "p", Output: 1, Success: true}) {
		t.Fatal("first completion must be recorded")
	}
	if ec.Fail("p", stderrors.New("late"), 0) {
		t.Error("failure after completion must be ignored")
	}
	if ec.Complete(composition.Result{PipelineID: "p", Output: 2, Success: true}) {
		t.Error("second completion must be ignored")
	}

	res, ok := ec.Completed("p")
	if !ok || res.Output != 1 {
		t.Errorf("recorded result = %+v, want first outcome", res)
	}
}

func TestExecutionContextDependencyState(t *testing.T) {
	ec := newExecutionContext()
	ec.Complete(composition.Result{PipelineID: "done", Success: true})
	ec.Fail("broken", stderrors.New("x"), 0)

	if state, _ := ec.DependencyState([]string{"done"}); state != depsMet {
		t.Error("completed dependency should be met")
	}
	if state, id := ec.DependencyState([]string{"done", "broken"}); state != depsFailed || id != "broken" {
		t.Errorf("state = %v id = %q, want failed broken", state, id)
	}
	if state, _ := ec.DependencyState([]string{"missing"}); state != depsPending {
		t.Error("unknown dependency should be pending")
	}
	if state, _ := ec.DependencyState(nil); state != depsMet {
		t.Error("no dependencies should be met")
	}
}

func TestExecutionContextCompletionOrder(t *testing.T) {
	ec := newExecutionContext()
	ec.Complete(composition.Result{PipelineID: "b", Success: true})
	ec.Fail("x", stderrors.New("boom"), 0)
	ec.Complete(composition.Result{PipelineID: "a", Success: true})

	results := ec.Results()
	if len(results) != 2 || results[0].PipelineID != "b" || results[1].PipelineID != "a" {
		t.Errorf("results order = %+v, want [b a]", results)
	}
	errs := ec.Errors()
	if len(errs) != 1 || errs[0].PipelineID != "x" {
		t.Errorf("errors = %+v, want [x]", errs)
	}
}

func TestExecutionContextChangeSignal(t *testing.T) {
	ec := newExecutionContext()
	sig := ec.changeSignal()

	select {
	case <-sig:
		t.Fatal("signal fired before any settle event")
	default:
	}

	ec.Complete(composition.Result{PipelineID: "p", Success: true})

	select {
	case <-sig:
	case <-time.After(time.Second):
		t.Fatal("settle event did not close the signal channel")
	}
}

func TestExecutionContextStats(t *testing.T) {
	ec := newExecutionContext()
	ec.MarkRunning("p")
	if _, _, inFlight := ec.Stats("p"); inFlight != 1 {
		t.Errorf("inFlight = %d, want 1", inFlight)
	}

	ec.Complete(composition.Result{PipelineID: "p", Success: true, Duration: 100 * time.Millisecond})
	avg, errCount, inFlight := ec.Stats("p")
	if inFlight != 0 {
		t.Errorf("inFlight after settle = %d, want 0", inFlight)
	}
	if avg != 100*time.Millisecond {
		t.Errorf("avg latency = %v, want 100ms", avg)
	}
	if errCount != 0 {
		t.Errorf("errors = %d, want 0", errCount)
	}
}
