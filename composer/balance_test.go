package composer

import (
	"testing"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

func balancePipelines() []composition.PipelineRef {
	return []composition.PipelineRef{
		{ID: "p0", Priority: 1, Weight: 1},
		{ID: "p1", Priority: 5, Weight: 10},
		{ID: "p2", Priority: 3, Weight: 1},
	}
}

func TestRoundRobinCycles(t *testing.T) {
	b := &roundRobinBalancer{}
	pipelines := balancePipelines()
	ready := []int{0, 1, 2}

	seen := map[int]int{}
	for i := 0; i < 6; i++ {
		seen[b.next(ready, pipelines, nil)]++
	}
	for idx, count := range seen {
		if count != 2 {
			t.Errorf("index %d picked %d times, want 2", idx, count)
		}
	}
}

func TestPriorityBalancerPicksHighest(t *testing.T) {
	b := &priorityBalancer{}
	if got := b.next([]int{0, 1, 2}, balancePipelines(), nil); got != 1 {
		t.Errorf("picked index %d, want 1 (highest priority)", got)
	}
	// Ties keep declared order.
	tied := []composition.PipelineRef{{ID: "a", Priority: 2}, {ID: "b", Priority: 2}}
	if got := b.next([]int{0, 1}, tied, nil); got != 0 {
		t.Errorf("tie pick = %d, want declared order 0", got)
	}
}

func TestWeightedRandomStaysInReadySet(t *testing.T) {
	b := newBalancer(composition.BalanceWeightedRandom)
	pipelines := balancePipelines()
	ready := []int{0, 2}
	for i := 0; i < 50; i++ {
		got := b.next(ready, pipelines, nil)
		if got != 0 && got != 2 {
			t.Fatalf("picked index %d outside ready set", got)
		}
	}
}

func TestLeastLoadedPrefersIdlePipeline(t *testing.T) {
	ec := newExecutionContext()
	ec.MarkRunning("p0")

	b := &leastLoadedBalancer{}
	if got := b.next([]int{0, 1}, balancePipelines(), ec); got != 1 {
		t.Errorf("picked index %d, want idle pipeline 1", got)
	}
}

func TestLeastLoadedPrefersFasterPipeline(t *testing.T) {
	ec := newExecutionContext()
	ec.Complete(composition.Result{PipelineID: "p0", Success: true, Duration: 500 * time.Millisecond})
	ec.Complete(composition.Result{PipelineID: "p1", Success: true, Duration: 10 * time.Millisecond})

	b := &leastLoadedBalancer{}
	if got := b.next([]int{0, 1}, balancePipelines(), ec); got != 1 {
		t.Errorf("picked index %d, want faster pipeline 1", got)
	}
}

func TestUnknownStrategyFallsBackToRoundRobin(t *testing.T) {
	b := newBalancer(composition.BalancingStrategy("bogus"))
	if _, ok := b.(*roundRobinBalancer); !ok {
		t.Errorf("balancer type = %T, want round robin fallback", b)
	}
}
