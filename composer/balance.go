package composer

import (
	"math/rand"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

// balancer selects the next pipeline among those ready for admission.
// The ready slice holds indexes into the composition's pipeline list, in
// declared order.
type balancer interface {
	next(ready []int, pipelines []composition.PipelineRef, ec *ExecutionContext) int
}

// newBalancer builds the balancer for a strategy. Unknown strategies fall
// back to round-robin.
func newBalancer(strategy composition.BalancingStrategy) balancer {
	switch strategy {
	case composition.BalancePriority:
		return &priorityBalancer{}
	case composition.BalanceWeightedRandom:
		return &weightedRandomBalancer{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	case composition.BalanceLeastLoaded:
		return &leastLoadedBalancer{}
	default:
		return &roundRobinBalancer{}
	}
}

// roundRobinBalancer cycles through ready pipelines.
type roundRobinBalancer struct {
	counter int
}

func (b *roundRobinBalancer) next(ready []int, _ []composition.PipelineRef, _ *ExecutionContext) int {
	pick := ready[b.counter%len(ready)]
	b.counter++
	return pick
}

// priorityBalancer picks the highest static priority; ties keep declared order.
type priorityBalancer struct{}

func (b *priorityBalancer) next(ready []int, pipelines []composition.PipelineRef, _ *ExecutionContext) int {
	best := ready[0]
	for _, idx := range ready[1:] {
		if pipelines[idx].Priority > pipelines[best].Priority {
			best = idx
		}
	}
	return best
}

// weightedRandomBalancer picks proportionally to caller-assigned weights.
type weightedRandomBalancer struct {
	rng *rand.Rand
}

func (b *weightedRandomBalancer) next(ready []int, pipelines []composition.PipelineRef, _ *ExecutionContext) int {
	total := 0.0
	for _, idx := range ready {
		total += pipelines[idx].EffectiveWeight()
	}
	roll := b.rng.Float64() * total
	for _, idx := range ready {
		roll -= pipelines[idx].EffectiveWeight()
		if roll < 0 {
			return idx
		}
	}
	return ready[len(ready)-1]
}

// leastLoadedBalancer picks the pipeline with the lowest load score:
// in-flight invocations weigh one second each, plus observed average
// latency. Ties keep declared order.
type leastLoadedBalancer struct{}

func (b *leastLoadedBalancer) next(ready []int, pipelines []composition.PipelineRef, ec *ExecutionContext) int {
	best := ready[0]
	bestScore := b.score(pipelines[best].ID, ec)
	for _, idx := range ready[1:] {
		if s := b.score(pipelines[idx].ID, ec); s < bestScore {
			best, bestScore = idx, s
		}
	}
	return best
}

func (b *leastLoadedBalancer) score(id string, ec *ExecutionContext) time.Duration {
	avg, _, inFlight := ec.Stats(id)
	return time.Duration(inFlight)*time.Second + avg
}
