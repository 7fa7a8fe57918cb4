package composer

import (
	"math"
	"sync"
	"time"

	"github.com/skillsenselab/composekit/composition"
)

// scalingHistoryDepth is how many past decisions the predictive policy
// averages over.
const scalingHistoryDepth = 3

// ScalingDecision records one layer concurrency computation.
type ScalingDecision struct {
	Layer     int                     `json:"layer"`
	Instances int                     `json:"instances"`
	Occupancy float64                 `json:"occupancy"`
	Policy    composition.ScalingKind `json:"policy"`
	At        time.Time               `json:"at"`
}

// scaler computes per-layer concurrency and keeps the recent decision
// history that the predictive policy feeds on. It lives on the composer
// instance, so history persists across executions.
type scaler struct {
	mu      sync.Mutex
	history map[int][]int
}

func newScaler() *scaler {
	return &scaler{history: make(map[int][]int)}
}

// decide computes the instance count for a layer invocation and records it.
// queued is the layer buffer's current item count; occupancy its fill
// fraction.
func (s *scaler) decide(layer int, policy composition.ScalingPolicy, queued int, occupancy float64) ScalingDecision {
	policy.ApplyDefaults()

	var instances int
	switch policy.Kind {
	case composition.ScaleDemand:
		instances = s.demand(policy, queued)
	case composition.ScalePredictive:
		instances = s.predictive(layer, policy, queued)
	default:
		instances = policy.Fixed
	}

	// A miscalculation must never zero out a layer.
	if instances < 1 {
		instances = 1
	}

	s.mu.Lock()
	hist := append(s.history[layer], instances)
	if len(hist) > scalingHistoryDepth {
		hist = hist[len(hist)-scalingHistoryDepth:]
	}
	s.history[layer] = hist
	s.mu.Unlock()

	return ScalingDecision{
		Layer:     layer,
		Instances: instances,
		Occupancy: occupancy,
		Policy:    policy.Kind,
		At:        time.Now(),
	}
}

func (s *scaler) demand(policy composition.ScalingPolicy, queued int) int {
	instances := int(math.Ceil(float64(queued) * 1.1))
	return clamp(instances, policy.Min, policy.Max)
}

func (s *scaler) predictive(layer int, policy composition.ScalingPolicy, queued int) int {
	s.mu.Lock()
	hist := s.history[layer]
	s.mu.Unlock()

	// No history yet: fall back to demand for the first decisions.
	if len(hist) == 0 {
		return s.demand(policy, queued)
	}

	sum := 0
	for _, v := range hist {
		sum += v
	}
	mean := float64(sum) / float64(len(hist))
	instances := int(math.Ceil(mean * 1.2))
	return clamp(instances, policy.Min, policy.Max)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
