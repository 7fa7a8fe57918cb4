package composition

// LayerMode is a cascading layer's internal execution mode.
type LayerMode string

const (
	// LayerSequential runs the layer's pipelines in order.
	LayerSequential LayerMode = "sequential"
	// LayerParallel runs the layer's pipelines concurrently under the
	// layer's scaling decision.
	LayerParallel LayerMode = "parallel"
	// LayerAdaptive picks parallel when the layer's input buffer occupancy
	// exceeds 70% of its size, sequential otherwise.
	LayerAdaptive LayerMode = "adaptive"
)

// AdaptiveOccupancyThreshold is the buffer occupancy fraction above which a
// LayerAdaptive layer executes in parallel.
const AdaptiveOccupancyThreshold = 0.7

// OverflowPolicy decides what happens when a full layer buffer receives
// another input.
type OverflowPolicy string

const (
	// DropOldest evicts the earliest-pushed item.
	DropOldest OverflowPolicy = "drop_oldest"
	// DropNewest discards the incoming item.
	DropNewest OverflowPolicy = "drop_newest"
	// Expand grows the buffer without bound. The caller accepts the
	// memory risk.
	Expand OverflowPolicy = "expand"
)

// ScalingKind selects how a layer computes its per-invocation concurrency.
type ScalingKind string

const (
	// ScaleFixed uses a fixed instance cap.
	ScaleFixed ScalingKind = "fixed"
	// ScaleDemand derives the cap from buffer occupancy (occupancy * 1.1,
	// clamped to [Min, Max]).
	ScaleDemand ScalingKind = "demand"
	// ScalePredictive averages the last three scaling decisions * 1.2,
	// clamped to [Min, Max].
	ScalePredictive ScalingKind = "predictive"
)

// ScalingPolicy bounds a layer's concurrency computation.
type ScalingPolicy struct {
	Kind ScalingKind `json:"kind"`
	// Fixed is the cap used by ScaleFixed.
	Fixed int `json:"fixed,omitempty"`
	// Min and Max clamp demand and predictive decisions.
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

// ApplyDefaults applies default values to the scaling policy.
func (p *ScalingPolicy) ApplyDefaults() {
	if p.Kind == "" {
		p.Kind = ScaleFixed
	}
	if p.Fixed <= 0 {
		p.Fixed = 1
	}
	if p.Min <= 0 {
		p.Min = 1
	}
	if p.Max <= 0 {
		p.Max = 10
	}
	if p.Max < p.Min {
		p.Max = p.Min
	}
}

// Layer is an ordered group of pipelines within a cascading composition.
type Layer struct {
	// ID orders layers; execution proceeds in ascending id. The lowest
	// layer always runs.
	ID int `json:"id" validate:"gte=0"`
	// Pipelines are the layer's members.
	Pipelines []PipelineRef `json:"pipelines" validate:"min=1,dive"`
	// Mode is the layer's internal execution mode. Default sequential.
	Mode LayerMode `json:"mode"`
	// BufferSize bounds the layer's input buffer. Zero uses the engine default.
	BufferSize int `json:"buffer_size" validate:"gte=0"`
	// Overflow is applied when the buffer is full. Default drop_oldest.
	Overflow OverflowPolicy `json:"overflow"`
	// Scaling computes the layer's concurrency per invocation.
	Scaling ScalingPolicy `json:"scaling"`
}

// ApplyDefaults applies default values to the layer.
func (l *Layer) ApplyDefaults() {
	if l.Mode == "" {
		l.Mode = LayerSequential
	}
	if l.Overflow == "" {
		l.Overflow = DropOldest
	}
	l.Scaling.ApplyDefaults()
}
