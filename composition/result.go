package composition

import (
	"time"
)

// Result is the recorded outcome of one pipeline invocation.
type Result struct {
	PipelineID string        `json:"pipeline_id"`
	Output     any           `json:"output,omitempty"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped,omitempty"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	Layer      int           `json:"layer,omitempty"`
}

// PipelineError pairs a pipeline id with the error that concluded it.
type PipelineError struct {
	PipelineID string `json:"pipeline_id"`
	Err        error  `json:"-"`
	Message    string `json:"message"`
}

// CompositionResult is the value returned to the caller when a composition
// run concludes.
type CompositionResult struct {
	CompositionID string          `json:"composition_id"`
	Pattern       Pattern         `json:"pattern"`
	Success       bool            `json:"success"`
	Results       []Result        `json:"results"`
	Errors        []PipelineError `json:"errors"`
	ExecutionTime time.Duration   `json:"execution_time"`
	Timestamp     time.Time       `json:"timestamp"`
	// Metadata is pattern-specific: adaptation history, layers executed,
	// scaling decisions, and similar.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LayerBatch packages a layer's outputs together with the original input
// for batched propagation between cascading layers.
type LayerBatch struct {
	Original any   `json:"original"`
	Outputs  []any `json:"outputs"`
}
