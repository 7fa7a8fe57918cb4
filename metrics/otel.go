package metrics

import (
	"context"
	"time"

	"github.com/skillsenselab/composekit/composition"
	"github.com/skillsenselab/composekit/observability"
)

// InstrumentedRecorder forwards each execution record to OTLP instruments
// in addition to the in-process aggregator. Composers accept it anywhere a
// plain *Metrics is accepted.
type InstrumentedRecorder struct {
	agg  *Metrics
	inst *observability.Instruments
}

// NewInstrumentedRecorder pairs an aggregator with OTel instruments.
// Either may be nil; the recorder forwards to whichever is present.
func NewInstrumentedRecorder(agg *Metrics, inst *observability.Instruments) *InstrumentedRecorder {
	return &InstrumentedRecorder{agg: agg, inst: inst}
}

// RecordExecution implements the composer's Recorder contract.
func (r *InstrumentedRecorder) RecordExecution(pattern composition.Pattern, executionTime time.Duration, success bool) {
	if r.agg != nil {
		r.agg.RecordExecution(pattern, executionTime, success)
	}
	if r.inst != nil {
		r.inst.RecordComposition(context.Background(), string(pattern), executionTime, success)
	}
}

// Summary delegates to the underlying aggregator.
func (r *InstrumentedRecorder) Summary() Summary {
	if r.agg == nil {
		return Summary{}
	}
	return r.agg.Summary()
}

// History delegates to the underlying aggregator.
func (r *InstrumentedRecorder) History() []Sample {
	if r.agg == nil {
		return nil
	}
	return r.agg.History()
}
