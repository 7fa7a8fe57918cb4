// Package composition defines the value types a caller hands to a composer:
// pipeline references, layers, the Composition itself, and the per-pattern
// option records.
//
// A Composition is constructed once through the factory functions and never
// mutated during execution. Pipelines are opaque units of work implementing
// the Processor contract; the engine drives them, it never inspects them.
//
//	comp, err := composition.NewSequential("ingest", []composition.PipelineRef{
//	    {ID: "decode", Processor: decoder},
//	    {ID: "analyze", Processor: analyzer, RetryCount: 2, Timeout: 5 * time.Second},
//	}, composition.SequentialOptions{PassPreviousResults: true})
package composition
