// Package composer implements the four execution patterns of the
// composition engine: sequential, parallel, cascading, and adaptive.
//
// Each composer exposes one operation, Execute, which drives the opaque
// pipelines referenced by a composition.Composition and returns a
// composition.CompositionResult. A fresh ExecutionContext tracks the run's
// completed, failed, and currently running pipelines; it is owned
// exclusively by that run and discarded afterwards. State that must survive
// a run (rule cooldowns, scaling history, the learned-pattern cache,
// pattern statistics) lives on the composer instance behind a mutex.
//
//	seq := composer.NewSequential(cfg.Engine, log, recorder)
//	result, err := seq.Execute(ctx, comp, frame)
//
// Every run is registered under an execution id and can be cancelled
// cooperatively through the composer's Cancel method; cancellation is
// observed at loop boundaries, not mid-pipeline.
package composer
