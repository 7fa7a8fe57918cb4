// Package resilience provides the fault-tolerance primitives the composers
// build on.
//
//   - Retry: context-aware retries with exponential backoff. The composers
//     configure the doubling schedule the engine guarantees per pipeline
//     (base * 2^attempt, capped).
//   - Bulkhead: a semaphore-style concurrency cap. The parallel composer and
//     parallel-mode cascading layers admit pipelines through a bulkhead so
//     the observed concurrent count never exceeds the configured limit.
package resilience
