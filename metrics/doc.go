// Package metrics aggregates composition execution outcomes into queryable
// counters and summaries.
//
// The aggregator keeps exact totals per pattern (runs, successes, total
// time) plus a bounded FIFO of recent samples for moving averages. Callers
// query it on demand via Summary and History; there is no push or
// subscribe mechanism. The OpenTelemetry bridge in otel.go forwards each
// record to OTLP instruments alongside the in-process aggregation.
package metrics
