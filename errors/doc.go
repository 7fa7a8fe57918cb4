// Package errors provides the typed error taxonomy for the composition
// engine.
//
// Every failure surfaced by a composer is an *EngineError carrying a
// machine-readable code, the id of the pipeline it originated from (when
// applicable), and retryable detection used by the retry loop. EngineError
// supports errors.Is/As via Unwrap.
package errors
