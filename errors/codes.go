package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline-level errors (retryable).
const (
	// ErrCodePipelineFailed indicates the pipeline's process operation returned an error.
	ErrCodePipelineFailed ErrorCode = "PIPELINE_FAILED"
	// ErrCodePipelineTimeout indicates the pipeline exceeded its configured timeout.
	ErrCodePipelineTimeout ErrorCode = "PIPELINE_TIMEOUT"
)

// Execution-control errors (not retryable).
const (
	// ErrCodeExecutionCancelled indicates the owning execution was cancelled.
	ErrCodeExecutionCancelled ErrorCode = "EXECUTION_CANCELLED"
	// ErrCodeDependencyWaitCancelled indicates cancellation while a pipeline
	// was waiting for its declared dependencies.
	ErrCodeDependencyWaitCancelled ErrorCode = "DEPENDENCY_WAIT_CANCELLED"
	// ErrCodeRetriesExhausted indicates the pipeline's retry budget was consumed.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// Composition-level errors.
const (
	// ErrCodeCompositionFailed indicates the composition as a whole failed.
	ErrCodeCompositionFailed ErrorCode = "COMPOSITION_FAILED"
	// ErrCodeInvalidComposition indicates the composition failed structural validation.
	ErrCodeInvalidComposition ErrorCode = "INVALID_COMPOSITION"
	// ErrCodeAdaptationFailed indicates every adaptation attempt exhausted without success.
	ErrCodeAdaptationFailed ErrorCode = "ADAPTATION_FAILED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodePipelineFailed:  true,
	ErrCodePipelineTimeout: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
