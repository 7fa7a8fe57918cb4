package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// EngineError is the unified error type surfaced by composers.
type EngineError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// PipelineID identifies the pipeline the error originated from, if any.
	PipelineID string `json:"pipeline_id,omitempty"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *EngineError) Error() string {
	switch {
	case e.PipelineID != "" && e.Cause != nil:
		return fmt.Sprintf("%s: pipeline %q: %s (cause: %v)", e.Code, e.PipelineID, e.Message, e.Cause)
	case e.PipelineID != "":
		return fmt.Sprintf("%s: pipeline %q: %s", e.Code, e.PipelineID, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause of the error.
func (e *EngineError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *EngineError) WithCause(cause error) *EngineError {
	e.Cause = cause
	return e
}

// New creates a new EngineError with automatic retryable detection.
func New(code ErrorCode, message string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Common error constructors ---

// PipelineFailed wraps an error returned by a pipeline's process operation.
func PipelineFailed(pipelineID string, cause error) *EngineError {
	return &EngineError{
		Code:       ErrCodePipelineFailed,
		Message:    "process operation failed",
		PipelineID: pipelineID,
		Retryable:  true,
		Cause:      cause,
	}
}

// PipelineTimeout reports that a pipeline exceeded its timeout.
func PipelineTimeout(pipelineID string, timeout time.Duration) *EngineError {
	return &EngineError{
		Code:       ErrCodePipelineTimeout,
		Message:    fmt.Sprintf("timed out after %s", timeout),
		PipelineID: pipelineID,
		Retryable:  true,
	}
}

// RetriesExhausted reports that a pipeline's retry budget was consumed.
func RetriesExhausted(pipelineID string, attempts int, cause error) *EngineError {
	return &EngineError{
		Code:       ErrCodeRetriesExhausted,
		Message:    fmt.Sprintf("failed after %d attempts", attempts),
		PipelineID: pipelineID,
		Cause:      cause,
	}
}

// ExecutionCancelled reports cooperative cancellation of an execution.
func ExecutionCancelled(executionID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeExecutionCancelled,
		Message: fmt.Sprintf("execution %s cancelled", executionID),
	}
}

// DependencyWaitCancelled reports cancellation while a pipeline awaited dependencies.
func DependencyWaitCancelled(pipelineID string) *EngineError {
	return &EngineError{
		Code:       ErrCodeDependencyWaitCancelled,
		Message:    "cancelled while waiting for dependencies",
		PipelineID: pipelineID,
	}
}

// CompositionFailed reports a failed composition under fail_fast strategy.
func CompositionFailed(compositionID string, cause error) *EngineError {
	return &EngineError{
		Code:    ErrCodeCompositionFailed,
		Message: fmt.Sprintf("composition %s failed", compositionID),
		Cause:   cause,
	}
}

// InvalidComposition reports a structural validation failure.
func InvalidComposition(message string) *EngineError {
	return &EngineError{
		Code:    ErrCodeInvalidComposition,
		Message: message,
	}
}

// --- Inspection helpers ---

// IsRetryable reports whether err (or any error in its chain) is a
// retryable EngineError.
func IsRetryable(err error) bool {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// CodeOf returns the ErrorCode of err, or empty if it is not an EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// PipelineOf returns the pipeline id attached to err, or empty.
func PipelineOf(err error) string {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.PipelineID
	}
	return ""
}
