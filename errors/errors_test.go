package errors

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"
)

func TestEngineError_Error(t *testing.T) {
	cause := stderrors.New("boom")
	err := PipelineFailed("face-detect", cause)

	msg := err.Error()
	if !strings.Contains(msg, "PIPELINE_FAILED") {
		t.Errorf("expected code in message, got %s", msg)
	}
	if !strings.Contains(msg, "face-detect") {
		t.Errorf("expected pipeline id in message, got %s", msg)
	}
	if !strings.Contains(msg, "boom") {
		t.Errorf("expected cause in message, got %s", msg)
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := PipelineFailed("p1", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(PipelineFailed("p1", stderrors.New("x"))) {
		t.Error("pipeline failure should be retryable")
	}
	if !IsRetryable(PipelineTimeout("p1", 5*time.Second)) {
		t.Error("timeout should be retryable")
	}
	if IsRetryable(ExecutionCancelled("exec-1")) {
		t.Error("cancellation should not be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain error should not be retryable")
	}
}

func TestIsRetryable_WrappedChain(t *testing.T) {
	inner := PipelineTimeout("p1", time.Second)
	wrapped := CompositionFailed("c1", inner)

	// CompositionFailed itself is not retryable, and As finds it first.
	if IsRetryable(wrapped) {
		t.Error("composition failure should not be retryable")
	}
	if CodeOf(wrapped) != ErrCodeCompositionFailed {
		t.Errorf("expected COMPOSITION_FAILED, got %s", CodeOf(wrapped))
	}
}

func TestCodeOf_And_PipelineOf(t *testing.T) {
	err := RetriesExhausted("audio", 4, stderrors.New("x"))
	if CodeOf(err) != ErrCodeRetriesExhausted {
		t.Errorf("expected RETRIES_EXHAUSTED, got %s", CodeOf(err))
	}
	if PipelineOf(err) != "audio" {
		t.Errorf("expected pipeline 'audio', got %s", PipelineOf(err))
	}
	if CodeOf(stderrors.New("plain")) != "" {
		t.Error("expected empty code for plain error")
	}
}
