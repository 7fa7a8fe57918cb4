package testutil

import (
	"context"
	"sync"
	"time"
)

// FakePipeline is a scripted Processor for tests. It records every
// invocation and can be configured to fail a set number of times before
// succeeding, to fail always, or to sleep before returning.
type FakePipeline struct {
	mu sync.Mutex

	// Output is returned on success. When nil and Transform is set, the
	// transform result is returned instead.
	Output any
	// Transform, when set, computes the output from the input.
	Transform func(input any) any
	// Err, when set, is returned on every invocation.
	Err error
	// FailuresBeforeSuccess fails the first N invocations with FailErr,
	// then succeeds.
	FailuresBeforeSuccess int
	// FailErr is the error used by FailuresBeforeSuccess. Required when
	// FailuresBeforeSuccess > 0.
	FailErr error
	// Latency is slept (context-aware) before returning.
	Latency time.Duration

	calls  int
	inputs []any
}

// Process implements composition.Processor.
func (f *FakePipeline) Process(ctx context.Context, input any, _ map[string]any) (any, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	if f.Latency > 0 {
		timer := time.NewTimer(f.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}
	if call <= f.FailuresBeforeSuccess {
		return nil, f.FailErr
	}

	if f.Transform != nil {
		return f.Transform(input), nil
	}
	return f.Output, nil
}

// Calls returns how many times Process was invoked.
func (f *FakePipeline) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Inputs returns the inputs received, in invocation order.
func (f *FakePipeline) Inputs() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.inputs))
	copy(out, f.inputs)
	return out
}

// LastInput returns the most recent input, or nil when never invoked.
func (f *FakePipeline) LastInput() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}
