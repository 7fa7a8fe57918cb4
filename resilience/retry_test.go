package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	result, err := Do(context.Background(), p, func(attempt int) (string, error) {
		callCount++
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_InvokesExactlyMaxAttempts(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent")
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Millisecond}

	_, err := Do(context.Background(), p, func(attempt int) (string, error) {
		if attempt != callCount {
			t.Errorf("expected attempt %d, got %d", callCount, attempt)
		}
		callCount++
		return "", testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected testErr, got %v", err)
	}
	if callCount != 4 {
		t.Errorf("expected 4 calls, got %d", callCount)
	}
}

func TestDo_StopsWhenRetryIfDeclines(t *testing.T) {
	callCount := 0
	fatal := errors.New("fatal")
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		RetryIf:     func(err error) bool { return !errors.Is(err, fatal) },
	}

	_, err := Do(context.Background(), p, func(attempt int) (string, error) {
		callCount++
		return "", fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_RespectsContextDuringBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	callCount := 0
	_, err := Do(ctx, p, func(attempt int) (string, error) {
		callCount++
		return "", errors.New("x")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call before deadline, got %d", callCount)
	}
}

func TestRetryPolicy_Backoff_Doubles(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, c := range cases {
		if got := p.Backoff(c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %s, got %s", c.attempt, c.want, got)
		}
	}
}

func TestRetryPolicy_Backoff_Capped(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	if got := p.Backoff(10); got != 5*time.Second {
		t.Errorf("expected cap at 5s, got %s", got)
	}
}

func TestDo_OnRetryObservesSchedule(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		},
	}

	_, _ = Do(context.Background(), p, func(attempt int) (string, error) {
		return "", errors.New("x")
	})

	if len(delays) != 2 {
		t.Fatalf("expected 2 retry waits, got %d", len(delays))
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("expected doubling schedule, got %v", delays)
	}
}
