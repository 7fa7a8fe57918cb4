package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_CapsConcurrency(t *testing.T) {
	const limit = 3
	b := NewBulkhead(limit)

	var current, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func() error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Errorf("observed concurrency %d exceeds cap %d", peak, limit)
	}
}

func TestBulkhead_TryAcquire(t *testing.T) {
	b := NewBulkhead(1)

	if !b.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if b.TryAcquire() {
		t.Error("expected second acquire to fail")
	}
	if b.InUse() != 1 {
		t.Errorf("expected 1 in use, got %d", b.InUse())
	}

	b.Release()
	if b.Available() != 1 {
		t.Errorf("expected 1 available, got %d", b.Available())
	}
}

func TestBulkhead_AcquireRespectsContext(t *testing.T) {
	b := NewBulkhead(1)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := b.Acquire(ctx); err == nil {
		t.Error("expected context error while bulkhead full")
	}
}

func TestNewBulkhead_ZeroCapBecomesOne(t *testing.T) {
	b := NewBulkhead(0)
	if b.MaxConcurrent() != 1 {
		t.Errorf("expected cap 1, got %d", b.MaxConcurrent())
	}
}
