package resilience

import (
	"context"
)

// Bulkhead limits the number of concurrently executing calls.
// Acquisition blocks until a slot frees or the context is cancelled; that
// matches the composer admission loop, which must wait for a slot rather
// than reject work.
type Bulkhead struct {
	max int
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given concurrency cap.
func NewBulkhead(maxConcurrent int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		max: maxConcurrent,
		sem: make(chan struct{}, maxConcurrent),
	}
}

// Acquire blocks until a slot is available or ctx is done.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires a slot without blocking. Returns false when full.
func (b *Bulkhead) TryAcquire() bool {
	select {
	case b.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot to the bulkhead.
func (b *Bulkhead) Release() {
	<-b.sem
}

// Execute runs fn within the bulkhead, blocking for a slot first.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// Available returns the number of free slots.
func (b *Bulkhead) Available() int {
	return b.max - len(b.sem)
}

// MaxConcurrent returns the configured cap.
func (b *Bulkhead) MaxConcurrent() int {
	return b.max
}
