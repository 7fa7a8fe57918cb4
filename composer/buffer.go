package composer

import (
	"github.com/skillsenselab/composekit/composition"
)

// layerBuffer is a bounded FIFO holding the inputs queued for one cascading
// layer. Overflow behavior is policy-driven; the Expand policy removes the
// bound entirely.
type layerBuffer struct {
	items    []any
	capacity int
	policy   composition.OverflowPolicy
	dropped  int
}

func newLayerBuffer(capacity int, policy composition.OverflowPolicy) *layerBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &layerBuffer{
		items:    make([]any, 0, capacity),
		capacity: capacity,
		policy:   policy,
	}
}

// Push enqueues an item, applying the overflow policy when full. Returns
// false when the item was discarded.
func (b *layerBuffer) Push(item any) bool {
	if b.policy != composition.Expand && len(b.items) >= b.capacity {
		switch b.policy {
		case composition.DropNewest:
			b.dropped++
			return false
		default: // drop_oldest
			b.items = b.items[1:]
			b.dropped++
		}
	}
	b.items = append(b.items, item)
	return true
}

// Pop dequeues the oldest item.
func (b *layerBuffer) Pop() (any, bool) {
	if len(b.items) == 0 {
		return nil, false
	}
	item := b.items[0]
	b.items = b.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (b *layerBuffer) Len() int { return len(b.items) }

// Dropped returns how many items the overflow policy discarded.
func (b *layerBuffer) Dropped() int { return b.dropped }

// Occupancy returns the fill fraction relative to the configured capacity.
// Under Expand this can exceed 1.
func (b *layerBuffer) Occupancy() float64 {
	return float64(len(b.items)) / float64(b.capacity)
}
