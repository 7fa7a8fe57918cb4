package composer

import (
	"testing"

	"github.com/skillsenselab/composekit/composition"
)

func TestLayerBufferDropOldest(t *testing.T) {
	buf := newLayerBuffer(2, composition.DropOldest)
	buf.Push("a")
	buf.Push("b")
	buf.Push("c")

	if buf.Len() != 2 {
		t.Fatalf("len = %d, want 2", buf.Len())
	}
	if buf.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", buf.Dropped())
	}
	first, _ := buf.Pop()
	if first != "b" {
		t.Errorf("head = %v, want b after oldest eviction", first)
	}
}

func TestLayerBufferDropNewest(t *testing.T) {
	buf := newLayerBuffer(2, composition.DropNewest)
	buf.Push("a")
	buf.Push("b")
	if buf.Push("c") {
		t.Error("push into full drop_newest buffer must report discard")
	}

	first, _ := buf.Pop()
	second, _ := buf.Pop()
	if first != "a" || second != "b" {
		t.Errorf("kept %v, %v; want a, b", first, second)
	}
	if buf.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", buf.Dropped())
	}
}

func TestLayerBufferExpand(t *testing.T) {
	buf := newLayerBuffer(1, composition.Expand)
	for i := 0; i < 5; i++ {
		buf.Push(i)
	}
	if buf.Len() != 5 {
		t.Errorf("len = %d, want 5 under expand", buf.Len())
	}
	if buf.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", buf.Dropped())
	}
	if buf.Occupancy() <= 1 {
		t.Errorf("occupancy = %v, expected above 1 under expand", buf.Occupancy())
	}
}

func TestLayerBufferPopEmpty(t *testing.T) {
	buf := newLayerBuffer(1, composition.DropOldest)
	if _, ok := buf.Pop(); ok {
		t.Error("pop of empty buffer must report false")
	}
}
