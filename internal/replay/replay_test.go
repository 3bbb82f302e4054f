package replay

import (
	"math/rand"
	"testing"
)

func exp(a uint16) Experience {
	return Experience{State: []float64{float64(a)}, Action: a, Reward: 1, NextState: []float64{float64(a)}}
}

func TestUniformBufferOverwritesOldest(t *testing.T) {
	b, err := New(Uniform, 3, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := uint16(0); i < 5; i++ {
		b.Add(exp(i))
	}

	if b.Size() != 3 {
		t.Fatalf("expected size 3, got %d", b.Size())
	}
	if !b.IsFull() {
		t.Error("expected buffer to be full")
	}

	items, _, _ := b.Sample(3, rand.New(rand.NewSource(1)))
	seen := map[uint16]bool{}
	for _, e := range items {
		seen[e.Action] = true
	}
	for _, want := range []uint16{2, 3, 4} {
		if !seen[want] {
			t.Errorf("expected most recent action %d to survive overwrite, items=%v", want, items)
		}
	}
}

func TestUniformSampleDistinctIndices(t *testing.T) {
	b, _ := New(Uniform, 10, 0, 0, 0, 0)
	for i := uint16(0); i < 10; i++ {
		b.Add(exp(i))
	}

	_, indices, _ := b.Sample(5, rand.New(rand.NewSource(7)))
	seen := map[int]bool{}
	for _, idx := range indices {
		if seen[idx] {
			t.Fatalf("duplicate index %d in uniform sample without replacement", idx)
		}
		seen[idx] = true
	}
}

func TestPrioritizedSamplePrefersHighPriority(t *testing.T) {
	b, err := New(Prioritized, 4, 1.0, 0.4, 0.001, 0.01)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint16(0); i < 4; i++ {
		b.Add(exp(i))
	}
	// Crank action 3's priority far above the others.
	b.UpdatePriorities([]int{3}, []float64{100})
	for i := 0; i < 3; i++ {
		b.UpdatePriorities([]int{i}, []float64{0})
	}

	rng := rand.New(rand.NewSource(3))
	counts := map[uint16]int{}
	for i := 0; i < 200; i++ {
		items, _, _ := b.Sample(1, rng)
		counts[items[0].Action]++
	}

	if counts[3] < 150 {
		t.Errorf("expected high-priority item to dominate sampling, counts=%v", counts)
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(Uniform, 0, 0, 0, 0, 0); err == nil {
		t.Error("expected error for zero capacity")
	}
}

func TestClearResetsState(t *testing.T) {
	b, _ := New(Uniform, 4, 0, 0, 0, 0)
	b.Add(exp(1))
	b.Clear()
	if b.Size() != 0 {
		t.Errorf("expected size 0 after Clear, got %d", b.Size())
	}
}
