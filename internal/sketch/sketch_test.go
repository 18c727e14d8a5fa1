package sketch

import "testing"

func TestEstimateZeroBeforeIncrement(t *testing.T) {
	s := New(128)
	if got := s.Estimate(42); got != 0 {
		t.Fatalf("Estimate() on fresh sketch = %d, want 0", got)
	}
}

func TestIncrementRaisesEstimate(t *testing.T) {
	s := New(128)
	s.Increment(42)
	s.Increment(42)
	s.Increment(42)

	if got := s.Estimate(42); got != 3 {
		t.Fatalf("Estimate() after 3 increments = %d, want 3", got)
	}
	if got := s.Estimate(43); got != 0 {
		t.Fatalf("Estimate() of untouched key = %d, want 0", got)
	}
}

func TestCounterSaturatesAt15(t *testing.T) {
	s := New(16)
	for i := 0; i < 40; i++ {
		s.Increment(7)
	}
	if got := s.Estimate(7); got != counterMask {
		t.Fatalf("Estimate() after saturating increments = %d, want %d", got, counterMask)
	}
}

func TestResetHalvesCounters(t *testing.T) {
	s := New(4)
	for i := 0; i < 4; i++ {
		s.Increment(0)
	}
	before := s.Estimate(0)

	// Drive size up to sampleSize with other keys so reset() fires without
	// touching key 0 again.
	for s.size < s.sampleSize-1 {
		s.Increment(uint64(1_000_000) + uint64(s.size))
	}
	s.Increment(uint64(2_000_000))

	if s.size >= s.sampleSize {
		t.Fatalf("size = %d, want reset below sampleSize %d", s.size, s.sampleSize)
	}
	after := s.Estimate(0)
	if after > before {
		t.Fatalf("Estimate() after aging = %d, want <= %d", after, before)
	}
}

func TestClear(t *testing.T) {
	s := New(64)
	s.Increment(1)
	s.Increment(1)
	s.Clear()
	if got := s.Estimate(1); got != 0 {
		t.Fatalf("Estimate() after Clear() = %d, want 0", got)
	}
}
