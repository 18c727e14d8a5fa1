package climber

import "testing"

// recordHits feeds n hits into c, enough on its own to cross the sampleSize
// threshold Tick gates on for a maximum of 100 (sampleSize = 10 x 100).
func recordHits(c *Climber, n int) {
	for i := 0; i < n; i++ {
		c.RecordHit()
	}
}

func TestFirstTickReturnsNoAdjustment(t *testing.T) {
	c := New()
	recordHits(c, 1000)
	c.RecordMiss()
	if got := c.Tick(10, 100); got != 0 {
		t.Fatalf("Tick() on first sample = %d, want 0", got)
	}
}

func TestTickWithNoSamplesIsNoop(t *testing.T) {
	c := New()
	if got := c.Tick(10, 100); got != 0 {
		t.Fatalf("Tick() with no recorded hits/misses = %d, want 0", got)
	}
}

func TestTickBelowSampleSizeIsNoop(t *testing.T) {
	c := New()
	recordHits(c, 999) // one short of sampleSize (10 x 100)
	if got := c.Tick(10, 100); got != 0 {
		t.Fatalf("Tick() below sampleSize = %d, want 0", got)
	}
}

func TestStepStaysWithinBounds(t *testing.T) {
	c := New()
	recordHits(c, 1000)
	c.Tick(50, 100) // seed previousRate

	for i := 0; i < 20; i++ {
		recordHits(c, 1000)
		step := c.Tick(50, 100)
		if 50+step < 0 || 50+step > 100 {
			t.Fatalf("Tick() produced out-of-bounds step %d", step)
		}
	}
}

func TestImprovingHitRateKeepsDirection(t *testing.T) {
	c := New()
	recordHits(c, 1000)
	c.Tick(50, 100)

	recordHits(c, 1000)
	first := c.Tick(50, 100)

	recordHits(c, 1000)
	second := c.Tick(50, 100)

	if (first > 0) != (second > 0) && first != 0 {
		t.Fatalf("direction flipped across consecutive improving samples: %d then %d", first, second)
	}
}
