// Package climber implements an adaptive hill-climber: periodically compare
// the cache's recent hit rate against the previous sample, keep moving the
// window/main split in whatever direction it last moved if the hit rate
// improved, and reverse direction with a decayed step if it got worse.
package climber

// Climber tracks hits and misses between samples and proposes a new window
// size every Tick call. It is not safe for concurrent use; the maintenance
// loop's single drain goroutine owns it.
type Climber struct {
	stepPercent      float64
	stepDecayRate    float64
	restartThreshold float64

	hits, misses int64
	previousRate float64
	amount       float64 // signed step applied to the window, in entries
	initialized  bool
}

// New creates a Climber with Caffeine's defaults: a 6.25% initial step,
// halving after each adjustment that doesn't improve the hit rate, and a
// 5 percentage-point swing that resets the step back to its initial size.
func New() *Climber {
	return &Climber{
		stepPercent:      0.0625,
		stepDecayRate:    0.5,
		restartThreshold: 0.05,
	}
}

// RecordHit and RecordMiss feed the running sample that the next Tick
// compares against the previous one.
func (c *Climber) RecordHit()  { c.hits++ }
func (c *Climber) RecordMiss() { c.misses++ }

// sampleSizeFactor mirrors the frequency sketch's own aging interval
// (sampleSize = 10 x maximum): a hit-rate sample needs that many events
// behind it to mean anything, not whatever trickled in since the last
// drain pass.
const sampleSizeFactor = 10

// Tick is called once per drain pass but only actually samples once at
// least sampleSize events have accumulated since the last sample; calls
// in between just keep accumulating hits/misses and return 0. When it does
// sample, Tick computes the hit rate since the last sample, compares it to
// the previous one, and returns the window-size delta to apply (positive
// grows the window, negative shrinks it). windowMaximum and maximum bound
// the step size so a climb never proposes moving more than one step's
// worth of the total capacity at once.
func (c *Climber) Tick(windowMaximum, maximum int64) int64 {
	total := c.hits + c.misses
	sampleSize := sampleSizeFactor * maximum
	if total == 0 || total < sampleSize {
		return 0
	}
	rate := float64(c.hits) / float64(total)
	c.hits, c.misses = 0, 0

	if !c.initialized {
		c.previousRate = rate
		c.initialized = true
		c.amount = c.stepPercent * float64(maximum)
		return 0
	}

	delta := rate - c.previousRate
	if delta < -c.restartThreshold || delta > c.restartThreshold {
		c.amount = c.stepPercent * float64(maximum)
	}

	if delta < 0 {
		c.amount = -c.amount * c.stepDecayRate
	}

	c.previousRate = rate

	step := int64(c.amount)
	if step == 0 {
		if c.amount > 0 {
			step = 1
		} else if c.amount < 0 {
			step = -1
		}
	}
	if windowMaximum+step < 0 {
		step = -windowMaximum
	}
	if windowMaximum+step > maximum {
		step = maximum - windowMaximum
	}
	return step
}
