// Package region implements an admission-controlled, segmented eviction
// policy: a window region admits every new entry, and a TinyLFU frequency
// comparison decides whether an entry leaving the window is worth admitting
// into the main region (split into a probation and a protected sub-region)
// ahead of whatever it would have to evict.
package region

import (
	"math/rand"

	"github.com/zhouwentong1993/caffeine/internal/deque"
	"github.com/zhouwentong1993/caffeine/internal/node"
	"github.com/zhouwentong1993/caffeine/internal/sketch"
)

// Cause explains why Policy evicted a node.
type Cause int8

const (
	CauseSize Cause = iota
	CauseExpired
	CauseCollected
)

// Policy tracks the window/main-probation/main-protected deques and the
// TinyLFU frequency sketch, and decides what to evict as entries are added
// and accessed. It is not safe for concurrent use; the maintenance loop's
// single drain goroutine is its only caller, under the eviction mutex.
type Policy[K comparable, V any] struct {
	window    *deque.Deque[K, V]
	probation *deque.Deque[K, V]
	protected *deque.Deque[K, V]

	sketch *sketch.Sketch

	maximum          int64
	windowMaximum    int64
	protectedMaximum int64

	windowWeighted    int64
	mainWeighted      int64
	protectedWeighted int64

	rand *rand.Rand
}

// defaultWindowPercent is the initial window share before the adaptive
// climber (internal/climber) starts adjusting it.
const defaultWindowPercent = 0.01

// New creates a Policy admitting up to maximum total weight, with an
// initial 1% window / 99% main (80% of which is protected) split.
func New[K comparable, V any](maximum int64, randSeed int64) *Policy[K, V] {
	p := &Policy[K, V]{
		window:    deque.NewAccessOrder[K, V](),
		probation: deque.NewAccessOrder[K, V](),
		protected: deque.NewAccessOrder[K, V](),
		sketch:    sketch.New(maximum),
		maximum:   maximum,
		rand:      rand.New(rand.NewSource(randSeed)),
	}
	p.SetMaximum(maximum)
	return p
}

// unboundedMaximum is used internally whenever the policy is configured
// with maximum<=0 ("unbounded"): every region gets effectively infinite
// room, so EvictExcess never sheds anything for size.
const unboundedMaximum = int64(1) << 62

// SetMaximum resizes the policy's capacity, used by the public façade's
// SetMaximum; the adaptive climber goes through SetWindowMaximum instead.
// maximum<=0 means unbounded. Does
// not itself evict; the caller must follow with EvictExcess to shed any
// now-overflowing weight.
func (p *Policy[K, V]) SetMaximum(maximum int64) {
	if maximum <= 0 {
		p.maximum = unboundedMaximum
		p.windowMaximum = unboundedMaximum
		p.protectedMaximum = unboundedMaximum
		return
	}
	p.maximum = maximum
	p.windowMaximum = int64(float64(maximum) * defaultWindowPercent)
	if p.windowMaximum < 1 {
		p.windowMaximum = 1
	}
	mainMaximum := maximum - p.windowMaximum
	p.protectedMaximum = int64(float64(mainMaximum) * 0.8)
}

func (p *Policy[K, V]) Maximum() int64          { return p.maximum }
func (p *Policy[K, V]) WindowMaximum() int64    { return p.windowMaximum }
func (p *Policy[K, V]) ProtectedMaximum() int64 { return p.protectedMaximum }

// SetWindowMaximum is the adaptive climber's hook: it redistributes weight
// between the window and the main-protected budget without touching the
// overall maximum.
func (p *Policy[K, V]) SetWindowMaximum(windowMaximum int64) {
	if windowMaximum < 0 {
		windowMaximum = 0
	}
	if windowMaximum > p.maximum {
		windowMaximum = p.maximum
	}
	p.windowMaximum = windowMaximum
	mainMaximum := p.maximum - p.windowMaximum
	p.protectedMaximum = int64(float64(mainMaximum) * 0.8)
}

// WeightedSize returns the total weight of every entry the policy tracks.
func (p *Policy[K, V]) WeightedSize() int64 {
	return p.windowWeighted + p.mainWeighted
}

func (p *Policy[K, V]) WindowWeightedSize() int64    { return p.windowWeighted }
func (p *Policy[K, V]) MainWeightedSize() int64      { return p.mainWeighted }
func (p *Policy[K, V]) ProtectedWeightedSize() int64 { return p.protectedWeighted }

// RecordAccess registers a frequency-sketch occurrence and, for a
// main-probation entry, promotes it to protected — demoting the
// least-recently-used protected entry back to probation if that pushes
// protected over its budget. Window and already-protected entries just
// move to the back of their own deque.
func (p *Policy[K, V]) RecordAccess(n *node.Node[K, V]) {
	p.sketch.Increment(n.KeyHash())

	switch n.Region() {
	case node.Window:
		p.window.MoveToBack(n)
	case node.MainProtected:
		p.protected.MoveToBack(n)
	case node.MainProbation:
		p.probation.Remove(n)
		n.SetRegion(node.MainProtected)
		p.protected.PushBack(n)
		p.protectedWeighted += n.Weight()
		p.demoteOverflowingProtected()
	}
}

func (p *Policy[K, V]) demoteOverflowingProtected() {
	for p.protectedWeighted > p.protectedMaximum {
		demoted := p.protected.First()
		if demoted == nil {
			return
		}
		p.protected.Remove(demoted)
		p.protectedWeighted -= demoted.Weight()
		demoted.SetRegion(node.MainProbation)
		p.probation.PushBack(demoted)
	}
}

// Add inserts a newly-created node into the window region. The caller is
// responsible for having already installed n into the data map.
func (p *Policy[K, V]) Add(n *node.Node[K, V]) {
	n.SetRegion(node.Window)
	p.window.PushBack(n)
	p.windowWeighted += n.Weight()
	p.sketch.Increment(n.KeyHash())
}

// Remove unlinks n from whatever region deque it currently occupies,
// without running eviction — used when a node is explicitly removed,
// replaced, or expires.
func (p *Policy[K, V]) Remove(n *node.Node[K, V]) {
	switch n.Region() {
	case node.Window:
		if n.InAccessDeque() {
			p.window.Remove(n)
			p.windowWeighted -= n.Weight()
		}
	case node.MainProbation:
		if n.InAccessDeque() {
			p.probation.Remove(n)
			p.mainWeighted -= n.Weight()
		}
	case node.MainProtected:
		if n.InAccessDeque() {
			p.protected.Remove(n)
			p.mainWeighted -= n.Weight()
			p.protectedWeighted -= n.Weight()
		}
	}
}

// UpdateWeight adjusts the tracked weighted size for n's region after an
// in-place value replacement changes its weight.
func (p *Policy[K, V]) UpdateWeight(n *node.Node[K, V], delta int64) {
	switch n.Region() {
	case node.Window:
		p.windowWeighted += delta
	case node.MainProbation, node.MainProtected:
		p.mainWeighted += delta
		if n.Region() == node.MainProtected {
			p.protectedWeighted += delta
		}
	}
}

// EvictExcess evicts entries until the policy's total weighted size is at
// or under maximum, calling evict for each one chosen. It first migrates
// any window overflow into probation via the TinyLFU admission test, then,
// if the cache is still over budget, evicts directly from main-probation —
// the region with the weakest recent-access evidence.
func (p *Policy[K, V]) EvictExcess(evict func(n *node.Node[K, V], cause Cause)) {
	p.evictFromWindow(evict)
	p.evictFromMain(evict)
}

func (p *Policy[K, V]) evictFromWindow(evict func(n *node.Node[K, V], cause Cause)) {
	for p.windowWeighted > p.windowMaximum {
		candidate := p.window.First()
		if candidate == nil {
			return
		}
		p.window.Remove(candidate)
		p.windowWeighted -= candidate.Weight()

		// A node whose own weight alone exceeds the overall budget can never
		// be admitted no matter what it would displace; shed it immediately
		// instead of running it through the admission comparison.
		if candidate.Weight() > p.maximum {
			evict(candidate, CauseSize)
			continue
		}

		if p.mainWeighted+candidate.Weight() <= p.maximum-p.windowMaximum {
			p.admitToProbation(candidate)
			continue
		}

		victim := p.probation.First()
		if victim == nil {
			p.admitToProbation(candidate)
			continue
		}
		if p.admit(candidate, victim) {
			p.probation.Remove(victim)
			p.mainWeighted -= victim.Weight()
			p.admitToProbation(candidate)
			evict(victim, CauseSize)
		} else {
			evict(candidate, CauseSize)
		}
	}
}

func (p *Policy[K, V]) admitToProbation(n *node.Node[K, V]) {
	n.SetRegion(node.MainProbation)
	p.probation.PushBack(n)
	p.mainWeighted += n.Weight()
}

// admit reports whether candidate should displace victim: the higher
// estimated frequency wins, and a tie is broken with a coin flip rather
// than always favoring one side.
func (p *Policy[K, V]) admit(candidate, victim *node.Node[K, V]) bool {
	candidateFreq := p.sketch.Estimate(candidate.KeyHash())
	victimFreq := p.sketch.Estimate(victim.KeyHash())
	if candidateFreq > victimFreq {
		return true
	}
	if candidateFreq < victimFreq {
		return false
	}
	return p.rand.Intn(2) == 0
}

// evictFromMain sheds entries directly from main-probation once window
// admission alone isn't enough to bring the cache back under maximum (e.g.
// after SetMaximum shrinks it).
func (p *Policy[K, V]) evictFromMain(evict func(n *node.Node[K, V], cause Cause)) {
	for p.WeightedSize() > p.maximum {
		victim := p.probation.First()
		if victim == nil {
			victim = p.protected.First()
		}
		if victim == nil {
			return
		}
		p.Remove(victim)
		evict(victim, CauseSize)
	}
}

// Coldest returns up to n nodes in eviction order (the ones EvictExcess
// would shed first): window from least- to most-recently-used, then
// probation, then protected.
func (p *Policy[K, V]) Coldest(n int) []*node.Node[K, V] {
	var out []*node.Node[K, V]
	collect := func(d *deque.Deque[K, V]) {
		d.Each(func(nd *node.Node[K, V]) {
			if len(out) < n {
				out = append(out, nd)
			}
		})
	}
	collect(p.window)
	collect(p.probation)
	collect(p.protected)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Hottest returns up to n nodes in reverse eviction order (most valuable
// first): protected from most- to least-recently-used, then probation,
// then window.
func (p *Policy[K, V]) Hottest(n int) []*node.Node[K, V] {
	var out []*node.Node[K, V]
	collect := func(d *deque.Deque[K, V]) {
		d.EachReverse(func(nd *node.Node[K, V]) {
			if len(out) < n {
				out = append(out, nd)
			}
		})
	}
	collect(p.protected)
	collect(p.probation)
	collect(p.window)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// WindowAccessExpire scans each region's access-order deque from its
// least-recently-accessed end, calling evict for every node whose last
// access is older than ttlNanos, and stopping at the first node that isn't
// — each deque is already sorted oldest-access-first, so nothing past that
// point can be expired either.
func (p *Policy[K, V]) WindowAccessExpire(now, ttlNanos int64, evict func(n *node.Node[K, V])) {
	expireOldest := func(d *deque.Deque[K, V]) {
		for {
			n := d.First()
			if n == nil || now-n.AccessTime() < ttlNanos {
				return
			}
			evict(n)
		}
	}
	expireOldest(p.window)
	expireOldest(p.probation)
	expireOldest(p.protected)
}

// Sketch exposes the underlying frequency sketch for inspection. The sketch
// ages itself as Increment is called.
func (p *Policy[K, V]) Sketch() *sketch.Sketch { return p.sketch }

// Clear empties every region deque and resets the weighted-size counters
// and the frequency sketch, used by InvalidateAll.
func (p *Policy[K, V]) Clear() {
	p.window = deque.NewAccessOrder[K, V]()
	p.probation = deque.NewAccessOrder[K, V]()
	p.protected = deque.NewAccessOrder[K, V]()
	p.windowWeighted, p.mainWeighted, p.protectedWeighted = 0, 0, 0
	p.sketch.Clear()
}
