// Package timerwheel implements a hierarchical timer wheel that schedules
// nodes with a variable per-entry expiry: a fixed number of levels, each
// with a fixed slot count, items re-bucketed (cascaded) as the pointer
// advances. It is driven entirely by explicit AdvanceTo(now) calls instead
// of a background goroutine+ticker: the maintenance loop already runs on
// its own schedule, so the wheel just needs to be told what time it is.
// Each level's buckets are an internal/deque.Deque threaded through the
// node's expire-order links, the same intrusive-list machinery the region
// and write-order deques use.
package timerwheel

import (
	"github.com/zhouwentong1993/caffeine/internal/deque"
	"github.com/zhouwentong1993/caffeine/internal/node"
)

const (
	levels      = 4
	buckets     = 64
	bucketsMask = buckets - 1
)

// shift[l] is log2 of level l's bucket width in nanoseconds: level 0 buckets
// span ~1.07s, level 1 ~68.7s, level 2 ~73.3min, level 3 ~78h. A node's
// level is the finest one whose 64-bucket range still exceeds its delay.
var shift = [levels]uint{30, 36, 42, 48}

func levelFor(delayNanos int64) int {
	for l := 0; l < levels-1; l++ {
		if delayNanos < int64(buckets)<<shift[l] {
			return l
		}
	}
	return levels - 1
}

func bucketIndex(level int, deadlineNano int64) int {
	return int((deadlineNano >> shift[level]) & bucketsMask)
}

// Wheel buckets nodes by their variable-expiry deadline. It is not safe for
// concurrent use; only the maintenance loop's single drain goroutine touches
// it, under the eviction mutex.
type Wheel[K comparable, V any] struct {
	buckets [levels][buckets]*deque.Deque[K, V]
	ticks   [levels]int64
	nowNano int64
}

// New creates a Wheel with its clock initialized to nowNano.
func New[K comparable, V any](nowNano int64) *Wheel[K, V] {
	w := &Wheel[K, V]{nowNano: nowNano}
	for l := 0; l < levels; l++ {
		w.ticks[l] = nowNano >> shift[l]
		for b := 0; b < buckets; b++ {
			w.buckets[l][b] = deque.NewExpireOrder[K, V]()
		}
	}
	return w
}

// Schedule places n into the bucket matching deadlineNano given the current
// time nowNano. n must not already be scheduled; call Deschedule first if
// it might be.
func (w *Wheel[K, V]) Schedule(n *node.Node[K, V], nowNano, deadlineNano int64) {
	delay := deadlineNano - nowNano
	if delay < 0 {
		delay = 0
	}
	level := levelFor(delay)
	bucket := bucketIndex(level, deadlineNano)
	w.buckets[level][bucket].PushBack(n)
	n.SetWheelBucket(level*buckets + bucket)
}

// Deschedule removes n from whichever bucket it currently occupies. A no-op
// if n is not scheduled.
func (w *Wheel[K, V]) Deschedule(n *node.Node[K, V]) {
	if !n.InTimerWheel() {
		return
	}
	level, bucket := n.WheelBucket()/buckets, n.WheelBucket()%buckets
	w.buckets[level][bucket].Remove(n)
}

// AdvanceTo moves the wheel's notion of the current time forward to now and
// returns every node whose deadline has passed. Nodes whose bucket tick
// arrived but whose deadline is still in the future are re-bucketed at a
// finer level, the usual hierarchical-wheel cascade. A single AdvanceTo call
// processes at most one full revolution (64 ticks) per level, bounding its
// cost; a cache that goes untouched for longer than a level's full range
// just catches every stale deadline on the next AdvanceTo instead of this
// one — acceptable since spec's Non-goals exclude bounded worst-case
// latency guarantees.
func (w *Wheel[K, V]) AdvanceTo(now int64) []*node.Node[K, V] {
	if now <= w.nowNano {
		w.nowNano = now
		return nil
	}

	var expired []*node.Node[K, V]
	for level := 0; level < levels; level++ {
		currentTick := w.ticks[level]
		newTick := now >> shift[level]
		// The bucket of the tick the wheel is already in is swept too: it
		// holds nodes whose deadline falls inside that same tick.
		ticksToProcess := newTick - currentTick + 1
		if ticksToProcess > int64(buckets) {
			ticksToProcess = int64(buckets)
		}
		for i := int64(0); i < ticksToProcess; i++ {
			tick := currentTick + i
			bucket := int(tick & bucketsMask)
			d := w.buckets[level][bucket]

			var pending []*node.Node[K, V]
			d.Each(func(n *node.Node[K, V]) { pending = append(pending, n) })
			for _, n := range pending {
				d.Remove(n)
				if n.VariableExpireTime() <= now {
					expired = append(expired, n)
				} else {
					w.Schedule(n, now, n.VariableExpireTime())
				}
			}
		}
		w.ticks[level] = newTick
	}
	w.nowNano = now
	return expired
}
