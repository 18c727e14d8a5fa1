// Package maintenance is the single-writer drain loop: it owns the eviction
// mutex, and is the only thing that ever touches the region policy's
// deques, the timer wheel, or the frequency sketch. Everything else reaches
// it by pushing onto the read or write buffer (internal/ring) and nudging
// the drain-status state machine.
//
// The state machine (idle/required/processingToIdle/processingToRequired)
// drives the maintenance step order: drain read buffer, drain write buffer,
// expire, evict, climb. A write buffer that's full means the producer runs
// maintenance itself rather than dropping the task.
package maintenance

import (
	"sync"
	"sync/atomic"

	"github.com/zhouwentong1993/caffeine/internal/clock"
	"github.com/zhouwentong1993/caffeine/internal/climber"
	"github.com/zhouwentong1993/caffeine/internal/datamap"
	"github.com/zhouwentong1993/caffeine/internal/deque"
	"github.com/zhouwentong1993/caffeine/internal/node"
	"github.com/zhouwentong1993/caffeine/internal/pacer"
	"github.com/zhouwentong1993/caffeine/internal/region"
	"github.com/zhouwentong1993/caffeine/internal/ring"
	"github.com/zhouwentong1993/caffeine/internal/stats"
	"github.com/zhouwentong1993/caffeine/internal/timerwheel"
)

// WriteKind identifies what a WriteTask asks the drain to do.
type WriteKind int8

const (
	WriteAdd WriteKind = iota
	WriteUpdate
	WriteRemove
)

// WriteTask is one entry in the write buffer. OldWeight carries the weight
// an update replaced, so the policy's weighted-size bookkeeping stays
// correct without re-reading the node (whose weight field the caller may
// already have overwritten by the time the drain processes the task).
type WriteTask[K comparable, V any] struct {
	Kind              WriteKind
	Node              *node.Node[K, V]
	OldWeight         int64
	PreviousWriteTime int64
	Cause             stats.DeletionCause
}

const (
	statusIdle int32 = iota
	statusRequired
	statusProcessingToIdle
	statusProcessingToRequired
)

const (
	readBufferDrainThreshold = 64
	writeBufferDrainMax      = 1 << 16
	readBufferDrainMax       = 1 << 16
)

// Listener is called synchronously, under the eviction mutex, once per node
// the drain removes. The façade uses it to dispatch its eviction and removal
// listeners; the loop itself records each removal in stats.Recorder.
type Listener[K comparable, V any] func(n *node.Node[K, V], cause stats.DeletionCause)

// Loop is the maintenance loop: the eviction-mutex-guarded owner of the
// region policy, the timer wheel, and the write-order deque, and the single
// consumer of both ring buffers.
type Loop[K comparable, V any] struct {
	mu sync.Mutex

	clock clock.Clock
	data  *datamap.Map[K, V]

	readBuffer  *ring.ReadBuffer[*node.Node[K, V]]
	writeBuffer *ring.WriteBuffer[WriteTask[K, V]]
	readCount   atomic.Int64

	policy     *region.Policy[K, V]
	writeOrder *deque.Deque[K, V]
	wheel      *timerwheel.Wheel[K, V]
	climber    *climber.Climber
	pacer      *pacer.Pacer

	expireAfterAccessNanos int64
	expireAfterWriteNanos  int64
	expireWriteToleranceNanos int64
	hasVariableExpiry      bool

	drainStatus atomic.Int32

	onEvict Listener[K, V]
	stats   stats.Recorder
}

// Config gathers a Loop's fixed collaborators and policy knobs.
type Config[K comparable, V any] struct {
	Clock       clock.Clock
	Data        *datamap.Map[K, V]
	Policy      *region.Policy[K, V]
	Executor    pacer.Executor
	Stats       stats.Recorder
	OnEvict     Listener[K, V]

	Maximum int64

	ExpireAfterAccessNanos    int64
	ExpireAfterWriteNanos     int64
	ExpireWriteToleranceNanos int64
	HasVariableExpiry         bool
}

// New creates a Loop. nowNano seeds the timer wheel's clock.
func New[K comparable, V any](cfg Config[K, V], nowNano int64) *Loop[K, V] {
	l := &Loop[K, V]{
		clock:                     cfg.Clock,
		data:                      cfg.Data,
		readBuffer:                ring.NewReadBuffer[*node.Node[K, V]](2048),
		writeBuffer:               ring.NewWriteBuffer[WriteTask[K, V]](2048),
		policy:                    cfg.Policy,
		writeOrder:                deque.NewWriteOrder[K, V](),
		wheel:                     timerwheel.New[K, V](nowNano),
		climber:                   climber.New(),
		pacer:                     pacer.New(cfg.Executor),
		expireAfterAccessNanos:    cfg.ExpireAfterAccessNanos,
		expireAfterWriteNanos:     cfg.ExpireAfterWriteNanos,
		expireWriteToleranceNanos: cfg.ExpireWriteToleranceNanos,
		hasVariableExpiry:         cfg.HasVariableExpiry,
		onEvict:                   cfg.OnEvict,
		stats:                     cfg.Stats,
	}
	if l.stats == nil {
		l.stats = stats.NoopRecorder{}
	}
	return l
}

// RecordRead enqueues an access event. Loss under contention is acceptable;
// RecordRead only nudges the drain once the buffer has accumulated enough
// events to be worth draining, so a single isolated access doesn't pay for
// a maintenance pass.
func (l *Loop[K, V]) RecordRead(n *node.Node[K, V]) {
	l.readBuffer.Add(n)
	if l.readCount.Add(1)%readBufferDrainThreshold == 0 {
		l.scheduleDrain()
	}
}

// RecordWrite enqueues a write task. Unlike RecordRead, a write must never
// be lost: if the write buffer is full, RecordWrite runs maintenance itself
// (inline, under the eviction mutex) until there is room.
func (l *Loop[K, V]) RecordWrite(task WriteTask[K, V]) {
	for !l.writeBuffer.Add(task) {
		l.PerformCleanUp()
	}
	l.scheduleDrain()
}

// scheduleDrain implements the idle/required/processingToIdle/
// processingToRequired transition table: from idle, move to required and
// hand a cleanup task to the pacer; from required, a task is already
// pending, so do nothing further; from processingToIdle (a drain is
// in-flight and about to go idle), bump it to processingToRequired so the
// in-flight drain loops once more instead of missing this event; from
// processingToRequired, a second drain is already guaranteed, so do
// nothing.
func (l *Loop[K, V]) scheduleDrain() {
	for {
		switch l.drainStatus.Load() {
		case statusIdle:
			if l.drainStatus.CompareAndSwap(statusIdle, statusRequired) {
				l.pacer.Schedule(l.PerformCleanUp)
				return
			}
		case statusRequired:
			return
		case statusProcessingToIdle:
			if l.drainStatus.CompareAndSwap(statusProcessingToIdle, statusProcessingToRequired) {
				return
			}
		case statusProcessingToRequired:
			return
		}
	}
}

// PerformCleanUp runs the drain under the eviction mutex, looping until the
// state machine settles on idle (i.e. no write arrived while this drain was
// running that still needs a follow-up pass). Safe to call directly —
// blocking operations call this to guarantee the drain has happened before
// they return.
func (l *Loop[K, V]) PerformCleanUp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		l.drainStatus.Store(statusProcessingToIdle)
		l.runOnePass()
		if l.drainStatus.CompareAndSwap(statusProcessingToIdle, statusIdle) {
			return
		}
		// CompareAndSwap only fails if another scheduleDrain call bumped us
		// to processingToRequired while runOnePass was executing; loop once
		// more rather than leaving that event undrained.
	}
}

// runOnePass is one execution of the maintenance step order: drain both
// buffers, expire, evict, then let the adaptive climber re-balance the
// window/main split.
func (l *Loop[K, V]) runOnePass() {
	l.drainReadBuffer()
	l.drainWriteBuffer()
	now := l.clock.NowNano()
	l.expireNodes(now)
	l.evictNodes()
	l.climb()
}

func (l *Loop[K, V]) drainReadBuffer() {
	l.readBuffer.Drain(readBufferDrainMax, func(n *node.Node[K, V]) {
		if !n.IsAlive() || !n.InAccessDeque() {
			return
		}
		l.policy.RecordAccess(n)
	})
}

func (l *Loop[K, V]) drainWriteBuffer() {
	l.writeBuffer.Drain(writeBufferDrainMax, func(task WriteTask[K, V]) {
		switch task.Kind {
		case WriteAdd:
			l.onAdd(task.Node)
		case WriteUpdate:
			l.onUpdate(task.Node, task.OldWeight, task.PreviousWriteTime)
		case WriteRemove:
			l.onRemove(task.Node, task.Cause)
		}
	})
}

func (l *Loop[K, V]) onAdd(n *node.Node[K, V]) {
	l.policy.Add(n)
	l.linkWriteOrder(n)
	l.scheduleExpiry(n)
}

// onUpdate applies an in-place value replacement's weight delta and
// repositions n for write-based expiration. Back-to-back updates within
// expireWriteToleranceNanos of the previous write skip repositioning
// entirely — a hot counter-style key updated every millisecond shouldn't
// churn the write-order deque and the timer wheel on every single write.
func (l *Loop[K, V]) onUpdate(n *node.Node[K, V], oldWeight, previousWriteTime int64) {
	delta := n.Weight() - oldWeight
	if delta != 0 {
		l.policy.UpdateWeight(n, delta)
	}

	now := n.WriteTime()
	if l.expireWriteToleranceNanos > 0 && now-previousWriteTime < l.expireWriteToleranceNanos {
		return
	}

	if l.expireAfterWriteNanos > 0 {
		l.writeOrder.MoveToBack(n)
	}
	if l.hasVariableExpiry {
		l.wheel.Deschedule(n)
		l.scheduleExpiry(n)
	}
}

func (l *Loop[K, V]) onRemove(n *node.Node[K, V], cause stats.DeletionCause) {
	l.data.Remove(n.Key(), n.KeyHash(), n)
	l.unlinkAll(n)
	n.Die()
	if l.onEvict != nil {
		l.onEvict(n, cause)
	}
	l.stats.RecordEviction(cause, n.Weight())
}

func (l *Loop[K, V]) linkWriteOrder(n *node.Node[K, V]) {
	if l.expireAfterWriteNanos > 0 {
		l.writeOrder.PushBack(n)
	}
}

func (l *Loop[K, V]) scheduleExpiry(n *node.Node[K, V]) {
	if l.hasVariableExpiry && n.HasVariableExpire() {
		l.wheel.Schedule(n, l.clock.NowNano(), n.VariableExpireTime())
	}
}

// expireNodes evicts every node whose after-access, after-write, or
// variable expiry deadline has passed, in that order. The write-order scan
// stops at the first unexpired node, since writeOrder is sorted
// oldest-write-first.
func (l *Loop[K, V]) expireNodes(now int64) {
	if l.expireAfterAccessNanos > 0 {
		l.policy.WindowAccessExpire(now, l.expireAfterAccessNanos, l.evictExpired)
	}
	if l.expireAfterWriteNanos > 0 {
		for {
			n := l.writeOrder.First()
			if n == nil || now-n.WriteTime() < l.expireAfterWriteNanos {
				break
			}
			l.writeOrder.Remove(n)
			l.evictExpired(n)
		}
	}
	if l.hasVariableExpiry {
		for _, n := range l.wheel.AdvanceTo(now) {
			l.evictExpired(n)
		}
	}
}

func (l *Loop[K, V]) evictExpired(n *node.Node[K, V]) {
	if !n.IsAlive() {
		return
	}
	n.Retire()
	l.data.Remove(n.Key(), n.KeyHash(), n)
	l.policy.Remove(n)
	if n.InWriteDeque() {
		l.writeOrder.Remove(n)
	}
	if l.hasVariableExpiry && n.InTimerWheel() {
		l.wheel.Deschedule(n)
	}
	n.Die()
	if l.onEvict != nil {
		l.onEvict(n, stats.CauseExpired)
	}
	l.stats.RecordEviction(stats.CauseExpired, n.Weight())
}

func (l *Loop[K, V]) evictNodes() {
	l.policy.EvictExcess(func(n *node.Node[K, V], cause region.Cause) {
		n.Retire()
		l.data.Remove(n.Key(), n.KeyHash(), n)
		if n.InWriteDeque() {
			l.writeOrder.Remove(n)
		}
		if l.hasVariableExpiry && n.InTimerWheel() {
			l.wheel.Deschedule(n)
		}
		n.Die()
		if l.onEvict != nil {
			l.onEvict(n, stats.CauseSize)
		}
		l.stats.RecordEviction(stats.CauseSize, n.Weight())
	})
}

func (l *Loop[K, V]) climb() {
	step := l.climber.Tick(l.policy.WindowMaximum(), l.policy.Maximum())
	if step != 0 {
		l.policy.SetWindowMaximum(l.policy.WindowMaximum() + step)
	}
}

func (l *Loop[K, V]) unlinkAll(n *node.Node[K, V]) {
	l.policy.Remove(n)
	if n.InWriteDeque() {
		l.writeOrder.Remove(n)
	}
	if l.hasVariableExpiry && n.InTimerWheel() {
		l.wheel.Deschedule(n)
	}
}

// RecordHitOrMiss feeds the adaptive climber's sample, distinct from
// stats.Recorder: the climber needs every lookup's outcome regardless of
// whether statistics recording is enabled.
func (l *Loop[K, V]) RecordHitOrMiss(hit bool) {
	if hit {
		l.climber.RecordHit()
	} else {
		l.climber.RecordMiss()
	}
}

// Policy exposes the underlying region policy for read-only introspection
// (WeightedSize, Coldest, Hottest) that doesn't need the eviction mutex's
// full exclusivity — callers needing a consistent read should go through
// PerformCleanUp first.
func (l *Loop[K, V]) Policy() *region.Policy[K, V] { return l.policy }

// RescheduleExpiry moves n's variable-expiry deadline to newDeadlineNano,
// used by a read-driven Expiry policy to push an entry's deadline out on
// every access rather than only on write.
func (l *Loop[K, V]) RescheduleExpiry(n *node.Node[K, V], newDeadlineNano int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !n.IsAlive() {
		return
	}
	if n.InTimerWheel() {
		l.wheel.Deschedule(n)
	}
	n.SetVariableExpireTime(newDeadlineNano)
	l.scheduleExpiry(n)
}

// HasVariableExpiry reports whether the loop was configured with a
// per-entry variable expiry policy.
func (l *Loop[K, V]) HasVariableExpiry() bool { return l.hasVariableExpiry }

// Lock/Unlock expose the eviction mutex directly for operations that must
// run under it but aren't expressible as a WriteTask (SetMaximum).
func (l *Loop[K, V]) Lock()   { l.mu.Lock() }
func (l *Loop[K, V]) Unlock() { l.mu.Unlock() }

// Clear unlinks and kills every live node from the data map, the region
// policy, the write-order deque, and the timer wheel, calling notify for
// each one before it's discarded. Used by InvalidateAll; Clear's removals
// are an explicit caller action rather than a cause the loop itself
// decided, so it does not go through onEvict/stats.RecordEviction.
func (l *Loop[K, V]) Clear(notify func(n *node.Node[K, V])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data.Range(func(n *node.Node[K, V]) bool {
		if !n.IsAlive() {
			return true
		}
		n.Retire()
		l.unlinkAll(n)
		n.Die()
		if notify != nil {
			notify(n)
		}
		return true
	})
	l.data.Clear()
	l.policy.Clear()
	l.writeOrder = deque.NewWriteOrder[K, V]()
	l.wheel = timerwheel.New[K, V](l.clock.NowNano())
}
