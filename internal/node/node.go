// Package node defines the entry type shared by every internal subsystem:
// the data map, the region access-order deques, the write-order deque, the
// timer wheel, and the admission/eviction region logic all operate on
// *Node[K, V] directly.
//
// Each node carries key/value/weight, access/write timestamps, an optional
// variable-expiry time, a region and lifecycle tag, and the intrusive link
// fields for each of the three structures a node can belong to at once (its
// region's access-order deque, the write-order deque, and the timer wheel).
package node

import (
	"sync"
	"sync/atomic"
	"weak"
)

// Region identifies which of the three W-TinyLFU segments a node belongs to.
type Region int8

const (
	Window Region = iota
	MainProbation
	MainProtected
)

func (r Region) String() string {
	switch r {
	case Window:
		return "window"
	case MainProbation:
		return "main-probation"
	case MainProtected:
		return "main-protected"
	default:
		return "unknown"
	}
}

// Lifecycle is a node's position in the ALIVE->RETIRED->DEAD state machine.
// Transitions only ever move forward.
type Lifecycle int32

const (
	Alive Lifecycle = iota
	Retired
	Dead
)

// ReferenceType selects how a node holds its value: STRONG, WEAK, or SOFT.
// Go has no separate soft-reference facility, so Soft is implemented
// identically to Weak via the stdlib `weak` package: the value is reclaimed
// once the garbage collector finds it unreachable. The GC treats the two
// the same, and so does the cache engine's lifecycle handling.
type ReferenceType int8

const (
	Strong ReferenceType = iota
	Weak
	Soft
)

// NoTime is the sentinel for "this node has no variable-expiry deadline".
const NoTime = int64(-1)

// Node is one cache entry. Timestamps, weight, region and lifecycle are
// stored atomically so that readers (the hot path) and the single drain
// writer never race without synchronization; the link fields are mutated
// only under the eviction mutex and so need no atomics of their own. Value
// mutation goes through the monitor (mu).
type Node[K comparable, V any] struct {
	key     K
	keyHash uint64

	weight     atomic.Int64
	accessTime atomic.Int64
	writeTime  atomic.Int64
	varExpire  atomic.Int64

	region    atomic.Int32
	lifecycle atomic.Int32

	mu       sync.Mutex
	refType  ReferenceType
	strong   V
	weakBox  weak.Pointer[V]
	isBoxed  bool

	prevAccess, nextAccess *Node[K, V]
	prevWrite, nextWrite   *Node[K, V]
	prevExpire, nextExpire *Node[K, V]
	wheelBucket            int

	// linked{Access,Write,Expire} record deque membership explicitly.
	// prev/next both nil is ambiguous between "unlinked" and "sole member of
	// a one-element deque", so membership can't be derived from the link
	// pointers alone; the owning deque sets these on Push*/Remove.
	linkedAccess, linkedWrite, linkedExpire bool
}

// New creates an ALIVE node holding value with the given weight, key hash
// and reference mode. Callers install it into the data map and, if weight>0,
// into a region deque as part of the same operation: a live, positively-
// weighted node is a member of exactly one region deque.
func New[K comparable, V any](key K, keyHash uint64, value V, weight int64, refType ReferenceType, nowNano int64) *Node[K, V] {
	n := &Node[K, V]{
		key:     key,
		keyHash: keyHash,
		refType: refType,
	}
	n.weight.Store(weight)
	n.accessTime.Store(nowNano)
	n.writeTime.Store(nowNano)
	n.varExpire.Store(NoTime)
	n.region.Store(int32(Window))
	n.lifecycle.Store(int32(Alive))
	n.installValue(value)
	return n
}

func (n *Node[K, V]) Key() K         { return n.key }
func (n *Node[K, V]) KeyHash() uint64 { return n.keyHash }

func (n *Node[K, V]) Weight() int64     { return n.weight.Load() }
func (n *Node[K, V]) SetWeight(w int64) { n.weight.Store(w) }

func (n *Node[K, V]) AccessTime() int64     { return n.accessTime.Load() }
func (n *Node[K, V]) SetAccessTime(t int64) { n.accessTime.Store(t) }

func (n *Node[K, V]) WriteTime() int64     { return n.writeTime.Load() }
func (n *Node[K, V]) SetWriteTime(t int64) { n.writeTime.Store(t) }

func (n *Node[K, V]) VariableExpireTime() int64     { return n.varExpire.Load() }
func (n *Node[K, V]) SetVariableExpireTime(t int64) { n.varExpire.Store(t) }
func (n *Node[K, V]) HasVariableExpire() bool       { return n.varExpire.Load() != NoTime }

func (n *Node[K, V]) Region() Region     { return Region(n.region.Load()) }
func (n *Node[K, V]) SetRegion(r Region) { n.region.Store(int32(r)) }

func (n *Node[K, V]) Lifecycle() Lifecycle { return Lifecycle(n.lifecycle.Load()) }
func (n *Node[K, V]) IsAlive() bool        { return n.Lifecycle() == Alive }
func (n *Node[K, V]) IsRetired() bool      { return n.Lifecycle() == Retired }
func (n *Node[K, V]) IsDead() bool         { return n.Lifecycle() == Dead }

// Retire transitions ALIVE->RETIRED: logically removed from the data map,
// but still linked into whatever deques the drain has not yet unlinked it
// from. A no-op if already retired or dead.
func (n *Node[K, V]) Retire() {
	n.lifecycle.CompareAndSwap(int32(Alive), int32(Retired))
}

// Die transitions RETIRED->DEAD (or ALIVE->DEAD directly, for paths that
// never needed the intermediate state): fully unlinked, safe to drop.
func (n *Node[K, V]) Die() {
	n.lifecycle.Store(int32(Dead))
}

// Lock acquires the node's monitor, required around any value mutation and
// around the double-check every eviction/expiration/collection path makes
// before it commits.
func (n *Node[K, V]) Lock()   { n.mu.Lock() }
func (n *Node[K, V]) Unlock() { n.mu.Unlock() }

// installValue boxes the value if this node holds it weakly/softly.
// Must be called with the monitor held (New calls it before publishing n,
// so no lock is needed there).
func (n *Node[K, V]) installValue(v V) {
	if n.refType == Strong {
		n.strong = v
		return
	}
	box := new(V)
	*box = v
	n.weakBox = weak.Make(box)
	n.isBoxed = true
}

// SetValue installs a new value under the node monitor. Callers on the hot
// path (put/replace/compute) must hold Lock() for the duration of the
// mutation, including for the whole of any user-supplied compute function.
func (n *Node[K, V]) SetValue(v V) {
	n.installValue(v)
}

// Value returns the current value and whether it is still reachable. A weak
// or soft node whose referent has been collected by the GC reports
// (zero, false); the next maintenance pass evicts it with cause COLLECTED.
// A concurrent SetValue after collection resurrects the node: Value observes
// the freshly installed value and never the collected one, because
// installValue always replaces the box.
func (n *Node[K, V]) Value() (V, bool) {
	if n.refType == Strong {
		return n.strong, true
	}
	var zero V
	if !n.isBoxed {
		return zero, false
	}
	p := n.weakBox.Value()
	if p == nil {
		return zero, false
	}
	return *p, true
}

// IsCollected reports whether a weak/soft node's referent has been reclaimed.
// Strong nodes are never collected.
func (n *Node[K, V]) IsCollected() bool {
	if n.refType == Strong {
		return false
	}
	if !n.isBoxed {
		return false
	}
	return n.weakBox.Value() == nil
}

// --- access-order deque links (region-scoped, eviction-mutex-guarded) ---

func (n *Node[K, V]) PrevAccess() *Node[K, V]      { return n.prevAccess }
func (n *Node[K, V]) NextAccess() *Node[K, V]      { return n.nextAccess }
func (n *Node[K, V]) SetPrevAccess(p *Node[K, V])  { n.prevAccess = p }
func (n *Node[K, V]) SetNextAccess(nx *Node[K, V]) { n.nextAccess = nx }
func (n *Node[K, V]) InAccessDeque() bool          { return n.linkedAccess }
func (n *Node[K, V]) SetLinkedAccess(v bool)       { n.linkedAccess = v }

// --- write-order deque links ---

func (n *Node[K, V]) PrevWrite() *Node[K, V]      { return n.prevWrite }
func (n *Node[K, V]) NextWrite() *Node[K, V]      { return n.nextWrite }
func (n *Node[K, V]) SetPrevWrite(p *Node[K, V])  { n.prevWrite = p }
func (n *Node[K, V]) SetNextWrite(nx *Node[K, V]) { n.nextWrite = nx }
func (n *Node[K, V]) InWriteDeque() bool          { return n.linkedWrite }
func (n *Node[K, V]) SetLinkedWrite(v bool)       { n.linkedWrite = v }

// --- timer wheel links ---

func (n *Node[K, V]) PrevExpire() *Node[K, V]      { return n.prevExpire }
func (n *Node[K, V]) NextExpire() *Node[K, V]      { return n.nextExpire }
func (n *Node[K, V]) SetPrevExpire(p *Node[K, V])  { n.prevExpire = p }
func (n *Node[K, V]) SetNextExpire(nx *Node[K, V]) { n.nextExpire = nx }
func (n *Node[K, V]) WheelBucket() int             { return n.wheelBucket }
func (n *Node[K, V]) SetWheelBucket(b int)         { n.wheelBucket = b }
func (n *Node[K, V]) InTimerWheel() bool           { return n.linkedExpire }
func (n *Node[K, V]) SetLinkedExpire(v bool)       { n.linkedExpire = v }
