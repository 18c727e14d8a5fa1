// Package deque implements intrusive, O(1) doubly-linked lists over
// *node.Node: an access-ordered deque, a write-ordered deque, and a
// timer-wheel bucket deque. All three are the same structure over the same
// node type; they differ only in which pair of link fields on *node.Node
// they thread through, so one generic implementation backs all of them.
package deque

import "github.com/zhouwentong1993/caffeine/internal/node"

// linkSet abstracts over which pair of a node's link fields this deque
// threads through (access-order vs write-order vs timer-wheel-bucket).
type linkSet[K comparable, V any] struct {
	prev      func(*node.Node[K, V]) *node.Node[K, V]
	next      func(*node.Node[K, V]) *node.Node[K, V]
	setPrev   func(*node.Node[K, V], *node.Node[K, V])
	setNext   func(*node.Node[K, V], *node.Node[K, V])
	setLinked func(*node.Node[K, V], bool)
}

// Deque is an intrusive doubly-linked list of *node.Node. The zero value is
// not usable; construct with NewAccessOrder or NewWriteOrder.
type Deque[K comparable, V any] struct {
	head, tail *node.Node[K, V]
	length     int
	links      linkSet[K, V]
}

// NewAccessOrder creates a deque threaded through a node's access-order
// links. The cache keeps one of these per region (window, main-probation,
// main-protected).
func NewAccessOrder[K comparable, V any]() *Deque[K, V] {
	return &Deque[K, V]{links: linkSet[K, V]{
		prev:      (*node.Node[K, V]).PrevAccess,
		next:      (*node.Node[K, V]).NextAccess,
		setPrev:   (*node.Node[K, V]).SetPrevAccess,
		setNext:   (*node.Node[K, V]).SetNextAccess,
		setLinked: (*node.Node[K, V]).SetLinkedAccess,
	}}
}

// NewWriteOrder creates a deque threaded through a node's write-order links,
// used for after-write expiration scanning.
func NewWriteOrder[K comparable, V any]() *Deque[K, V] {
	return &Deque[K, V]{links: linkSet[K, V]{
		prev:      (*node.Node[K, V]).PrevWrite,
		next:      (*node.Node[K, V]).NextWrite,
		setPrev:   (*node.Node[K, V]).SetPrevWrite,
		setNext:   (*node.Node[K, V]).SetNextWrite,
		setLinked: (*node.Node[K, V]).SetLinkedWrite,
	}}
}

// NewExpireOrder creates a deque threaded through a node's timer-wheel
// links, used by internal/timerwheel to bucket nodes with a variable
// per-entry expiry.
func NewExpireOrder[K comparable, V any]() *Deque[K, V] {
	return &Deque[K, V]{links: linkSet[K, V]{
		prev:      (*node.Node[K, V]).PrevExpire,
		next:      (*node.Node[K, V]).NextExpire,
		setPrev:   (*node.Node[K, V]).SetPrevExpire,
		setNext:   (*node.Node[K, V]).SetNextExpire,
		setLinked: (*node.Node[K, V]).SetLinkedExpire,
	}}
}

func (d *Deque[K, V]) Len() int { return d.length }

func (d *Deque[K, V]) First() *node.Node[K, V] { return d.head }
func (d *Deque[K, V]) Last() *node.Node[K, V]  { return d.tail }

// PushBack links n in as the most-recently-ordered element (MRU for access
// order, most-recently-written for write order). n must not already be
// linked into this deque.
func (d *Deque[K, V]) PushBack(n *node.Node[K, V]) {
	d.links.setPrev(n, d.tail)
	d.links.setNext(n, nil)
	if d.tail != nil {
		d.links.setNext(d.tail, n)
	} else {
		d.head = n
	}
	d.tail = n
	d.links.setLinked(n, true)
	d.length++
}

// PushFront links n in as the least-recently-ordered element.
func (d *Deque[K, V]) PushFront(n *node.Node[K, V]) {
	d.links.setNext(n, d.head)
	d.links.setPrev(n, nil)
	if d.head != nil {
		d.links.setPrev(d.head, n)
	} else {
		d.tail = n
	}
	d.head = n
	d.links.setLinked(n, true)
	d.length++
}

// Remove unlinks n from the deque. n must currently be a member — callers
// check node.InAccessDeque()/InWriteDeque() (or the expire-order equivalent)
// first, since a node's prev/next links alone can't distinguish "unlinked"
// from "sole member of a one-element deque".
func (d *Deque[K, V]) Remove(n *node.Node[K, V]) {
	prev := d.links.prev(n)
	next := d.links.next(n)

	if prev != nil {
		d.links.setNext(prev, next)
	} else if d.head == n {
		d.head = next
	}

	if next != nil {
		d.links.setPrev(next, prev)
	} else if d.tail == n {
		d.tail = prev
	}

	d.links.setPrev(n, nil)
	d.links.setNext(n, nil)
	d.links.setLinked(n, false)
	d.length--
}

// MoveToBack relinks n as the most-recently-ordered element. n must already
// be a member of this deque. Equivalent to Remove followed by PushBack, and
// a no-op when n is already last; the hot path for afterAccess.
func (d *Deque[K, V]) MoveToBack(n *node.Node[K, V]) {
	if d.tail == n {
		return
	}
	d.Remove(n)
	d.PushBack(n)
}

// Contains reports whether n is linked into this deque, by walking from
// head. O(n); only used in tests.
func (d *Deque[K, V]) Contains(target *node.Node[K, V]) bool {
	for n := d.head; n != nil; n = d.links.next(n) {
		if n == target {
			return true
		}
	}
	return false
}

// Each calls fn for every node from head (least-recent) to tail
// (most-recent). fn must not mutate the deque.
func (d *Deque[K, V]) Each(fn func(*node.Node[K, V])) {
	for n := d.head; n != nil; n = d.links.next(n) {
		fn(n)
	}
}

// EachReverse calls fn for every node from tail to head.
func (d *Deque[K, V]) EachReverse(fn func(*node.Node[K, V])) {
	for n := d.tail; n != nil; n = d.links.prev(n) {
		fn(n)
	}
}
