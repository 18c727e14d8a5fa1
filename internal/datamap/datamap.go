// Package datamap implements the concurrent key->node index every live
// entry is a member of exactly one of: a fixed shard count, a per-shard
// RWMutex, and a plain Go map. Shards hold *node.Node[K,V] pointers — the
// node itself carries weight, timestamps, and deque links, so the map's only
// job is key->node lookup.
package datamap

import (
	"sync"

	"github.com/zhouwentong1993/caffeine/internal/hash"
	"github.com/zhouwentong1993/caffeine/internal/node"
)

const defaultShardCount = 256

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]*node.Node[K, V]
}

// Map is a sharded concurrent index from key to *node.Node. Sharding is by
// the node's own key hash (the same hash the frequency sketch and region
// policy use), so a lookup never rehashes the key.
type Map[K comparable, V any] struct {
	shards    []*shard[K, V]
	shardMask uint64
}

// New creates a Map with shardCount shards, rounded up to a power of two
// (minimum 1). A shardCount of 0 uses the default of 256.
func New[K comparable, V any](shardCount int) *Map[K, V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	m := &Map[K, V]{
		shards:    make([]*shard[K, V], n),
		shardMask: uint64(n - 1),
	}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{m: make(map[K]*node.Node[K, V])}
	}
	return m
}

func (m *Map[K, V]) shardFor(keyHash uint64) *shard[K, V] {
	return m.shards[keyHash&m.shardMask]
}

// Get returns the node for key, if present. The caller is responsible for
// checking the node's lifecycle and expiry; the map only reports presence.
func (m *Map[K, V]) Get(key K) (*node.Node[K, V], bool) {
	return m.GetByHash(key, hash.Of(key))
}

func (m *Map[K, V]) GetByHash(key K, keyHash uint64) (*node.Node[K, V], bool) {
	s := m.shardFor(keyHash)
	s.mu.RLock()
	n, ok := s.m[key]
	s.mu.RUnlock()
	return n, ok
}

// PutIfAbsent inserts n under key if no node is currently present, returning
// the existing node and false if one was. This is the primitive put/replace
// builds on: the caller decides whether to treat a present-but-retired node
// as absent.
func (m *Map[K, V]) PutIfAbsent(n *node.Node[K, V]) (*node.Node[K, V], bool) {
	s := m.shardFor(n.KeyHash())
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[n.Key()]; ok {
		return existing, false
	}
	s.m[n.Key()] = n
	return n, true
}

// Put unconditionally installs n under its key, returning the node it
// replaced, if any.
func (m *Map[K, V]) Put(n *node.Node[K, V]) (*node.Node[K, V], bool) {
	s := m.shardFor(n.KeyHash())
	s.mu.Lock()
	defer s.mu.Unlock()
	old, existed := s.m[n.Key()]
	s.m[n.Key()] = n
	return old, existed
}

// Remove deletes key's entry only if the currently mapped node is exactly
// expect (a CAS-by-identity), returning whether it removed anything. This
// guards against racing with a concurrent replace that already swapped in a
// new node under the same key.
func (m *Map[K, V]) Remove(key K, keyHash uint64, expect *node.Node[K, V]) bool {
	s := m.shardFor(keyHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[key]; !ok || cur != expect {
		return false
	}
	delete(s.m, key)
	return true
}

// Len returns the total number of entries across all shards. Approximate
// under concurrent mutation.
func (m *Map[K, V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// Clear empties every shard.
func (m *Map[K, V]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.m = make(map[K]*node.Node[K, V])
		s.mu.Unlock()
	}
}

// Range calls fn for every node in the map. fn must not mutate the map. If
// fn returns false, Range stops early.
func (m *Map[K, V]) Range(fn func(*node.Node[K, V]) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for _, n := range s.m {
			if !fn(n) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
