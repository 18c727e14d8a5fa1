// Package boundedcache is a generic, concurrent, admission-controlled
// in-memory cache: a Window TinyLFU eviction policy backed by a sharded
// data map, intrusive access/write-order deques, a hierarchical timer
// wheel for per-entry expiry, and a single-writer maintenance loop that
// drains buffered reads and writes under one eviction mutex.
package boundedcache

import (
	"sync"
	"sync/atomic"

	"github.com/zhouwentong1993/caffeine/internal/clock"
	"github.com/zhouwentong1993/caffeine/internal/datamap"
	"github.com/zhouwentong1993/caffeine/internal/hash"
	"github.com/zhouwentong1993/caffeine/internal/maintenance"
	"github.com/zhouwentong1993/caffeine/internal/node"
	"github.com/zhouwentong1993/caffeine/internal/region"
	"github.com/zhouwentong1993/caffeine/internal/stats"
)

// Entry is a key/value pair returned by Coldest/Hottest introspection.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Cache is a generic, bounded, concurrent in-memory cache.
type Cache[K comparable, V any] struct {
	data  *datamap.Map[K, V]
	loop  *maintenance.Loop[K, V]
	clock clock.Clock
	cfg   *config[K, V]

	maximum atomic.Int64
	stats   stats.Recorder

	wakeupMu       sync.Mutex
	nextWakeupAt   int64
	nextWakeupTask ScheduledTask
}

// New creates a Cache configured by opts.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Cache[K, V]{
		data:  datamap.New[K, V](cfg.ShardCount),
		clock: clock.Real{},
		cfg:   cfg,
	}
	c.maximum.Store(cfg.Maximum)
	c.nextWakeupAt = noWakeupScheduled

	policy := region.New[K, V](cfg.Maximum, cfg.RandSeed)

	c.stats = cfg.StatsRecorder
	if c.stats == nil {
		c.stats = stats.NoopRecorder{}
	}

	c.loop = maintenance.New(maintenance.Config[K, V]{
		Clock:                     c.clock,
		Data:                      c.data,
		Policy:                    policy,
		Executor:                  toPacerExecutor(cfg.Executor),
		Stats:                     c.stats,
		OnEvict:                   c.onNodeRemoved,
		Maximum:                   cfg.Maximum,
		ExpireAfterAccessNanos:    int64(cfg.ExpireAfterAccess),
		ExpireAfterWriteNanos:     int64(cfg.ExpireAfterWrite),
		ExpireWriteToleranceNanos: int64(cfg.ExpireWriteTolerance),
		HasVariableExpiry:         cfg.Expiry != nil,
	}, c.clock.NowNano())

	return c
}

// onNodeRemoved is the maintenance loop's sole Listener: it dispatches both
// the eviction listener and the removal listener (a superset) for every
// node the drain itself removes.
func (c *Cache[K, V]) onNodeRemoved(n *node.Node[K, V], cause stats.DeletionCause) {
	value, _ := n.Value()
	extCause := fromInternalCause(cause)
	if c.cfg.EvictionListener != nil && extCause.WasEvicted() {
		c.cfg.EvictionListener(n.Key(), value, extCause)
	}
	if c.cfg.RemovalListener != nil {
		c.cfg.RemovalListener(n.Key(), value, extCause)
	}
}

func (c *Cache[K, V]) notifyRemoval(key K, value V, cause DeletionCause) {
	if c.cfg.RemovalListener != nil {
		c.cfg.RemovalListener(key, value, cause)
	}
}

func (c *Cache[K, V]) hashOf(key K) uint64 {
	return hash.Of(key)
}

// Get returns the value for key and whether it was present and alive.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	keyHash := c.hashOf(key)
	n, ok := c.data.GetByHash(key, keyHash)
	if !ok || !n.IsAlive() {
		var zero V
		c.loop.RecordHitOrMiss(false)
		c.stats.RecordMiss()
		return zero, false
	}
	value, reachable := n.Value()
	if !reachable {
		// A WEAK/SOFT value can be reclaimed by the GC between the data map
		// lookup above and here. Re-check under the node's own monitor before
		// declaring it collected: a concurrent Put resurrects the node by
		// installing a fresh value, and this double-check is what lets that
		// resurrection win the race instead of a stale miss evicting it out
		// from under the writer.
		n.Lock()
		value, reachable = n.Value()
		if !reachable {
			n.Retire()
			n.Unlock()
			c.loop.RecordWrite(maintenance.WriteTask[K, V]{
				Kind:  maintenance.WriteRemove,
				Node:  n,
				Cause: toInternalCause(CauseCollected),
			})
			c.loop.RecordHitOrMiss(false)
			c.stats.RecordMiss()
			var zero V
			return zero, false
		}
		n.Unlock()
	}
	now := c.clock.NowNano()
	n.SetAccessTime(now)
	c.loop.RecordRead(n)
	c.loop.RecordHitOrMiss(true)
	c.stats.RecordHit()
	c.refreshReadExpiry(n, value, now)
	return value, true
}

// GetIfPresent is an alias for Get: the core never loads on a miss.
func (c *Cache[K, V]) GetIfPresent(key K) (V, bool) { return c.Get(key) }

func (c *Cache[K, V]) refreshReadExpiry(n *node.Node[K, V], value V, now int64) {
	if c.cfg.Expiry == nil {
		return
	}
	current := int64(NoExpiration)
	if n.HasVariableExpire() {
		current = n.VariableExpireTime() - now
	}
	duration := c.cfg.Expiry.ExpireAfterRead(n.Key(), value, now, current)
	if duration == current {
		return
	}
	if duration < 0 {
		return
	}
	deadline := now + duration
	c.loop.RescheduleExpiry(n, deadline)
	c.scheduleWakeupAt(deadline)
}

// Put inserts or replaces key's value, returning the previous value if one
// existed.
func (c *Cache[K, V]) Put(key K, value V) (V, bool) {
	return c.put(key, value, false)
}

// PutIfAbsent inserts value only if key is absent, returning the existing
// value and true if it already had one (no change made).
func (c *Cache[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	keyHash := c.hashOf(key)
	if existing, ok := c.data.GetByHash(key, keyHash); ok && existing.IsAlive() {
		if v, reachable := existing.Value(); reachable {
			return v, true
		}
	}
	prev, replaced := c.put(key, value, true)
	if replaced {
		return prev, true
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) put(key K, value V, ifAbsent bool) (V, bool) {
	now := c.clock.NowNano()
	keyHash := c.hashOf(key)
	weight := int64(c.cfg.Weigher(key, value))

	for {
		existing, loaded := c.data.GetByHash(key, keyHash)
		if loaded && existing.IsAlive() {
			if ifAbsent {
				if v, reachable := existing.Value(); reachable {
					return v, true
				}
			}
			existing.Lock()
			if !existing.IsAlive() {
				existing.Unlock()
				continue
			}
			oldValue, _ := existing.Value()
			oldWeight := existing.Weight()
			previousWriteTime := existing.WriteTime()
			withinTolerance := c.cfg.ExpireWriteTolerance > 0 &&
				now-previousWriteTime < int64(c.cfg.ExpireWriteTolerance)
			existing.SetValue(value)
			existing.SetWeight(weight)
			if !withinTolerance {
				existing.SetWriteTime(now)
			}
			existing.SetAccessTime(now)
			if c.cfg.Expiry != nil {
				current := int64(NoExpiration)
				if existing.HasVariableExpire() {
					current = existing.VariableExpireTime() - now
				}
				duration := c.cfg.Expiry.ExpireAfterUpdate(key, value, now, current)
				c.applyExpiryDuration(existing, now, duration)
			}
			existing.Unlock()

			// A repeat write within ExpireWriteTolerance of the previous one
			// that leaves the weight unchanged is buffered as a read instead of
			// a write task: the write-order deque and the timer wheel don't
			// need to churn for a key that's updated far more often than its
			// expiry duration cares about. A weight change always goes through
			// a write task so the policy's weighted size stays correct.
			if withinTolerance && weight == oldWeight {
				c.loop.RecordRead(existing)
			} else {
				c.loop.RecordWrite(maintenance.WriteTask[K, V]{
					Kind:              maintenance.WriteUpdate,
					Node:              existing,
					OldWeight:         oldWeight,
					PreviousWriteTime: previousWriteTime,
				})
			}
			c.notifyRemoval(key, oldValue, CauseReplaced)
			return oldValue, true
		}

		refType := c.cfg.ValueReferenceType
		n := node.New[K, V](key, keyHash, value, weight, refType, now)
		if c.cfg.Expiry != nil {
			duration := c.cfg.Expiry.ExpireAfterCreate(key, value, now)
			c.applyExpiryDuration(n, now, duration)
		}
		inserted, ok := c.data.PutIfAbsent(n)
		if !ok {
			// A retired node the drain has not yet unmapped counts as absent.
			if !inserted.IsAlive() {
				c.data.Remove(key, keyHash, inserted)
			}
			continue
		}
		c.loop.RecordWrite(maintenance.WriteTask[K, V]{Kind: maintenance.WriteAdd, Node: n})
		var zero V
		return zero, false
	}
}

func (c *Cache[K, V]) applyExpiryDuration(n *node.Node[K, V], now, duration int64) {
	if duration < 0 {
		n.SetVariableExpireTime(node.NoTime)
		return
	}
	deadline := now + duration
	n.SetVariableExpireTime(deadline)
	c.scheduleWakeupAt(deadline)
}

// noWakeupScheduled means no Scheduler task is currently pending.
const noWakeupScheduled = int64(1) << 62

// scheduleWakeupAt arranges for a drain around deadline, used so a variable-
// expiry entry's removal is noticed promptly rather than only on the next
// read or write that happens to touch it. Only ever tracks the single
// earliest deadline seen; a later one is ignored while an earlier task is
// pending. When that task fires it drains once and books no further
// wakeup, so a deadline still in the future at that point is noticed only
// by a later drain.
func (c *Cache[K, V]) scheduleWakeupAt(deadline int64) {
	if c.cfg.Scheduler == nil {
		return
	}
	c.wakeupMu.Lock()
	defer c.wakeupMu.Unlock()
	if c.nextWakeupTask != nil && deadline >= c.nextWakeupAt {
		return
	}
	if c.nextWakeupTask != nil {
		c.nextWakeupTask.Cancel()
	}
	delay := deadline - c.clock.NowNano()
	if delay < 0 {
		delay = 0
	}
	c.nextWakeupAt = deadline
	c.nextWakeupTask = c.cfg.Scheduler.Schedule(c.onScheduledWakeup, delay)
}

func (c *Cache[K, V]) onScheduledWakeup() {
	c.wakeupMu.Lock()
	c.nextWakeupTask = nil
	c.nextWakeupAt = noWakeupScheduled
	c.wakeupMu.Unlock()
	c.CleanUp()
}

// Replace overwrites key's value only if it is currently present, returning
// the previous value.
func (c *Cache[K, V]) Replace(key K, value V) (V, bool) {
	keyHash := c.hashOf(key)
	existing, ok := c.data.GetByHash(key, keyHash)
	if !ok || !existing.IsAlive() {
		var zero V
		return zero, false
	}
	return c.put(key, value, false)
}

// ReplaceIfEquals replaces key's value with newValue only if its current
// value equals oldValue, as decided by the caller-supplied equal function.
func (c *Cache[K, V]) ReplaceIfEquals(key K, oldValue, newValue V, equal func(a, b V) bool) bool {
	keyHash := c.hashOf(key)
	existing, ok := c.data.GetByHash(key, keyHash)
	if !ok || !existing.IsAlive() {
		return false
	}
	existing.Lock()
	current, reachable := existing.Value()
	if !reachable || !equal(current, oldValue) {
		existing.Unlock()
		return false
	}
	existing.Unlock()
	c.put(key, newValue, false)
	return true
}

// Remove deletes key unconditionally, returning the value that was removed.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	keyHash := c.hashOf(key)
	n, ok := c.data.GetByHash(key, keyHash)
	if !ok || !n.IsAlive() {
		var zero V
		return zero, false
	}
	n.Lock()
	value, reachable := n.Value()
	n.Retire()
	n.Unlock()
	if !reachable {
		var zero V
		return zero, false
	}
	c.loop.RecordWrite(maintenance.WriteTask[K, V]{
		Kind:  maintenance.WriteRemove,
		Node:  n,
		Cause: toInternalCause(CauseExplicit),
	})
	return value, true
}

// RemoveIfEquals deletes key only if its current value equals value.
func (c *Cache[K, V]) RemoveIfEquals(key K, value V, equal func(a, b V) bool) bool {
	keyHash := c.hashOf(key)
	n, ok := c.data.GetByHash(key, keyHash)
	if !ok || !n.IsAlive() {
		return false
	}
	n.Lock()
	current, reachable := n.Value()
	if !reachable || !equal(current, value) {
		n.Unlock()
		return false
	}
	n.Retire()
	n.Unlock()
	c.loop.RecordWrite(maintenance.WriteTask[K, V]{
		Kind:  maintenance.WriteRemove,
		Node:  n,
		Cause: toInternalCause(CauseExplicit),
	})
	return true
}

// Compute runs fn with key's current value (and whether it was present),
// storing whatever fn returns unless shouldDelete is true, in which case a
// present entry is removed and an absent one stays absent.
func (c *Cache[K, V]) Compute(key K, fn func(key K, oldValue V, found bool) (newValue V, shouldDelete bool)) (V, bool) {
	run := func() (V, bool) {
		keyHash := c.hashOf(key)
		n, found := c.data.GetByHash(key, keyHash)
		alive := found && n.IsAlive()
		var oldValue V
		if alive {
			n.Lock()
			oldValue, alive = n.Value()
		}
		newValue, del := fn(key, oldValue, alive)
		if alive {
			n.Unlock()
		}
		if del {
			if alive {
				c.Remove(key)
			}
			var zero V
			return zero, false
		}
		c.put(key, newValue, false)
		return newValue, true
	}
	return c.runCompute(run)
}

// ComputeIfAbsent inserts a value for key only if it is absent. fn returns
// the value to insert and whether to insert at all; returning ok=false
// leaves the cache unchanged and creates no node.
func (c *Cache[K, V]) ComputeIfAbsent(key K, fn func(key K) (value V, ok bool)) (V, bool) {
	run := func() (V, bool) {
		keyHash := c.hashOf(key)
		if existing, found := c.data.GetByHash(key, keyHash); found && existing.IsAlive() {
			if v, reachable := existing.Value(); reachable {
				return v, true
			}
		}
		value, ok := fn(key)
		if !ok {
			var zero V
			return zero, false
		}
		c.put(key, value, true)
		return value, true
	}
	return c.runCompute(run)
}

// ComputeIfPresent updates key's value only if it is present. fn returns
// the new value and whether to keep it; returning ok=false removes the
// entry.
func (c *Cache[K, V]) ComputeIfPresent(key K, fn func(key K, oldValue V) (newValue V, ok bool)) (V, bool) {
	run := func() (V, bool) {
		keyHash := c.hashOf(key)
		existing, found := c.data.GetByHash(key, keyHash)
		if !found || !existing.IsAlive() {
			var zero V
			return zero, false
		}
		oldValue, reachable := existing.Value()
		if !reachable {
			var zero V
			return zero, false
		}
		newValue, ok := fn(key, oldValue)
		if !ok {
			c.Remove(key)
			var zero V
			return zero, false
		}
		c.put(key, newValue, false)
		return newValue, true
	}
	return c.runCompute(run)
}

// Merge combines value with key's current value via fn(old, new); if key
// is absent, value is inserted directly. fn's second return reports
// whether to keep the merged result; false removes the entry.
func (c *Cache[K, V]) Merge(key K, value V, fn func(oldValue, newValue V) (merged V, keep bool)) (V, bool) {
	run := func() (V, bool) {
		keyHash := c.hashOf(key)
		existing, found := c.data.GetByHash(key, keyHash)
		if !found || !existing.IsAlive() {
			c.put(key, value, true)
			return value, true
		}
		oldValue, reachable := existing.Value()
		if !reachable {
			c.put(key, value, true)
			return value, true
		}
		merged, keep := fn(oldValue, value)
		if !keep {
			c.Remove(key)
			var zero V
			return zero, false
		}
		c.put(key, merged, false)
		return merged, true
	}
	return c.runCompute(run)
}

func (c *Cache[K, V]) runCompute(fn func() (V, bool)) (V, bool) {
	if c.cfg.ComputeMode != ComputeAsync || c.cfg.Executor == nil {
		return fn()
	}
	type result struct {
		value V
		ok    bool
	}
	done := make(chan result, 1)
	accepted := c.cfg.Executor.Execute(func() {
		v, ok := fn()
		done <- result{value: v, ok: ok}
	})
	if !accepted {
		return fn()
	}
	r := <-done
	return r.value, r.ok
}

// Clear removes every entry, unlinking each one from every internal
// structure and firing the removal listener (never the eviction listener,
// since this is an explicit caller action) with CauseExplicit.
func (c *Cache[K, V]) Clear() {
	c.loop.Clear(func(n *node.Node[K, V]) {
		value, _ := n.Value()
		c.notifyRemoval(n.Key(), value, CauseExplicit)
	})
}

// InvalidateAll is an alias for Clear.
func (c *Cache[K, V]) InvalidateAll() { c.Clear() }

// CleanUp forces a synchronous drain attempt, guaranteeing that every
// buffered read and write, and any now-due expiration or eviction, has
// been applied before it returns.
func (c *Cache[K, V]) CleanUp() {
	c.loop.PerformCleanUp()
}

// Coldest returns up to n entries in eviction order: window-LRU first,
// then main-probation-LRU, then main-protected-LRU. n<=0 returns every
// entry.
func (c *Cache[K, V]) Coldest(n int) []Entry[K, V] {
	if n <= 0 {
		n = c.data.Len()
	}
	nodes := c.loop.Policy().Coldest(n)
	return toEntries(nodes)
}

// Hottest returns up to n entries in reverse eviction order (most valuable
// first). n<=0 returns every entry.
func (c *Cache[K, V]) Hottest(n int) []Entry[K, V] {
	if n <= 0 {
		n = c.data.Len()
	}
	nodes := c.loop.Policy().Hottest(n)
	return toEntries(nodes)
}

func toEntries[K comparable, V any](nodes []*node.Node[K, V]) []Entry[K, V] {
	out := make([]Entry[K, V], 0, len(nodes))
	for _, n := range nodes {
		value, reachable := n.Value()
		if !reachable {
			continue
		}
		out = append(out, Entry[K, V]{Key: n.Key(), Value: value})
	}
	return out
}

// SetMaximum resizes the cache's capacity and runs a drain to shed any now-
// overflowing weight. A value of 0 or less means unbounded.
func (c *Cache[K, V]) SetMaximum(maximum int64) {
	c.maximum.Store(maximum)
	c.loop.Lock()
	c.loop.Policy().SetMaximum(maximum)
	c.loop.Unlock()
	c.loop.PerformCleanUp()
}

// GetMaximum returns the cache's configured maximum weight, or 0 if
// unbounded.
func (c *Cache[K, V]) GetMaximum() int64 { return c.maximum.Load() }

// WeightedSize returns the total weight of every resident entry.
func (c *Cache[K, V]) WeightedSize() int64 { return c.loop.Policy().WeightedSize() }

// EstimatedSize returns the number of resident entries. "Estimated" because
// concurrent writers may race with the count.
func (c *Cache[K, V]) EstimatedSize() int { return c.data.Len() }

// IsRecordingStats reports whether a non-default stats.Recorder was
// configured via WithStatsRecorder.
func (c *Cache[K, V]) IsRecordingStats() bool { return c.cfg.StatsRecorder != nil }
