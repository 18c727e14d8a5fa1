package boundedcache

import (
	"time"

	"github.com/zhouwentong1993/caffeine/internal/node"
	"github.com/zhouwentong1993/caffeine/internal/stats"
)

// ComputeMode selects whether Compute-family user functions run on the
// calling goroutine or are offloaded to the configured Executor.
type ComputeMode int8

const (
	ComputeSync ComputeMode = iota
	ComputeAsync
)

// config holds the configuration for a Cache instance.
type config[K comparable, V any] struct {
	Maximum         int64
	InitialCapacity int
	ShardCount      int

	ExpireAfterAccess    time.Duration
	ExpireAfterWrite     time.Duration
	ExpireWriteTolerance time.Duration
	Expiry               Expiry[K, V]

	Weigher Weigher[K, V]

	KeyReferenceType   node.ReferenceType
	ValueReferenceType node.ReferenceType

	ComputeMode ComputeMode

	Executor  Executor
	Scheduler Scheduler

	StatsRecorder stats.Recorder

	RemovalListener  RemovalListener[K, V]
	EvictionListener EvictionListener[K, V]

	RandSeed int64
}

// Option is a function that configures a Cache.
type Option[K comparable, V any] func(*config[K, V])

// defaultConfig returns the default configuration: unbounded maximum, no
// expiration, a 1-second write-tolerance, and a default entry-count weigher.
func defaultConfig[K comparable, V any]() *config[K, V] {
	return &config[K, V]{
		Maximum:              0,
		ShardCount:           256,
		ExpireWriteTolerance: time.Second,
		Weigher:              defaultWeigher[K, V],
		KeyReferenceType:     node.Strong,
		ValueReferenceType:   node.Strong,
		RandSeed:             1,
	}
}

// WithMaximum sets the cache's maximum total weight. A value of 0 means
// unbounded — entries are never evicted for size.
func WithMaximum[K comparable, V any](maximum int64) Option[K, V] {
	return func(c *config[K, V]) { c.Maximum = maximum }
}

// WithInitialCapacity records a hint for the expected number of entries.
// The data map does not read it: its shards start empty and grow on demand.
func WithInitialCapacity[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.InitialCapacity = n }
}

// WithShardCount overrides the data map's shard count. Rounded up to the
// next power of two.
func WithShardCount[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.ShardCount = n }
}

// WithExpireAfterAccess evicts an entry ttl after its last read or write.
func WithExpireAfterAccess[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *config[K, V]) { c.ExpireAfterAccess = ttl }
}

// WithExpireAfterWrite evicts an entry ttl after its last write.
func WithExpireAfterWrite[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *config[K, V]) { c.ExpireAfterWrite = ttl }
}

// WithExpireWriteTolerance sets the window within which a second write to
// the same key is coalesced into the first, avoiding write-order churn for
// a hot, frequently-updated key. Default is 1 second.
func WithExpireWriteTolerance[K comparable, V any](tolerance time.Duration) Option[K, V] {
	return func(c *config[K, V]) { c.ExpireWriteTolerance = tolerance }
}

// WithExpiry installs a variable, per-entry expiry policy, independent of
// ExpireAfterAccess/ExpireAfterWrite.
func WithExpiry[K comparable, V any](expiry Expiry[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.Expiry = expiry }
}

// WithWeigher sets a custom per-entry weight function. The default weigher
// returns 1, so an unweighed cache's maximum is a plain entry count.
func WithWeigher[K comparable, V any](weigher Weigher[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.Weigher = weigher }
}

// WithKeyReferenceType sets how strongly the cache holds keys. Only Strong
// is supported: a weakly-held key could be collected out from under the
// data map's own lookup, so the cache always keeps keys strong regardless
// of this setting; it exists for interface symmetry with
// WithValueReferenceType.
func WithKeyReferenceType[K comparable, V any](refType node.ReferenceType) Option[K, V] {
	return func(c *config[K, V]) { c.KeyReferenceType = refType }
}

// WithValueReferenceType sets how strongly the cache holds values: Strong
// (default), Weak, or Soft.
func WithValueReferenceType[K comparable, V any](refType node.ReferenceType) Option[K, V] {
	return func(c *config[K, V]) { c.ValueReferenceType = refType }
}

// WithComputeMode selects whether Compute-family calls run the user
// function on the calling goroutine (the default) or hand it to the
// configured Executor and block for the result.
func WithComputeMode[K comparable, V any](mode ComputeMode) Option[K, V] {
	return func(c *config[K, V]) { c.ComputeMode = mode }
}

// WithExecutor sets the Executor the maintenance loop hands drain tasks to.
// Absent an injected executor, maintenance runs inline on whichever
// goroutine triggers it.
func WithExecutor[K comparable, V any](executor Executor) Option[K, V] {
	return func(c *config[K, V]) { c.Executor = executor }
}

// WithScheduler sets the Scheduler used to proactively trigger a drain
// around a variable-expiry entry's deadline, rather than waiting for the
// next read or write to discover it expired.
func WithScheduler[K comparable, V any](scheduler Scheduler) Option[K, V] {
	return func(c *config[K, V]) { c.Scheduler = scheduler }
}

// WithStatsRecorder installs a stats.Recorder. The default is a no-op, so
// the hot path never pays for statistics nobody asked for.
func WithStatsRecorder[K comparable, V any](recorder stats.Recorder) Option[K, V] {
	return func(c *config[K, V]) { c.StatsRecorder = recorder }
}

// WithRemovalListener sets a callback invoked for every cause an entry
// leaves the cache by, explicit removal and replacement included.
func WithRemovalListener[K comparable, V any](listener RemovalListener[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.RemovalListener = listener }
}

// WithEvictionListener sets a callback invoked only for causes the
// maintenance loop itself decides (SIZE, EXPIRED, COLLECTED).
func WithEvictionListener[K comparable, V any](listener EvictionListener[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.EvictionListener = listener }
}

// WithRandSeed seeds the admission policy's tie-break randomness. Exposed
// for deterministic tests; production callers should leave it at its
// default.
func WithRandSeed[K comparable, V any](seed int64) Option[K, V] {
	return func(c *config[K, V]) { c.RandSeed = seed }
}
