package boundedcache

import "github.com/zhouwentong1993/caffeine/internal/stats"

// DeletionCause identifies why an entry left the cache.
type DeletionCause int8

const (
	// CauseExplicit means the caller removed the entry directly.
	CauseExplicit DeletionCause = iota
	// CauseReplaced means a put/replace/compute overwrote the entry's value.
	CauseReplaced
	// CauseSize means the entry was evicted to stay within maximum weight,
	// including the oversize-candidate fast path for an entry whose own
	// weight exceeds maximum.
	CauseSize
	// CauseExpired means an access, write, or variable expiry deadline passed.
	CauseExpired
	// CauseCollected means a weak/soft value was reclaimed by the GC.
	CauseCollected
)

func (c DeletionCause) String() string {
	switch c {
	case CauseExplicit:
		return "explicit"
	case CauseReplaced:
		return "replaced"
	case CauseSize:
		return "size"
	case CauseExpired:
		return "expired"
	case CauseCollected:
		return "collected"
	default:
		return "unknown"
	}
}

// WasEvicted reports whether the cause originates from the maintenance
// loop rather than from a direct caller action.
func (c DeletionCause) WasEvicted() bool {
	return c == CauseSize || c == CauseExpired || c == CauseCollected
}

func toInternalCause(c DeletionCause) stats.DeletionCause {
	return stats.DeletionCause(c)
}

func fromInternalCause(c stats.DeletionCause) DeletionCause {
	return DeletionCause(c)
}

// RemovalListener is notified for every cause an entry leaves the cache by,
// explicit removal and replacement included. Dispatched synchronously,
// under the eviction mutex, for causes the drain itself discovers.
type RemovalListener[K comparable, V any] func(key K, value V, cause DeletionCause)

// EvictionListener is notified only for causes the maintenance loop itself
// decides (SIZE, EXPIRED, COLLECTED) — never for an explicit Remove or a
// value overwritten by Put/Replace/Compute.
type EvictionListener[K comparable, V any] func(key K, value V, cause DeletionCause)
