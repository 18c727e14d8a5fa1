package boundedcache

// Weigher computes the weight of a key/value pair, consumed in the unit
// maximum is expressed in. The default weigher returns 1, so an unweighed
// cache's maximum is a plain entry count.
type Weigher[K comparable, V any] func(key K, value V) uint32

func defaultWeigher[K comparable, V any](K, V) uint32 { return 1 }
