// Package hash provides key hash functions for the data map and the
// frequency sketch.
package hash

import (
	"fmt"
	"math/bits"
)

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// String computes the FNV-1a hash of a string without allocations.
func String(s string) uint64 {
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// Bytes computes the FNV-1a hash of a byte slice.
func Bytes(b []byte) uint64 {
	h := uint64(offset64)
	for i := 0; i < len(b); i++ {
		h ^= uint64(b[i])
		h *= prime64
	}
	return h
}

// splitmix64 gives good avalanche behavior for small integer keys, which FNV
// handles poorly (too few varying bytes).
func splitmix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Int64 computes a hash for an int64 key.
func Int64(k int64) uint64 { return splitmix64(uint64(k)) }

// Uint64 computes a hash for a uint64 key.
func Uint64(k uint64) uint64 { return splitmix64(k) }

// Combine combines two hashes into one, after boost::hash_combine.
func Combine(h1, h2 uint64) uint64 {
	h1 ^= h2 + 0x9e3779b97f4a7c15 + (h1 << 12) + (h1 >> 4)
	return h1
}

// Rehash re-mixes a hash that is about to be used as a sketch/deque index, so
// that hashes produced by a weak user-supplied hasher still spread evenly
// across counter rows.
func Rehash(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// RotatingString hashes longer strings 8 bytes at a time, matching the
// teacher's StringFast without the unsafe aliasing.
func RotatingString(s string) uint64 {
	if len(s) < 32 {
		return String(s)
	}
	h := uint64(offset64)
	for len(s) >= 8 {
		var k uint64
		for i := 0; i < 8; i++ {
			k |= uint64(s[i]) << (8 * i)
		}
		h ^= k
		h *= prime64
		h = bits.RotateLeft64(h, 31)
		s = s[8:]
	}
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// Of hashes an arbitrary comparable key, specializing the common scalar kinds
// and falling back to a formatted representation for everything else.
func Of[K comparable](key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return RotatingString(k)
	case int:
		return Int64(int64(k))
	case int64:
		return Int64(k)
	case int32:
		return Int64(int64(k))
	case uint64:
		return Uint64(k)
	case uint32:
		return Uint64(uint64(k))
	case []byte:
		return Bytes(k)
	default:
		return String(fmt.Sprint(k))
	}
}
