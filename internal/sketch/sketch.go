// Package sketch implements a 4-bit Count-Min frequency sketch: 4 hash rows
// of saturating 4-bit counters, with periodic aging by halving once the
// sample size is reached. The admission comparison in internal/region calls
// it directly, with no doorkeeper stage in front of it.
package sketch

import "github.com/zhouwentong1993/caffeine/internal/hash"

const (
	rows        = 4
	counterBits = 4
	countersPerByte = 8 / counterBits
	counterMask = (1 << counterBits) - 1
)

// Sketch is a 4-bit Count-Min frequency estimator over keys hashed to
// uint64. It is not safe for concurrent use; the maintenance loop is the
// sketch's only writer, since the read buffer funnels accesses to the
// single drain thread before anything touches the sketch.
type Sketch struct {
	table    []byte // rows*width/countersPerByte bytes, rows packed contiguously
	width    uint64 // counters per row, power of two
	seeds    [rows]uint64
	size     int64 // running increment count since last reset
	sampleSize int64
}

// New creates a sketch sized for maximum entries, aging (halving all
// counters) once `10*maximum` increments have been recorded — the sample
// size Caffeine's FrequencySketch uses.
func New(maximum int64) *Sketch {
	width := nextPowerOfTwo(maximum)
	if width < 8 {
		width = 8
	}
	s := &Sketch{
		width:      width,
		sampleSize: 10 * maximum,
	}
	if s.sampleSize <= 0 {
		s.sampleSize = 10 * int64(width)
	}
	s.table = make([]byte, rows*width/uint64(countersPerByte))
	s.seeds = [rows]uint64{
		0x9e3779b97f4a7c15,
		0xc2b2ae3d27d4eb4f,
		0x165667b19e3779f9,
		0x27d4eb2f165667c5,
	}
	return s
}

func nextPowerOfTwo(n int64) uint64 {
	if n <= 1 {
		return 1
	}
	p := uint64(1)
	for p < uint64(n) {
		p <<= 1
	}
	return p
}

// index returns keyHash's counter slot within row.
func (s *Sketch) index(row int, keyHash uint64) uint64 {
	h := hash.Rehash(keyHash ^ s.seeds[row])
	return h & (s.width - 1)
}

func (s *Sketch) counterAt(row int, slot uint64) byte {
	bitPos := slot * counterBits
	byteIdx := uint64(row)*s.width/uint64(countersPerByte) + bitPos/8
	shift := bitPos % 8
	return (s.table[byteIdx] >> shift) & counterMask
}

func (s *Sketch) setCounterAt(row int, slot uint64, v byte) {
	bitPos := slot * counterBits
	byteIdx := uint64(row)*s.width/uint64(countersPerByte) + bitPos/8
	shift := bitPos % 8
	s.table[byteIdx] = (s.table[byteIdx] &^ (counterMask << shift)) | ((v & counterMask) << shift)
}

// Increment records one occurrence of keyHash, saturating each row's
// counter at 15 and aging the whole table once sampleSize increments have
// accumulated.
func (s *Sketch) Increment(keyHash uint64) {
	added := false
	for row := 0; row < rows; row++ {
		slot := s.index(row, keyHash)
		c := s.counterAt(row, slot)
		if c < counterMask {
			s.setCounterAt(row, slot, c+1)
			added = true
		}
	}
	if added {
		s.size++
		if s.size >= s.sampleSize {
			s.reset()
		}
	}
}

// Estimate returns the minimum counter value across the 4 rows for keyHash,
// the Count-Min estimate of its recent access frequency.
func (s *Sketch) Estimate(keyHash uint64) byte {
	min := byte(counterMask)
	for row := 0; row < rows; row++ {
		c := s.counterAt(row, s.index(row, keyHash))
		if c < min {
			min = c
		}
	}
	return min
}

// reset halves every counter (a right-shift-by-one masked to 0111 per
// nibble), keeping the sketch responsive to recency rather than
// accumulating frequency forever.
func (s *Sketch) reset() {
	for i := range s.table {
		s.table[i] = (s.table[i] >> 1) & 0x77
	}
	s.size >>= 1
}

// Clear zeroes the sketch, used when the cache is invalidated wholesale.
func (s *Sketch) Clear() {
	for i := range s.table {
		s.table[i] = 0
	}
	s.size = 0
}
