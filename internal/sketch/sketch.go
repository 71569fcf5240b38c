// Package sketch implements a count-min sketch with 4-bit saturating counters
// and periodic aging, the frequency estimator behind TinyLFU admission.
package sketch

import "github.com/IvanBrykalov/cachecore/internal/util"

const rows = 4

// CountMin estimates per-key frequency in fixed memory. Counters saturate at
// 15; once additions reach the sample size every counter is halved, so stale
// popularity decays instead of pinning the admission filter forever.
type CountMin struct {
	table      [rows]nvec
	mask       uint32
	additions  int
	sampleSize int
}

// New sizes the sketch for a cache of the given capacity: each row holds
// four counters per cached item (rounded up to a power of two, at least 64)
// and the aging sample is 10x size.
func New(size int) *CountMin {
	if size < 1 {
		size = 1
	}
	width := util.NextPow2(uint64(size) * 4)
	if width < 64 {
		width = 64
	}
	c := &CountMin{
		mask:       uint32(width - 1),
		sampleSize: 10 * size,
	}
	for i := range c.table {
		c.table[i] = newNvec(int(width))
	}
	return c
}

// rehash decorrelates caller keys before the per-row index derivation, so
// plain sequential keys do not collapse all rows onto one counter.
func rehash(h uint64) uint64 {
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

// rowIndex derives an independent counter index per row from the two 32-bit
// halves of the mixed hash.
func (c *CountMin) rowIndex(h uint64, row int) uint32 {
	h1, h2 := uint32(h), uint32(h>>32)
	return (h1 + uint32(row)*h2) & c.mask
}

// Add records one occurrence of h and ages the sketch when the sample fills.
func (c *CountMin) Add(h uint64) {
	h = rehash(h)
	for i := 0; i < rows; i++ {
		c.table[i].inc(c.rowIndex(h, i))
	}
	c.additions++
	if c.additions >= c.sampleSize {
		c.age()
	}
}

// Estimate returns the minimum of the row counters for h, in [0, 15].
func (c *CountMin) Estimate(h uint64) int {
	h = rehash(h)
	min := 15
	for i := 0; i < rows; i++ {
		if v := int(c.table[i].get(c.rowIndex(h, i))); v < min {
			min = v
		}
	}
	return min
}

// age halves every counter and the addition count.
func (c *CountMin) age() {
	for i := range c.table {
		c.table[i].halve()
	}
	c.additions >>= 1
}

// Clear zeroes all counters and the addition count.
func (c *CountMin) Clear() {
	for i := range c.table {
		c.table[i].zero()
	}
	c.additions = 0
}

// nvec is a vector of 4-bit counters packed two per byte.
type nvec []byte

func newNvec(width int) nvec { return make(nvec, width/2) }

func (n nvec) get(i uint32) byte {
	return (n[i>>1] >> ((i & 1) * 4)) & 0x0f
}

func (n nvec) inc(i uint32) {
	idx := i >> 1
	shift := (i & 1) * 4
	if (n[idx]>>shift)&0x0f < 15 {
		n[idx] += 1 << shift
	}
}

// halve right-shifts every 4-bit counter by one, masking cross-counter bleed.
func (n nvec) halve() {
	for i := range n {
		n[i] = (n[i] >> 1) & 0x77
	}
}

func (n nvec) zero() {
	for i := range n {
		n[i] = 0
	}
}
