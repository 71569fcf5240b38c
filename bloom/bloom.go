// Package bloom provides a standalone bloom filter sized from an expected
// insertion count and a target false-positive rate. It ships alongside the
// cache engine for hosts that want a cheap membership pre-check; the engine
// itself does not depend on it.
package bloom

import (
	"math"

	"github.com/zeebo/xxh3"

	"github.com/IvanBrykalov/cachecore/internal/util"
)

// Filter is a fixed-size bloom filter over string keys. It supports no
// deletion; once additions reach the configured insertion count the bit
// array is cleared wholesale, trading a burst of false negatives for a
// bounded false-positive rate.
//
// Not safe for concurrent use.
type Filter struct {
	insertions int
	mask       uint64
	hashes     int
	bits       []uint64
	additions  int
}

// New creates a filter dimensioned for the given insertion count and
// false-positive probability (e.g. 0.01). The bit array is rounded up to a
// power of two.
func New(insertions int, fpp float64) *Filter {
	if insertions < 1 {
		insertions = 1
	}
	if fpp <= 0 || fpp >= 1 {
		fpp = 0.01
	}
	ln2 := math.Ln2
	factor := -math.Log(fpp) / (ln2 * ln2)
	bits := util.NextPow2(uint64(float64(insertions) * factor))
	hashes := int(ln2 * float64(bits) / float64(insertions))
	if hashes < 1 {
		hashes = 1
	}
	return &Filter{
		insertions: insertions,
		mask:       bits - 1,
		hashes:     hashes,
		bits:       make([]uint64, (bits+63)/64),
	}
}

// Put records key. Reaching the configured insertion count resets the filter.
func (f *Filter) Put(key string) {
	h := xxh3.HashString(key)
	f.additions++
	if f.additions >= f.insertions {
		f.Reset()
	}
	for i := 0; i < f.hashes; i++ {
		f.set((h + uint64(i)*(h>>32)) & f.mask)
	}
}

// Contains reports whether key was possibly recorded. False positives happen
// at roughly the configured rate; false negatives only right after a reset.
func (f *Filter) Contains(key string) bool {
	h := xxh3.HashString(key)
	for i := 0; i < f.hashes; i++ {
		if !f.get((h + uint64(i)*(h>>32)) & f.mask) {
			return false
		}
	}
	return true
}

// Reset clears every bit and the addition count.
func (f *Filter) Reset() {
	for i := range f.bits {
		f.bits[i] = 0
	}
	f.additions = 0
}

func (f *Filter) set(pos uint64) {
	f.bits[pos>>6] |= 1 << (pos & 63)
}

func (f *Filter) get(pos uint64) bool {
	return f.bits[pos>>6]&(1<<(pos&63)) != 0
}
