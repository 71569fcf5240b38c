// Package wheel implements the hierarchical timing wheel that drives TTL
// expiration. Slots are linked into buckets through their intrusive wheel
// links; advancing the wheel harvests due slots and cascades coarser buckets
// down to finer levels.
package wheel

import (
	"math/bits"
	"time"

	"github.com/IvanBrykalov/cachecore/internal/slab"
)

const levels = 5

// bucketCounts per level. The final single-bucket level parks deadlines beyond
// the wheel range; they are re-examined on every cascade.
var bucketCounts = [levels]int{64, 64, 32, 4, 1}

// spans[i] is the tick width of level i rounded up to a power of two
// (~1.07s, ~1.14m, ~1.22h, ~1.63d, ~6.5d); spans[levels] caps the range.
var spans = [levels + 1]int64{
	nextPow2(int64(time.Second)),
	nextPow2(int64(time.Minute)),
	nextPow2(int64(time.Hour)),
	nextPow2(int64(24 * time.Hour)),
	nextPow2(int64(24*time.Hour)) * 4,
	nextPow2(int64(24*time.Hour)) * 4,
}

var shifts = [levels]uint{
	uint(bits.TrailingZeros64(uint64(spans[0]))),
	uint(bits.TrailingZeros64(uint64(spans[1]))),
	uint(bits.TrailingZeros64(uint64(spans[2]))),
	uint(bits.TrailingZeros64(uint64(spans[3]))),
	uint(bits.TrailingZeros64(uint64(spans[4]))),
}

func nextPow2(v int64) int64 {
	if v <= 1 {
		return 1
	}
	return 1 << uint(64-bits.LeadingZeros64(uint64(v-1)))
}

// Wheel schedules arena slots by their ExpireAt deadline. It keeps only
// bucket heads; all list links live in the slots.
type Wheel struct {
	a       *slab.Arena
	buckets [levels][]uint32
	nanos   int64
}

// New creates a wheel anchored at now (UnixNano).
func New(a *slab.Arena, now int64) *Wheel {
	w := &Wheel{a: a, nanos: now}
	for i := range w.buckets {
		w.buckets[i] = make([]uint32, bucketCounts[i])
		for j := range w.buckets[i] {
			w.buckets[i][j] = slab.None
		}
	}
	return w
}

// Now returns the wheel's current time in UnixNano.
func (w *Wheel) Now() int64 { return w.nanos }

// findBucket picks the coarsest level whose span covers the remaining delay.
func (w *Wheel) findBucket(expireAt int64) (level, bucket int) {
	delta := expireAt - w.nanos
	for i := 0; i < levels; i++ {
		if delta < spans[i+1] {
			ticks := uint64(expireAt) >> shifts[i]
			return i, int(ticks & uint64(bucketCounts[i]-1))
		}
	}
	return levels - 1, 0
}

// Schedule links idx into the bucket matching its deadline. Slots without a
// deadline are left unscheduled (unlinked if they were scheduled); an
// already scheduled slot is moved.
func (w *Wheel) Schedule(idx uint32) {
	s := w.a.At(idx)
	if s.ExpireAt == 0 {
		w.Deschedule(idx)
		return
	}
	w.Deschedule(idx)
	level, bucket := w.findBucket(s.ExpireAt)
	head := w.buckets[level][bucket]
	s.WheelPrev = slab.None
	s.WheelNext = head
	if head != slab.None {
		w.a.At(head).WheelPrev = idx
	}
	w.buckets[level][bucket] = idx
	s.WheelLevel = uint8(level)
	s.WheelBucket = uint8(bucket)
}

// Deschedule unlinks idx in O(1); unscheduled slots are a no-op.
func (w *Wheel) Deschedule(idx uint32) {
	s := w.a.At(idx)
	if s.WheelLevel == slab.WheelNone {
		return
	}
	if s.WheelPrev != slab.None {
		w.a.At(s.WheelPrev).WheelNext = s.WheelNext
	} else {
		w.buckets[s.WheelLevel][s.WheelBucket] = s.WheelNext
	}
	if s.WheelNext != slab.None {
		w.a.At(s.WheelNext).WheelPrev = s.WheelPrev
	}
	s.WheelPrev, s.WheelNext = slab.None, slab.None
	s.WheelLevel = slab.WheelNone
}

// Advance moves the wheel to now and returns the indices of all slots whose
// deadline has passed. Slots in crossed buckets that are not yet due cascade
// into finer buckets. Returned slots are already unlinked from the wheel.
func (w *Wheel) Advance(now int64) []uint32 {
	previous := w.nanos
	if now <= previous {
		return nil
	}
	w.nanos = now

	var expired []uint32
	for i := 0; i < levels; i++ {
		prevTicks := uint64(previous) >> shifts[i]
		currTicks := uint64(now) >> shifts[i]
		if currTicks <= prevTicks {
			break
		}
		expired = w.expireLevel(i, prevTicks, currTicks-prevTicks, expired)
	}
	// Deadlines shorter than one level-0 tick land in the bucket of the
	// current tick, which the crossing sweep above never visits. Levels >= 1
	// cannot hit this (their spans put slots at least one tick ahead), so a
	// scan of that single bucket completes the harvest.
	return w.expireCurrentBucket(expired)
}

// expireCurrentBucket unlinks due slots from the level-0 bucket of the
// current tick, leaving the not-yet-due ones in place.
func (w *Wheel) expireCurrentBucket(expired []uint32) []uint32 {
	bucket := int((uint64(w.nanos) >> shifts[0]) & uint64(bucketCounts[0]-1))
	idx := w.buckets[0][bucket]
	for idx != slab.None {
		next := w.a.At(idx).WheelNext
		if w.a.At(idx).ExpireAt <= w.nanos {
			w.Deschedule(idx)
			expired = append(expired, idx)
		}
		idx = next
	}
	return expired
}

func (w *Wheel) expireLevel(level int, prevTicks, delta uint64, expired []uint32) []uint32 {
	mask := uint64(bucketCounts[level] - 1)
	steps := delta
	if limit := uint64(bucketCounts[level]); steps > limit {
		steps = limit
	}
	for t := prevTicks; t < prevTicks+steps; t++ {
		bucket := int(t & mask)
		idx := w.buckets[level][bucket]
		w.buckets[level][bucket] = slab.None
		for idx != slab.None {
			s := w.a.At(idx)
			next := s.WheelNext
			s.WheelPrev, s.WheelNext = slab.None, slab.None
			s.WheelLevel = slab.WheelNone
			if s.ExpireAt <= w.nanos {
				expired = append(expired, idx)
			} else {
				// Not due yet: cascade into a finer bucket.
				w.Schedule(idx)
			}
			idx = next
		}
	}
	return expired
}

// Clear unlinks every scheduled slot without touching the current time.
func (w *Wheel) Clear() {
	for i := range w.buckets {
		for j := range w.buckets[i] {
			w.buckets[i][j] = slab.None
		}
	}
}
