// Package slab owns the engine's slot arena: a preallocated slab of per-key
// records addressed by 32-bit indices. Policy queues and the timer wheel link
// slots through index fields instead of pointers, so the whole engine state is
// a handful of flat slices.
package slab

// None is the nil index. A slot field holding None is unlinked.
const None = ^uint32(0)

// ListID identifies which policy queue currently holds a slot.
type ListID uint8

const (
	ListNone ListID = iota
	ListWindow
	ListProbation
	ListProtected
	ListLRU
	ListClock
)

// PageClass tags a slot for the CLOCK-Pro core.
type PageClass uint8

const (
	PageCold PageClass = iota + 1
	PageHot
	PageTest
)

// WheelNone marks a slot as not scheduled in the timer wheel.
const WheelNone = uint8(0xFF)

// Slot is the per-key record. A slot is linked in exactly one policy queue
// (List/Prev/Next) and in at most one timer-wheel bucket (Wheel* fields).
type Slot struct {
	Key      uint64
	ExpireAt int64 // UnixNano deadline; 0 = no expiration

	List ListID
	Prev uint32
	Next uint32

	WheelPrev   uint32
	WheelNext   uint32
	WheelLevel  uint8 // WheelNone when unscheduled
	WheelBucket uint8

	// CLOCK-Pro metadata.
	Referenced bool
	Class      PageClass
}

// Arena is a slab of slots with free-list recycling. Indices stay valid until
// Free; freed indices are reused by later Alloc calls.
type Arena struct {
	slots []Slot
	free  []uint32
}

// NewArena preallocates room for capacity slots. The slab still grows beyond
// that if a policy tracks extra metadata (CLOCK-Pro test pages).
func NewArena(capacity int) *Arena {
	return &Arena{
		slots: make([]Slot, 0, capacity),
		free:  make([]uint32, 0, capacity),
	}
}

// Alloc returns a fresh slot index for key with all links cleared.
func (a *Arena) Alloc(key uint64) uint32 {
	s := Slot{
		Key:        key,
		Prev:       None,
		Next:       None,
		WheelPrev:  None,
		WheelNext:  None,
		WheelLevel: WheelNone,
		Class:      PageCold,
	}
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx] = s
		return idx
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, s)
	return idx
}

// At returns the slot at idx. The pointer is invalidated by the next Alloc.
func (a *Arena) At(idx uint32) *Slot { return &a.slots[idx] }

// Free recycles idx. The caller must have unlinked the slot from its policy
// queue and the timer wheel first.
func (a *Arena) Free(idx uint32) {
	a.free = append(a.free, idx)
}

// Reset drops every slot without releasing the backing array.
func (a *Arena) Reset() {
	a.slots = a.slots[:0]
	a.free = a.free[:0]
}

// Live reports the number of allocated (not freed) slots.
func (a *Arena) Live() int { return len(a.slots) - len(a.free) }
