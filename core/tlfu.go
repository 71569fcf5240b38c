package core

import (
	"time"

	"github.com/IvanBrykalov/cachecore/internal/sketch"
	"github.com/IvanBrykalov/cachecore/internal/slab"
	"github.com/IvanBrykalov/cachecore/internal/wheel"
)

// TLFU is the W-TinyLFU core: new keys enter a small window LRU; window
// overflow produces a candidate that must beat the probation tail's sketch
// estimate to enter the main segmented-LRU area. Accessed probation keys
// promote into protected; protected overflow demotes back to probation.
type TLFU struct {
	opt Options

	size         int
	windowCap    int
	mainCap      int
	protectedCap int
	probationCap int

	arena     *slab.Arena
	index     map[uint64]uint32
	window    *slab.List
	probation *slab.List
	protected *slab.List
	sketch    *sketch.CountMin
	wheel     *wheel.Wheel
}

// NewTLFU creates a TinyLFU core holding at most size keys. The window takes
// ~1% of capacity (minimum one slot); the main area splits 20/80 between
// probation and protected.
func NewTLFU(size int, opt Options) (*TLFU, error) {
	if size < 1 {
		return nil, ErrInvalidCapacity
	}
	opt = opt.withDefaults()

	windowCap := size / 100
	if windowCap < 1 {
		windowCap = 1
	}
	mainCap := size - windowCap
	protectedCap := 0
	if mainCap > 0 {
		protectedCap = mainCap * 4 / 5
		if protectedCap < 1 {
			protectedCap = 1
		}
	}

	arena := slab.NewArena(size)
	return &TLFU{
		opt:          opt,
		size:         size,
		windowCap:    windowCap,
		mainCap:      mainCap,
		protectedCap: protectedCap,
		probationCap: mainCap - protectedCap,
		arena:        arena,
		index:        make(map[uint64]uint32, size),
		window:       slab.NewList(arena, slab.ListWindow),
		probation:    slab.NewList(arena, slab.ListProbation),
		protected:    slab.NewList(arena, slab.ListProtected),
		sketch:       sketch.New(size),
		wheel:        wheel.New(arena, opt.now()),
	}, nil
}

// Set inserts or refreshes entries in order and returns evicted keys in
// eviction order. Setting a resident key refreshes its deadline and counts
// as an access.
func (c *TLFU) Set(entries []Entry) []uint64 {
	now := c.opt.now()
	var evicted []uint64
	for _, e := range entries {
		c.setOne(e.Key, e.TTL, now, &evicted)
	}
	c.opt.Metrics.Size(c.Len())
	return evicted
}

func (c *TLFU) setOne(key uint64, ttl time.Duration, now int64, evicted *[]uint64) {
	c.sketch.Add(key)

	if idx, ok := c.index[key]; ok {
		s := c.arena.At(idx)
		s.ExpireAt = deadline(now, ttl)
		c.wheel.Schedule(idx)
		c.touch(idx)
		return
	}

	idx := c.arena.Alloc(key)
	s := c.arena.At(idx)
	s.ExpireAt = deadline(now, ttl)
	c.index[key] = idx
	c.wheel.Schedule(idx)

	c.window.PushFront(idx)
	for c.window.Len() > c.windowCap {
		candidate, _ := c.window.PopBack()
		c.admit(candidate, evicted)
	}
}

// admit decides the fate of a candidate displaced from the window. The
// candidate is already unlinked; it either enters probation or is dropped.
func (c *TLFU) admit(candidate uint32, evicted *[]uint64) {
	if c.mainCap == 0 {
		c.drop(candidate, EvictPolicy, evicted)
		return
	}
	// The probation queue borrows whatever the protected segment does not
	// use, so the admission contest starts only once main is full.
	if c.probation.Len()+c.protected.Len() < c.mainCap {
		c.probation.PushFront(candidate)
		return
	}
	victim, ok := c.probation.Back()
	if !ok {
		// Main is saturated by protected keys alone; nothing to contest.
		c.drop(candidate, EvictPolicy, evicted)
		return
	}
	candidateFreq := c.sketch.Estimate(c.arena.At(candidate).Key)
	victimFreq := c.sketch.Estimate(c.arena.At(victim).Key)
	if candidateFreq > victimFreq {
		// Strictly greater: ties favor the incumbent.
		c.probation.Remove(victim)
		c.drop(victim, EvictPolicy, evicted)
		c.probation.PushFront(candidate)
		return
	}
	c.drop(candidate, EvictPolicy, evicted)
}

// drop releases an already unlinked slot and reports its key.
func (c *TLFU) drop(idx uint32, reason EvictReason, evicted *[]uint64) {
	s := c.arena.At(idx)
	c.wheel.Deschedule(idx)
	delete(c.index, s.Key)
	*evicted = append(*evicted, s.Key)
	c.opt.evicted(s.Key, reason)
	c.arena.Free(idx)
}

// touch applies recency to a resident slot: window keys move to the window
// front, probation keys promote into protected (demoting the protected tail
// on overflow), protected keys move to the protected front.
func (c *TLFU) touch(idx uint32) {
	switch c.arena.At(idx).List {
	case slab.ListWindow:
		c.window.MoveToFront(idx)
	case slab.ListProbation:
		c.probation.Remove(idx)
		c.protected.PushFront(idx)
		for c.protected.Len() > c.protectedCap {
			demoted, _ := c.protected.PopBack()
			c.probation.PushFront(demoted)
		}
	case slab.ListProtected:
		c.protected.MoveToFront(idx)
	}
}

// Access records one hit per key: the sketch counts every access, resident
// unexpired keys gain recency, everything else is a miss.
func (c *TLFU) Access(keys []uint64) {
	now := c.opt.now()
	for _, key := range keys {
		c.sketch.Add(key)
		idx, ok := c.index[key]
		if !ok {
			c.opt.Metrics.Miss()
			continue
		}
		s := c.arena.At(idx)
		if s.ExpireAt != 0 && s.ExpireAt <= now {
			c.opt.Metrics.Miss()
			continue
		}
		c.touch(idx)
		c.opt.Metrics.Hit()
	}
}

// Remove drops key; it reports whether the key was resident.
func (c *TLFU) Remove(key uint64) (uint64, bool) {
	idx, ok := c.index[key]
	if !ok {
		return 0, false
	}
	c.segment(idx).Remove(idx)
	c.wheel.Deschedule(idx)
	delete(c.index, key)
	c.arena.Free(idx)
	c.opt.Metrics.Size(c.Len())
	return key, true
}

// segment returns the list currently holding idx.
func (c *TLFU) segment(idx uint32) *slab.List {
	switch c.arena.At(idx).List {
	case slab.ListWindow:
		return c.window
	case slab.ListProbation:
		return c.probation
	default:
		return c.protected
	}
}

// Advance harvests expired entries and returns their keys.
func (c *TLFU) Advance() []uint64 {
	expired := c.wheel.Advance(c.opt.now())
	var out []uint64
	for _, idx := range expired {
		s := c.arena.At(idx)
		c.segment(idx).Remove(idx)
		delete(c.index, s.Key)
		out = append(out, s.Key)
		c.opt.evicted(s.Key, EvictTTL)
		c.arena.Free(idx)
	}
	c.opt.Metrics.Size(c.Len())
	return out
}

// Clear drops every entry and resets the sketch, keeping the arena.
func (c *TLFU) Clear() {
	c.wheel.Clear()
	c.window.Clear()
	c.probation.Clear()
	c.protected.Clear()
	c.arena.Reset()
	clear(c.index)
	c.sketch.Clear()
	c.opt.Metrics.Size(0)
}

// Len returns the number of resident keys across all segments.
func (c *TLFU) Len() int {
	return c.window.Len() + c.probation.Len() + c.protected.Len()
}

// DebugInfo reports the per-segment lengths.
func (c *TLFU) DebugInfo() DebugInfo {
	return DebugInfo{
		Len:          c.Len(),
		WindowLen:    c.window.Len(),
		ProbationLen: c.probation.Len(),
		ProtectedLen: c.protected.Len(),
	}
}

// Keys returns resident keys in unspecified order.
func (c *TLFU) Keys() []uint64 {
	out := make([]uint64, 0, len(c.index))
	for key := range c.index {
		out = append(out, key)
	}
	return out
}

var _ Core = (*TLFU)(nil)
