package core

import (
	"time"

	"github.com/IvanBrykalov/cachecore/internal/slab"
	"github.com/IvanBrykalov/cachecore/internal/wheel"
)

// ClockPro is the CLOCK-Pro core. Hot, cold-resident and non-resident test
// pages share one circular list ordered by insertion; three hands rotate
// over it independently:
//
//   - the cold hand demotes unreferenced cold pages to test (their key is
//     evicted) and promotes referenced ones to hot;
//   - the hot hand cools unreferenced hot pages back to cold;
//   - the test hand retires ghost pages and shrinks the cold budget, the
//     adaptive feedback that balances recency against frequency.
//
// Re-inserting a key that still has a test page promotes it straight to hot
// and grows the cold budget.
type ClockPro struct {
	opt Options

	size    int // resident capacity
	coldCap int // adaptive cold budget, in [1, size]

	handHot  uint32
	handCold uint32
	handTest uint32
	ringLen  int

	countHot  int
	countCold int
	countTest int

	arena *slab.Arena
	index map[uint64]uint32 // resident and test pages
	wheel *wheel.Wheel
}

// NewClockPro creates a CLOCK-Pro core holding at most size resident keys,
// plus up to size non-resident test pages.
func NewClockPro(size int, opt Options) (*ClockPro, error) {
	if size < 1 {
		return nil, ErrInvalidCapacity
	}
	opt = opt.withDefaults()
	arena := slab.NewArena(2 * size)
	return &ClockPro{
		opt:      opt,
		size:     size,
		coldCap:  size,
		handHot:  slab.None,
		handCold: slab.None,
		handTest: slab.None,
		arena:    arena,
		index:    make(map[uint64]uint32, size),
		wheel:    wheel.New(arena, opt.now()),
	}, nil
}

// Set inserts or refreshes entries in order and returns evicted keys in
// eviction order. Setting a resident key refreshes its deadline and counts
// as an access; setting a test-page key resurrects it as hot.
func (c *ClockPro) Set(entries []Entry) []uint64 {
	now := c.opt.now()
	var evicted []uint64
	for _, e := range entries {
		c.setOne(e.Key, e.TTL, now, &evicted)
	}
	c.opt.Metrics.Size(c.Len())
	return evicted
}

func (c *ClockPro) setOne(key uint64, ttl time.Duration, now int64, evicted *[]uint64) {
	if idx, ok := c.index[key]; ok {
		s := c.arena.At(idx)
		s.ExpireAt = deadline(now, ttl)
		c.wheel.Schedule(idx)
		if s.Class == slab.PageTest {
			// A reuse inside the test window: the page proved its reuse
			// distance, so the cold budget grows and the key re-enters hot.
			if c.coldCap < c.size {
				c.coldCap++
			}
			s.Referenced = false
			s.Class = slab.PageHot
			c.metaDel(idx)
			c.countTest--
			c.metaAdd(idx, evicted)
			c.countHot++
			return
		}
		s.Referenced = true
		return
	}

	idx := c.arena.Alloc(key)
	s := c.arena.At(idx)
	s.ExpireAt = deadline(now, ttl)
	c.index[key] = idx
	c.wheel.Schedule(idx)
	c.metaAdd(idx, evicted)
	c.countCold++
}

// Access sets the reference bit; the hands reinterpret it lazily. Test pages
// and expired slots count as misses.
func (c *ClockPro) Access(keys []uint64) {
	now := c.opt.now()
	for _, key := range keys {
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
		s.Referenced = true
		if s.Class == slab.PageTest {
			c.opt.Metrics.Miss()
			continue
		}
		c.opt.Metrics.Hit()
	}
}

// Remove drops key; it reports whether the key was resident. Removing a
// key's test page forgets the ghost and returns false.
func (c *ClockPro) Remove(key uint64) (uint64, bool) {
	idx, ok := c.index[key]
	if !ok {
		return 0, false
	}
	s := c.arena.At(idx)
	resident := true
	switch s.Class {
	case slab.PageHot:
		c.countHot--
	case slab.PageCold:
		c.countCold--
	case slab.PageTest:
		c.countTest--
		resident = false
	}
	c.wheel.Deschedule(idx)
	c.metaDel(idx)
	delete(c.index, key)
	c.arena.Free(idx)
	c.opt.Metrics.Size(c.Len())
	if !resident {
		return 0, false
	}
	return key, true
}

// Advance harvests expired entries and returns the resident ones; expired
// test pages are forgotten silently.
func (c *ClockPro) Advance() []uint64 {
	expired := c.wheel.Advance(c.opt.now())
	var out []uint64
	for _, idx := range expired {
		s := c.arena.At(idx)
		switch s.Class {
		case slab.PageHot:
			c.countHot--
		case slab.PageCold:
			c.countCold--
		case slab.PageTest:
			c.countTest--
		}
		if s.Class != slab.PageTest {
			out = append(out, s.Key)
			c.opt.evicted(s.Key, EvictTTL)
		}
		c.metaDel(idx)
		delete(c.index, s.Key)
		c.arena.Free(idx)
	}
	c.opt.Metrics.Size(c.Len())
	return out
}

// Clear drops every page, keeping the arena. The cold budget resets.
func (c *ClockPro) Clear() {
	c.wheel.Clear()
	c.arena.Reset()
	clear(c.index)
	c.handHot, c.handCold, c.handTest = slab.None, slab.None, slab.None
	c.ringLen = 0
	c.countHot, c.countCold, c.countTest = 0, 0, 0
	c.coldCap = c.size
	c.opt.Metrics.Size(0)
}

// Len returns the number of resident keys (test pages excluded).
func (c *ClockPro) Len() int { return c.countHot + c.countCold }

// DebugInfo reports the resident length; the segmented fields stay zero.
func (c *ClockPro) DebugInfo() DebugInfo { return DebugInfo{Len: c.Len()} }

// Keys returns resident keys in unspecified order.
func (c *ClockPro) Keys() []uint64 {
	out := make([]uint64, 0, c.Len())
	for key, idx := range c.index {
		if c.arena.At(idx).Class != slab.PageTest {
			out = append(out, key)
		}
	}
	return out
}

// ---- circular list / hand machinery ----

func (c *ClockPro) next(idx uint32) uint32 { return c.arena.At(idx).Next }
func (c *ClockPro) prev(idx uint32) uint32 { return c.arena.At(idx).Prev }

// metaAdd makes room, then links idx into the ring just before the hot hand,
// which places it at the back of the hot hand's sweep.
func (c *ClockPro) metaAdd(idx uint32, evicted *[]uint64) {
	c.evictPressure(evicted)
	s := c.arena.At(idx)
	s.List = slab.ListClock
	if c.handHot == slab.None {
		s.Prev, s.Next = idx, idx
		c.handHot, c.handCold, c.handTest = idx, idx, idx
		c.ringLen = 1
		return
	}
	at := c.arena.At(c.handHot)
	before := at.Prev
	s.Next = c.handHot
	s.Prev = before
	c.arena.At(before).Next = idx
	at.Prev = idx
	c.ringLen++
}

// metaDel unlinks idx from the ring, stepping any hand parked on it back to
// the previous page first.
func (c *ClockPro) metaDel(idx uint32) {
	s := c.arena.At(idx)
	if s.List != slab.ListClock {
		return
	}
	if c.ringLen == 1 {
		c.handHot, c.handCold, c.handTest = slab.None, slab.None, slab.None
	} else {
		if c.handHot == idx {
			c.handHot = s.Prev
		}
		if c.handCold == idx {
			c.handCold = s.Prev
		}
		if c.handTest == idx {
			c.handTest = s.Prev
		}
		c.arena.At(s.Prev).Next = s.Next
		c.arena.At(s.Next).Prev = s.Prev
	}
	s.Prev, s.Next = slab.None, slab.None
	s.List = slab.ListNone
	c.ringLen--
}

// evictPressure runs the cold hand until the resident count fits.
func (c *ClockPro) evictPressure(evicted *[]uint64) {
	for c.size <= c.countHot+c.countCold {
		c.runHandCold(evicted)
	}
}

// runHandCold processes one page under the cold hand: a referenced cold page
// is promoted to hot, an unreferenced one is demoted to a test page and its
// key evicted. The hand then advances and hot pressure is worked off.
func (c *ClockPro) runHandCold(evicted *[]uint64) {
	if c.handCold == slab.None {
		return
	}
	s := c.arena.At(c.handCold)
	if s.Class == slab.PageCold {
		if s.Referenced {
			s.Referenced = false
			s.Class = slab.PageHot
			c.countCold--
			c.countHot++
		} else {
			s.Class = slab.PageTest
			c.countCold--
			c.countTest++
			*evicted = append(*evicted, s.Key)
			c.opt.evicted(s.Key, EvictPolicy)
			for c.size < c.countTest {
				c.runHandTest(evicted)
			}
		}
	}
	// The test hand may have moved the cold hand already; re-read it.
	if c.handCold != slab.None {
		c.handCold = c.next(c.handCold)
	}
	for c.size-c.coldCap < c.countHot {
		c.runHandHot(evicted)
	}
}

// runHandHot processes one page under the hot hand: referenced hot pages get
// a second chance, unreferenced ones are cooled back to cold.
func (c *ClockPro) runHandHot(evicted *[]uint64) {
	if c.handHot == c.handTest {
		c.runHandTest(evicted)
	}
	if c.handHot == slab.None {
		return
	}
	s := c.arena.At(c.handHot)
	if s.Class == slab.PageHot {
		if s.Referenced {
			s.Referenced = false
		} else {
			s.Class = slab.PageCold
			c.countHot--
			c.countCold++
		}
	}
	c.handHot = c.next(c.handHot)
}

// runHandTest retires one test page: the ghost is forgotten and the cold
// budget shrinks, bounded below by one.
func (c *ClockPro) runHandTest(evicted *[]uint64) {
	if c.handTest == c.handCold {
		c.runHandCold(evicted)
	}
	if c.handTest == slab.None {
		return
	}
	s := c.arena.At(c.handTest)
	if s.Class == slab.PageTest {
		idx := c.handTest
		c.wheel.Deschedule(idx)
		delete(c.index, s.Key)
		c.metaDel(idx) // steps handTest back to the previous page
		c.arena.Free(idx)
		c.countTest--
		if c.coldCap > 1 {
			c.coldCap--
		}
	}
	if c.handTest != slab.None {
		c.handTest = c.next(c.handTest)
	}
}

var _ Core = (*ClockPro)(nil)
