package core

import (
	"time"

	"github.com/IvanBrykalov/cachecore/internal/slab"
	"github.com/IvanBrykalov/cachecore/internal/wheel"
)

// LRU is the baseline single-queue core: set pushes to the front, overflow
// evicts the tail, access moves to the front.
type LRU struct {
	opt   Options
	size  int
	arena *slab.Arena
	index map[uint64]uint32
	queue *slab.List
	wheel *wheel.Wheel
}

// NewLRU creates an LRU core holding at most size keys.
func NewLRU(size int, opt Options) (*LRU, error) {
	if size < 1 {
		return nil, ErrInvalidCapacity
	}
	opt = opt.withDefaults()
	arena := slab.NewArena(size)
	return &LRU{
		opt:   opt,
		size:  size,
		arena: arena,
		index: make(map[uint64]uint32, size),
		queue: slab.NewList(arena, slab.ListLRU),
		wheel: wheel.New(arena, opt.now()),
	}, nil
}

// Set inserts or refreshes entries in order and returns evicted keys.
func (c *LRU) Set(entries []Entry) []uint64 {
	now := c.opt.now()
	var evicted []uint64
	for _, e := range entries {
		c.setOne(e.Key, e.TTL, now, &evicted)
	}
	c.opt.Metrics.Size(c.Len())
	return evicted
}

func (c *LRU) setOne(key uint64, ttl time.Duration, now int64, evicted *[]uint64) {
	if idx, ok := c.index[key]; ok {
		s := c.arena.At(idx)
		s.ExpireAt = deadline(now, ttl)
		c.wheel.Schedule(idx)
		c.queue.MoveToFront(idx)
		return
	}
	idx := c.arena.Alloc(key)
	s := c.arena.At(idx)
	s.ExpireAt = deadline(now, ttl)
	c.index[key] = idx
	c.wheel.Schedule(idx)
	c.queue.PushFront(idx)
	for c.queue.Len() > c.size {
		tail, _ := c.queue.PopBack()
		c.drop(tail, EvictPolicy, evicted)
	}
}

// drop releases an already unlinked slot and reports its key.
func (c *LRU) drop(idx uint32, reason EvictReason, evicted *[]uint64) {
	s := c.arena.At(idx)
	c.wheel.Deschedule(idx)
	delete(c.index, s.Key)
	*evicted = append(*evicted, s.Key)
	c.opt.evicted(s.Key, reason)
	c.arena.Free(idx)
}

// Access promotes each resident, unexpired key to the front.
func (c *LRU) Access(keys []uint64) {
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
		c.queue.MoveToFront(idx)
		c.opt.Metrics.Hit()
	}
}

// Remove drops key; it reports whether the key was resident.
func (c *LRU) Remove(key uint64) (uint64, bool) {
	idx, ok := c.index[key]
	if !ok {
		return 0, false
	}
	c.queue.Remove(idx)
	c.wheel.Deschedule(idx)
	delete(c.index, key)
	c.arena.Free(idx)
	c.opt.Metrics.Size(c.Len())
	return key, true
}

// Advance harvests expired entries and returns their keys.
func (c *LRU) Advance() []uint64 {
	expired := c.wheel.Advance(c.opt.now())
	var out []uint64
	for _, idx := range expired {
		s := c.arena.At(idx)
		c.queue.Remove(idx)
		delete(c.index, s.Key)
		out = append(out, s.Key)
		c.opt.evicted(s.Key, EvictTTL)
		c.arena.Free(idx)
	}
	c.opt.Metrics.Size(c.Len())
	return out
}

// Clear drops every entry, keeping the arena.
func (c *LRU) Clear() {
	c.wheel.Clear()
	c.queue.Clear()
	c.arena.Reset()
	clear(c.index)
	c.opt.Metrics.Size(0)
}

// Len returns the number of resident keys.
func (c *LRU) Len() int { return c.queue.Len() }

// DebugInfo reports the total length; LRU has no segments.
func (c *LRU) DebugInfo() DebugInfo { return DebugInfo{Len: c.Len()} }

// Keys returns resident keys in unspecified order.
func (c *LRU) Keys() []uint64 {
	out := make([]uint64, 0, len(c.index))
	for key := range c.index {
		out = append(out, key)
	}
	return out
}

var _ Core = (*LRU)(nil)
