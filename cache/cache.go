package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/cachecore/core"
	"github.com/IvanBrykalov/cachecore/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
var ErrNoLoader = errors.New("cache: no Loader provided")

// Key is the constraint for cache keys: anything hashable as bytes.
type Key interface{ ~string | ~[]byte }

// Policy selects the eviction core backing a Cache.
type Policy string

const (
	// TinyLFU is the default: best hit ratios on skewed workloads.
	TinyLFU Policy = "tlfu"
	// ClockPro adapts between recency and frequency with ghost entries.
	ClockPro Policy = "clockpro"
	// LRU is the plain baseline.
	LRU Policy = "lru"
)

// Options configures a Cache. Zero values are safe except Capacity, which
// must be positive.
type Options[K Key, V any] struct {
	// Capacity is the resident entry limit.
	Capacity int

	// Policy picks the eviction core; empty means TinyLFU.
	Policy Policy

	// DefaultTTL applies to Set when no per-key TTL is provided (0 = no TTL).
	DefaultTTL time.Duration

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called with the key and value of every entry the engine
	// drops (policy or TTL). Runs under the cache lock; keep it light.
	OnEvict func(k K, v V)

	// Metrics receives engine-level Hit/Miss/Evict/Size signals.
	Metrics core.Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock core.Clock
}

type entry[K Key, V any] struct {
	key K
	val V
}

// Cache is a value-storing wrapper around one eviction core: it hashes keys
// with xxh3, keeps the values the engine deliberately does not, and
// serializes every call with one mutex — the locking discipline the engine
// contract demands.
type Cache[K Key, V any] struct {
	mu     sync.Mutex
	core   core.Core
	m      map[uint64]entry[K, V]
	opt    Options[K, V]
	sf     singleflight.Group
	closed atomic.Bool

	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

// New constructs a Cache over a fresh core for the configured policy.
func New[K Key, V any](opt Options[K, V]) (*Cache[K, V], error) {
	copt := core.Options{Clock: opt.Clock, Metrics: opt.Metrics}

	var (
		c   core.Core
		err error
	)
	switch opt.Policy {
	case "", TinyLFU:
		c, err = core.NewTLFU(opt.Capacity, copt)
	case ClockPro:
		c, err = core.NewClockPro(opt.Capacity, copt)
	case LRU:
		c, err = core.NewLRU(opt.Capacity, copt)
	default:
		return nil, fmt.Errorf("cache: unknown policy %q", opt.Policy)
	}
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{
		core: c,
		m:    make(map[uint64]entry[K, V], opt.Capacity),
		opt:  opt,
	}, nil
}

// Set inserts or updates k→v using DefaultTTL (if any).
func (c *Cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.opt.DefaultTTL)
}

// SetWithTTL inserts or updates k→v with a per-key TTL (relative duration).
// A non-positive ttl disables expiration for this entry.
func (c *Cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked(c.core.Advance())
	h := hashKey(k)
	c.dropLocked(c.core.Set([]core.Entry{{Key: h, TTL: ttl}}))
	c.m[h] = entry[K, V]{key: k, val: v}
}

// Get returns the value for k and a presence flag. On hit the entry is
// promoted according to the active policy.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	var zero V
	if c.closed.Load() {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked(c.core.Advance())
	h := hashKey(k)
	c.core.Access([]uint64{h})
	e, ok := c.m[h]
	if !ok || string(e.key) != string(k) {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.val, true
}

// Remove deletes k if present and returns true on success.
func (c *Cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	h := hashKey(k)
	if _, ok := c.core.Remove(h); !ok {
		return false
	}
	delete(c.m, h)
	return true
}

// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
// Concurrent loads for the same key are coalesced (singleflight). If no
// Loader was configured, returns ErrNoLoader.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(string(k), func() (any, error) {
		// Double-check after flight join.
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Clean advances the expiration clock and drops expired values, returning
// how many expired. Expiration also runs on every Get/Set, so calling Clean
// is optional housekeeping for read-idle caches.
func (c *Cache[K, V]) Clean() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	expired := c.core.Advance()
	c.dropLocked(expired)
	return len(expired)
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core.Len()
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.core.Clear()
	clear(c.m)
}

// Stats returns the hit/miss counters accumulated so far.
func (c *Cache[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Close marks the cache closed; later Set, SetWithTTL, Get and Remove calls
// are ignored (Get reports a miss). Len, Clean, Clear and Stats keep working.
func (c *Cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// dropLocked deletes the values of keys the engine reported evicted or
// expired. Caller holds the lock.
func (c *Cache[K, V]) dropLocked(keys []uint64) {
	for _, h := range keys {
		if e, ok := c.m[h]; ok {
			delete(c.m, h)
			if c.opt.OnEvict != nil {
				c.opt.OnEvict(e.key, e.val)
			}
		}
	}
}

// hashKey maps a key to the engine's 64-bit key space.
func hashKey[K Key](k K) uint64 {
	return xxh3.Hash(keyToBytes(k))
}

// keyToBytes views a key as bytes without copying.
func keyToBytes[K Key](k K) []byte {
	switch v := any(k).(type) {
	case []byte:
		return v
	case string:
		return unsafe.Slice(unsafe.StringData(v), len(v))
	default:
		s := string(k)
		return unsafe.Slice(unsafe.StringData(s), len(s))
	}
}
