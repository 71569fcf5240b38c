// Package core implements the admission/eviction engine of an in-process
// cache: three interchangeable policy cores over a shared slot arena, a
// count-min frequency sketch, and a hierarchical timer wheel.
//
// Design
//
//   - Policies: TLFU (window LRU feeding a segmented probation/protected
//     main area, with count-min admission), ClockPro (hot/cold/test resident
//     classes swept by three hands), and LRU (single queue baseline). The
//     three cores share the operation vocabulary (the Core interface) but no
//     base type; each owns all of its state.
//
//   - Keys: callers supply 64-bit integer keys, typically by passing their
//     own hash through Spread. The engine stores keys and residency metadata
//     only; value storage belongs to the host (see the cache package for a
//     ready-made wrapper).
//
//   - Storage: slots live in a preallocated slab addressed by 32-bit indices;
//     policy queues and timer-wheel buckets are intrusive index links, so
//     queue and wheel operations allocate nothing, and Clear keeps the arena.
//
//   - TTL: each entry may carry a relative TTL. Deadlines are bucketed in a
//     five-level timing wheel; Advance harvests due entries and returns their
//     keys. Reads of expired-but-unharvested keys count as misses.
//
//   - Concurrency: none. Every operation runs to completion on the caller's
//     goroutine; hosts that share an instance must serialize calls with a
//     mutex. Distinct instances are independent.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals;
//     NoopMetrics is the default and a Prometheus adapter lives in
//     metrics/prom.
//
// Basic usage
//
//	c, err := core.NewTLFU(10_000, core.Options{})
//	if err != nil { ... }
//	evicted := c.Set([]core.Entry{{Key: core.Spread(42), TTL: time.Minute}})
//	c.Access([]uint64{core.Spread(42)})
//	expired := c.Advance()
//	_ = evicted
//	_ = expired
package core
