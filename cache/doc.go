// Package cache is the host-side wrapper around the eviction engine: it
// stores values, hashes keys, and serializes access — the three jobs the
// engine in package core deliberately leaves to its embedder.
//
// Design
//
//   - Keys: string or []byte (or types derived from them), hashed to the
//     engine's 64-bit key space with xxh3. Hash collisions are detected by
//     comparing the stored key and treated as misses.
//
//   - Concurrency: one mutex per Cache. The engine is single-threaded by
//     contract; the wrapper is therefore safe for concurrent use, at the
//     cost of serializing all operations on an instance.
//
//   - Expiration: the wrapper advances the engine's expiration clock on
//     every Set and Get, dropping the values of keys the engine reports
//     expired. Clean() is available for read-idle housekeeping.
//
//   - GetOrLoad: coalesces concurrent loads for the same key with
//     singleflight. If Loader is nil, GetOrLoad returns ErrNoLoader.
//
// Basic usage
//
//	c, err := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    Policy:   cache.TinyLFU,
//	})
//	if err != nil { ... }
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
//
// With TTL
//
//	c.SetWithTTL("tmp", []byte("v"), 200*time.Millisecond)
//
// With GetOrLoad (singleflight)
//
//	c, _ := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(context.Background(), "key")
package cache
