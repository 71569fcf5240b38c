package core

import "time"

// Entry is one batched set operation: a caller-hashed 64-bit key and a
// relative TTL. TTL 0 means the entry never expires.
type Entry struct {
	Key uint64
	TTL time.Duration
}

// DebugInfo reports segment lengths. Fields that do not apply to a policy
// stay zero (CLOCK-Pro and LRU have no window/probation/protected split).
type DebugInfo struct {
	Len          int
	WindowLen    int
	ProbationLen int
	ProtectedLen int
}

// Core is the uniform surface shared by the three policy cores.
//
// Cores are NOT safe for concurrent use: every exported operation runs to
// completion on the caller's goroutine and callers must serialize access per
// instance. The engine stores only keys and residency metadata, never values.
type Core interface {
	// Set inserts or refreshes the entries in order and returns the keys
	// evicted along the way, in eviction order. Setting a resident key
	// refreshes its deadline and counts as an access.
	Set(entries []Entry) []uint64

	// Access records hits for the given keys. Expired or absent keys are
	// misses; batch access intentionally reports nothing back (observe
	// hit/miss through Metrics).
	Access(keys []uint64)

	// Remove drops a key. It returns the key and true when the key was
	// resident, 0 and false otherwise.
	Remove(key uint64) (uint64, bool)

	// Advance moves the expiration clock to the current time and returns
	// the keys that expired.
	Advance() []uint64

	// Clear returns the core to its initial state without releasing the
	// slot arena.
	Clear()

	// Len returns the number of resident keys.
	Len() int

	// DebugInfo returns per-segment lengths.
	DebugInfo() DebugInfo

	// Keys returns all resident keys in unspecified order. Test helper.
	Keys() []uint64
}

// deadline converts a relative TTL into an absolute UnixNano deadline.
// A non-positive ttl returns 0 (no expiration).
func deadline(now int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now + int64(ttl)
}
