package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
// std has runtime/internal/sys.CacheLineSize but it's unexported.
// 64 works well in practice.
const CacheLineSize = 64

// PaddedAtomicUint64 is an atomic uint64 padded to exactly one cache line.
// Use when many goroutines update different counters to avoid false sharing.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte // 8 = size of uint64; pad to 64 bytes
}

// ---- Compile-time size check (must be exactly one cache line) ----

var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
