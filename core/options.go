package core

import "time"

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a core. The zero value is safe:
//   - nil Clock   => time.Now()
//   - nil Metrics => NoopMetrics
type Options struct {
	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock

	// Metrics receives Hit/Miss/Evict/Size signals. Nil => NoopMetrics.
	Metrics Metrics

	// OnEvict is called for every key the policy or the TTL clock drops.
	// It runs on the caller's goroutine; keep callbacks lightweight.
	OnEvict func(key uint64, reason EvictReason)
}

func (o Options) withDefaults() Options {
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

// now returns the current time from the configured clock.
func (o Options) now() int64 {
	if o.Clock != nil {
		return o.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// evicted fans one eviction out to metrics and the callback.
func (o Options) evicted(key uint64, reason EvictReason) {
	o.Metrics.Evict(reason)
	if o.OnEvict != nil {
		o.OnEvict(key, reason)
	}
}
