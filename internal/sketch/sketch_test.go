package sketch

import (
	"testing"

	"github.com/IvanBrykalov/cachecore/internal/util"
)

// Rows are sized to a power of two (the index mask depends on it), with a
// floor of 64 counters.
func TestCountMin_RowWidth(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, 10, 100, 1000, 4096} {
		c := New(size)
		width := uint64(c.mask) + 1
		if !util.IsPowerOfTwo(width) {
			t.Fatalf("size %d: row width %d not a power of two", size, width)
		}
		if width < 64 {
			t.Fatalf("size %d: row width %d below floor", size, width)
		}
		if width < uint64(size) {
			t.Fatalf("size %d: row width %d smaller than capacity", size, width)
		}
	}
}

// Estimates never undercount (count-min property) and saturate at 15.
func TestCountMin_EstimateBounds(t *testing.T) {
	t.Parallel()

	c := New(512)
	h := uint64(0x9e3779b97f4a7c15)

	for i := 1; i <= 5; i++ {
		c.Add(h)
		if est := c.Estimate(h); est < i {
			t.Fatalf("after %d adds estimate = %d, undercounts", i, est)
		}
	}
	for i := 0; i < 100; i++ {
		c.Add(h)
	}
	if est := c.Estimate(h); est != 15 {
		t.Fatalf("saturated estimate = %d, want 15", est)
	}
}

// Aging fires when additions reach the sample size and halves the estimate.
func TestCountMin_AgingHalves(t *testing.T) {
	t.Parallel()

	// size 10 => sample of 100 additions.
	c := New(10)
	h := uint64(42)

	for i := 0; i < 99; i++ {
		c.Add(h)
	}
	if est := c.Estimate(h); est != 15 {
		t.Fatalf("pre-aging estimate = %d, want 15", est)
	}
	c.Add(h) // 100th addition triggers aging
	if est := c.Estimate(h); est != 7 {
		t.Fatalf("post-aging estimate = %d, want 7", est)
	}
	if c.additions != 50 {
		t.Fatalf("additions after aging = %d, want 50", c.additions)
	}
}

// Aging halves every counter, not only the touched ones.
func TestCountMin_AgingHalvesAllCounters(t *testing.T) {
	t.Parallel()

	c := New(64)
	for i := range c.table {
		for j := range c.table[i] {
			c.table[i][j] = 0xFF // two saturated counters per byte
		}
	}
	if est := c.Estimate(12345); est != 15 {
		t.Fatalf("estimate = %d, want 15", est)
	}
	c.age()
	for i := range c.table {
		for j := range c.table[i] {
			if c.table[i][j] != 0x77 {
				t.Fatalf("row %d byte %d = %#x, want 0x77", i, j, c.table[i][j])
			}
		}
	}
}

// Distinct keys keep mostly independent counters; a heavy hitter dominates.
func TestCountMin_HeavyHitter(t *testing.T) {
	t.Parallel()

	c := New(4096)
	heavy := uint64(7777)
	for i := 0; i < 12; i++ {
		c.Add(heavy)
	}
	for i := uint64(0); i < 100; i++ {
		c.Add(i * 0x9e3779b97f4a7c15)
	}
	three := uint64(3)
	cold := three * 0x9e3779b97f4a7c15
	if he, ce := c.Estimate(heavy), c.Estimate(cold); he <= ce {
		t.Fatalf("heavy %d <= cold %d", he, ce)
	}
}

// Clear zeroes counters and the addition count.
func TestCountMin_Clear(t *testing.T) {
	t.Parallel()

	c := New(128)
	for i := 0; i < 10; i++ {
		c.Add(uint64(i))
	}
	c.Clear()
	if c.additions != 0 {
		t.Fatalf("additions = %d after Clear", c.additions)
	}
	for i := 0; i < 10; i++ {
		if est := c.Estimate(uint64(i)); est != 0 {
			t.Fatalf("estimate(%d) = %d after Clear", i, est)
		}
	}
}
