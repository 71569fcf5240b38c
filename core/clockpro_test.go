package core

import (
	"testing"
	"time"

	"github.com/IvanBrykalov/cachecore/internal/slab"
)

// Unreferenced cold pages demote to test pages in insertion order.
func TestClockPro_ColdDemotionOrder(t *testing.T) {
	t.Parallel()

	c, err := NewClockPro(4, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	if evicted := c.Set([]Entry{{Key: 1}, {Key: 2}, {Key: 3}, {Key: 4}}); len(evicted) != 0 {
		t.Fatalf("fill evicted %v", evicted)
	}

	evicted := c.Set([]Entry{{Key: 5}})
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("evicted = %v, want [1]", evicted)
	}
	evicted = c.Set([]Entry{{Key: 6}})
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Fatalf("evicted = %v, want [2]", evicted)
	}
	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}
	// The demoted keys are ghosts now: not resident, still remembered.
	if c.countTest != 2 {
		t.Fatalf("test pages = %d, want 2", c.countTest)
	}
	keys := keySet(c.Keys())
	if keys[1] || keys[2] {
		t.Fatalf("ghosts leaked into Keys: %v", c.Keys())
	}
}

// Re-inserting a key inside its test window resurrects it as hot and evicts
// the oldest resident cold page instead.
func TestClockPro_TestPagePromotion(t *testing.T) {
	t.Parallel()

	c, err := NewClockPro(4, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	c.Set([]Entry{{Key: 1}, {Key: 2}, {Key: 3}, {Key: 4}})
	c.Set([]Entry{{Key: 5}}) // 1 -> test
	c.Set([]Entry{{Key: 6}}) // 2 -> test

	evicted := c.Set([]Entry{{Key: 1}})
	if len(evicted) != 1 || evicted[0] != 3 {
		t.Fatalf("evicted = %v, want [3] (oldest resident cold)", evicted)
	}
	keys := keySet(c.Keys())
	if !keys[1] {
		t.Fatal("resurrected key not resident")
	}
	idx, ok := c.index[1]
	if !ok || c.arena.At(idx).Class != slab.PageHot {
		t.Fatal("resurrected key must be hot")
	}
	if c.countHot != 1 || c.Len() != 4 {
		t.Fatalf("hot=%d len=%d, want 1/4", c.countHot, c.Len())
	}
}

// A referenced cold page is spared by the cold hand; the next unreferenced
// cold page goes instead.
func TestClockPro_ReferencedColdSurvives(t *testing.T) {
	t.Parallel()

	c, err := NewClockPro(3, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	c.Set([]Entry{{Key: 1}, {Key: 2}, {Key: 3}})
	c.Access([]uint64{1})

	evicted := c.Set([]Entry{{Key: 4}})
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Fatalf("evicted = %v, want [2]", evicted)
	}
	keys := keySet(c.Keys())
	if !keys[1] {
		t.Fatal("accessed key evicted")
	}
}

// Resident capacity and the test-page bound both hold under churn.
func TestClockPro_CapacityBounds(t *testing.T) {
	t.Parallel()

	const size = 8
	c, err := NewClockPro(size, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 500; i++ {
		c.Set([]Entry{{Key: i}})
		if got := c.countHot + c.countCold; got > size {
			t.Fatalf("insert %d: resident %d exceeds %d", i, got, size)
		}
		if c.countTest > size {
			t.Fatalf("insert %d: test pages %d exceed %d", i, c.countTest, size)
		}
		if c.coldCap < 1 || c.coldCap > size {
			t.Fatalf("insert %d: cold budget %d out of range", i, c.coldCap)
		}
	}
}

// Removing a ghost forgets it without reporting a resident removal.
func TestClockPro_RemoveTestPage(t *testing.T) {
	t.Parallel()

	c, err := NewClockPro(2, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	c.Set([]Entry{{Key: 1}, {Key: 2}})
	evicted := c.Set([]Entry{{Key: 3}})
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("evicted = %v, want [1]", evicted)
	}

	if _, ok := c.Remove(1); ok {
		t.Fatal("ghost removal reported a resident key")
	}
	if _, tracked := c.index[1]; tracked {
		t.Fatal("ghost still tracked after Remove")
	}
	// A later re-insert of the forgotten key starts cold again.
	c.Set([]Entry{{Key: 1}})
	idx := c.index[1]
	if c.arena.At(idx).Class != slab.PageCold {
		t.Fatal("forgotten key must re-enter cold")
	}
}

// Expired resident pages surface through Advance; expired ghosts vanish
// silently.
func TestClockPro_Expiration(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c, err := NewClockPro(2, Options{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}
	c.Set([]Entry{{Key: 1, TTL: time.Millisecond}, {Key: 2, TTL: time.Millisecond}})
	c.Set([]Entry{{Key: 3, TTL: time.Millisecond}}) // demotes 1 to a ghost

	clk.add(2 * time.Millisecond)
	expired := c.Advance()
	if got := keySet(expired); len(expired) != 2 || !got[2] || !got[3] {
		t.Fatalf("expired = %v, want keys 2 and 3", expired)
	}
	if c.Len() != 0 || c.countTest != 0 {
		t.Fatalf("len=%d test=%d after expiration", c.Len(), c.countTest)
	}
	if len(c.index) != 0 {
		t.Fatalf("index not empty: %d", len(c.index))
	}
}

// Clear resets counts, hands and the adaptive cold budget.
func TestClockPro_Clear(t *testing.T) {
	t.Parallel()

	c, err := NewClockPro(4, Options{Clock: newFakeClock()})
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 20; i++ {
		c.Set([]Entry{{Key: i}})
	}
	c.Clear()
	if c.Len() != 0 || c.countTest != 0 || c.ringLen != 0 {
		t.Fatalf("state after Clear: len=%d test=%d ring=%d", c.Len(), c.countTest, c.ringLen)
	}
	if c.coldCap != 4 {
		t.Fatalf("cold budget = %d after Clear, want 4", c.coldCap)
	}
	c.Set([]Entry{{Key: 1}})
	if c.Len() != 1 {
		t.Fatalf("Len after reuse = %d", c.Len())
	}
}
