package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent Set/Get/SetWithTTL/Remove on random keys
// against every policy. Should pass under `-race` without detector reports:
// the wrapper serializes the single-threaded engine behind one mutex.
func TestRace_MixedOps(t *testing.T) {
	for _, policy := range []Policy{TinyLFU, ClockPro, LRU} {
		t.Run(string(policy), func(t *testing.T) {
			c, err := New[string, []byte](Options[string, []byte]{
				Capacity: 4_096,
				Policy:   policy,
			})
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { _ = c.Close() })

			workers := 4 * runtime.GOMAXPROCS(0)
			keyspace := 20_000
			deadline := time.Now().Add(time.Second)

			var wg sync.WaitGroup
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func(id int) {
					defer wg.Done()
					r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
					for time.Now().Before(deadline) {
						k := "k:" + strconv.Itoa(r.Intn(keyspace))
						switch r.Intn(100) {
						case 0, 1, 2, 3, 4: // ~5% — Remove
							c.Remove(k)
						case 5, 6, 7, 8, 9: // ~5% — SetWithTTL
							c.SetWithTTL(k, []byte("x"), time.Duration(10+r.Intn(20))*time.Millisecond)
						case 10, 11, 12, 13, 14, 15, 16, 17, 18, 19: // ~10% — Set
							c.Set(k, []byte("x"))
						default: // ~80% — Get
							c.Get(k)
						}
					}
				}(w)
			}
			wg.Wait()

			if got := c.Len(); got > 4_096 {
				t.Fatalf("Len %d exceeds capacity", got)
			}
		})
	}
}
