// Command bench runs a synthetic Zipf workload against the cache policies
// (and a hashicorp ARC baseline) and exposes optional pprof/Prometheus
// endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/cachecore/cache"
	pmet "github.com/IvanBrykalov/cachecore/metrics/prom"
)

// store is the minimal surface the workload needs; satisfied by the cache
// wrapper and by the ARC baseline.
type store interface {
	Get(k string) (string, bool)
	Set(k, v string)
}

type arcStore struct{ *arc.ARCCache[string, string] }

func (a arcStore) Set(k, v string) { a.Add(k, v) }

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 100_000, "cache capacity (entries)")
		policy   = flag.String("policy", "tlfu", "policy: tlfu | clockpro | lru | arc")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	var metrics *pmet.Adapter
	if *metricsAddr != "" {
		metrics = pmet.New(nil, "cachecore", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Build the store under test ----
	var s store
	switch *policy {
	case "tlfu", "clockpro", "lru":
		opt := cache.Options[string, string]{
			Capacity: *capacity,
			Policy:   cache.Policy(*policy),
		}
		if metrics != nil {
			opt.Metrics = metrics
		}
		c, err := cache.New(opt)
		if err != nil {
			log.Fatalf("cache: %v", err)
		}
		defer func() { _ = c.Close() }()
		s = c
	case "arc":
		a, err := arc.NewARC[string, string](*capacity)
		if err != nil {
			log.Fatalf("arc: %v", err)
		}
		s = arcStore{a}
	default:
		log.Fatalf("unknown policy: %q (use tlfu, clockpro, lru or arc)", *policy)
	}

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *capacity / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		s.Set(k, "v"+strconv.Itoa(i))
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					k := keyByZipf()
					if _, ok := s.Get(k); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
						// Cache-aside: populate on miss.
						s.Set(k, "v")
					}
				} else {
					atomic.AddUint64(&writes, 1)
					s.Set(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policy, *capacity, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
}
