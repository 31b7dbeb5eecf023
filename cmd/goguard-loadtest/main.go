// Command goguard-loadtest drives concurrent failures and checks against a
// Redis-backed tracker and reports latency. After the failure phase every
// record is compared with the number of recordings that succeeded, so a lost
// update shows up as a mismatch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		identifiers = flag.Int("identifiers", 1000, "number of distinct identifiers")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (failure + check)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gla-load", "attempt key prefix")
		retries     = flag.Int("max-retries", 32, "optimistic retries per update")
	)
	flag.Parse()

	if *identifiers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identifiers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	// Keep every identifier below the block threshold so each recorded
	// failure must show up in the final count.
	cfg := goGuard.DefaultConfig()
	cfg.Store.RedisPrefix = *prefix
	cfg.Store.MaxRetries = *retries
	cfg.Policy.MaxAttempts = *ops + 1
	cfg.Policy.Tiers = nil
	cfg.Metrics.EnableLatencyHistograms = true

	tracker, err := goGuard.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build tracker: %v\n", err)
		os.Exit(1)
	}
	defer tracker.Close()

	ids := make([]string, *identifiers)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%d@load.test", i)
		if err := tracker.Reset(ctx, ids[i]); err != nil {
			fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
			os.Exit(1)
		}
	}

	recorded := make([]int64, len(ids))
	failureStats := runPhase(*ops, *concurrency, len(ids), func(idx int) error {
		_, err := tracker.CheckAndRecordFailure(ctx, ids[idx])
		if err == nil {
			atomic.AddInt64(&recorded[idx], 1)
		}
		return err
	})
	checkStats := runPhase(*ops, *concurrency, len(ids), func(idx int) error {
		_, err := tracker.Check(ctx, ids[idx])
		return err
	})

	lost := 0
	for i, id := range ids {
		st, err := tracker.Status(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status %s: %v\n", id, err)
			os.Exit(1)
		}
		if int64(st.FailureCount) != recorded[i] {
			lost++
			fmt.Fprintf(os.Stderr, "%s: recorded %d failures, store holds %d\n", id, recorded[i], st.FailureCount)
		}
	}

	snap := tracker.MetricsSnapshot()

	fmt.Println("---- results ----")
	printStats("failure", failureStats)
	printStats("check", checkStats)
	fmt.Printf("store contention=%d unavailable=%d\n",
		snap.Counters[goGuard.MetricContention], snap.Counters[goGuard.MetricStoreUnavailable])
	if lost > 0 {
		fmt.Printf("lost updates on %d identifiers\n", lost)
		os.Exit(1)
	}
	fmt.Println("no lost updates")
}

func runPhase(ops, concurrency, identifiers int, op func(idx int) error) phaseStats {
	var (
		wg         sync.WaitGroup
		cursor     int64
		failures   int64
		contention int64
		latencies  = make([]time.Duration, 0, ops)
		mu         sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r.Intn(identifiers))
				d := time.Since(t0)
				switch {
				case err == nil:
				case errors.Is(err, goGuard.ErrContention):
					atomic.AddInt64(&contention, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	stats := computeStats(time.Since(start), latencies, failures)
	stats.contention = contention
	return stats
}

type phaseStats struct {
	total      time.Duration
	ops        int
	failures   int64
	contention int64
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
	opsPerS    float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d contention=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.contention,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
