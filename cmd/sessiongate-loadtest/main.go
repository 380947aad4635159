// Command sessiongate-loadtest hammers the session store with concurrent
// logins for a small set of users and checks that no user ever ends above
// the connection cap. A lookup phase then measures token validation latency.
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

	"github.com/MrEthical07/sessiongate/internal"
	"github.com/MrEthical07/sessiongate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		users       = flag.Int("users", 50, "number of distinct users")
		limit       = flag.Int("max-connections", 5, "per-user connection cap")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (login + validate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sglt", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *limit <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, max-connections, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewStore(client, *prefix)
	userIDs := make([]string, *users)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("loadtest-user-%d", i)
	}

	tokens := newTokenRing(*users * *limit)
	loginStats, evicted := runLoginPhase(ctx, store, userIDs, tokens, *limit, *ops, *concurrency)

	over := 0
	for _, uid := range userIDs {
		n, err := store.CountForUser(ctx, uid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "count failed: %v\n", err)
			os.Exit(1)
		}
		if n > *limit {
			over++
			fmt.Fprintf(os.Stderr, "user %s holds %d sessions, cap is %d\n", uid, n, *limit)
		}
	}

	validateStats := runValidatePhase(ctx, store, tokens, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("validate", validateStats)
	fmt.Printf("evicted=%d users_over_cap=%d\n", evicted, over)
	if over > 0 {
		os.Exit(1)
	}
}

// tokenRing remembers recently issued token hashes for the validate phase.
type tokenRing struct {
	mu     sync.Mutex
	hashes []string
	next   int
}

func newTokenRing(size int) *tokenRing {
	return &tokenRing{hashes: make([]string, 0, size)}
}

func (r *tokenRing) add(hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hashes) < cap(r.hashes) {
		r.hashes = append(r.hashes, hash)
		return
	}
	r.hashes[r.next] = hash
	r.next = (r.next + 1) % len(r.hashes)
}

func (r *tokenRing) pick(rng *rand.Rand) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hashes) == 0 {
		return ""
	}
	return r.hashes[rng.Intn(len(r.hashes))]
}

func runLoginPhase(ctx context.Context, store *session.Store, userIDs []string, tokens *tokenRing, limit, ops, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		evicted   int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
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
				sess, err := buildSession(userIDs[r.Intn(len(userIDs))], fmt.Sprintf("tok-%d-%d", worker, i))
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				t0 := time.Now()
				gone, err := store.Create(ctx, sess, time.Hour, limit)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					atomic.AddInt64(&evicted, int64(len(gone)))
					tokens.add(sess.TokenHash)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), evicted
}

// runValidatePhase looks up remembered tokens. Misses are expected for
// tokens whose session was evicted and are not counted as failures.
func runValidatePhase(ctx context.Context, store *session.Store, tokens *tokenRing, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				hash := tokens.pick(r)
				t0 := time.Now()
				_, err := store.GetByToken(ctx, hash)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
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
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSession(userID, token string) (*session.Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &session.Session{
		SessionID: sid,
		UserID:    userID,
		TokenHash: internal.HashToken(token),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(time.Hour).UnixMilli(),
	}, nil
}
