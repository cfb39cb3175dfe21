// identity-loadtest measures token issuer throughput against Redis: access
// token verification and refresh-token rotation under concurrency.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type grantState struct {
	principal goIdentity.ClaimsPrincipal
	access    string
	refresh   string
	mu        sync.Mutex
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		grants      int
		concurrency int
		ops         int
		redisAddr   string
	)
	fs := pflag.NewFlagSet("identity-loadtest", pflag.ContinueOnError)
	fs.IntVar(&grants, "grants", 10000, "number of token sets to seed")
	fs.IntVar(&concurrency, "concurrency", 256, "number of concurrent workers")
	fs.IntVar(&ops, "ops", 100000, "operations per phase (authenticate + refresh)")
	fs.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if grants <= 0 || concurrency <= 0 || ops <= 0 {
		return errors.New("grants, concurrency, and ops must be > 0")
	}

	ctx := context.Background()

	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() { _ = client.Close() }()

	issuer, err := newIssuer(client)
	if err != nil {
		return err
	}

	states := make([]*grantState, grants)
	fmt.Printf("seeding %d token sets...\n", grants)
	startSeed := time.Now()
	for i := 0; i < grants; i++ {
		p := goIdentity.ClaimsPrincipal{
			Subject: fmt.Sprintf("acct-%d", i),
			Name:    fmt.Sprintf("user%d@example.com", i),
			Scopes:  []string{"openid", "email", "profile"},
		}
		set, err := issuer.IssueTokenSet(ctx, p, "stamp")
		if err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		states[i] = &grantState{principal: p, access: set.AccessToken, refresh: set.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(ops, concurrency, 7919, func(r *mrand.Rand, _ int) error {
		s := states[r.Intn(len(states))]
		_, err := issuer.AuthenticateAccessToken(ctx, s.access)
		return err
	})
	refreshStats := runPhase(ops, concurrency, 6151, func(r *mrand.Rand, _ int) error {
		s := states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()

		rp, err := issuer.AuthenticateRefreshToken(ctx, s.refresh)
		if err != nil {
			return err
		}
		set, err := issuer.IssueTokenSet(ctx, rp.ClaimsPrincipal, rp.SecurityStamp)
		if err != nil {
			return err
		}
		s.access, s.refresh = set.AccessToken, set.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
	return nil
}

func newIssuer(client redis.UniversalClient) (*goIdentity.Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	cfg := goIdentity.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	return goIdentity.NewTokenIssuer(client, cfg)
}

func runPhase(ops, concurrency int, seed int64, op func(r *mrand.Rand, i int) error) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
	return samples[(len(samples)-1)*p/100]
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
