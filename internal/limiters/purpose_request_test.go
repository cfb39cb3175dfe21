package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newPurposeLimiterTest(t *testing.T, cfg PurposeRequestConfig) (*PurposeRequestLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewPurposeRequestLimiter(rdb, cfg), mr
}

func TestPurposeRequestLimiterBudget(t *testing.T) {
	l, mr := newPurposeLimiterTest(t, PurposeRequestConfig{Enabled: true, MaxRequests: 2, Window: 10 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "password_reset", "a1"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "password_reset", "a1"); !errors.Is(err, ErrPurposeRequestRateLimited) {
		t.Fatalf("expected ErrPurposeRequestRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "email_change", "a1"); err != nil {
		t.Fatalf("other purpose must have its own budget: %v", err)
	}
	if err := l.Check(ctx, "password_reset", "a2"); err != nil {
		t.Fatalf("other account must have its own budget: %v", err)
	}

	mr.FastForward(10*time.Minute + time.Second)
	if err := l.Check(ctx, "password_reset", "a1"); err != nil {
		t.Fatalf("expected budget to refill, got %v", err)
	}
}

func TestPurposeRequestLimiterDisabledAndNil(t *testing.T) {
	l, mr := newPurposeLimiterTest(t, PurposeRequestConfig{Enabled: false, MaxRequests: 1, Window: time.Minute})
	mr.Close()
	if err := l.Check(context.Background(), "password_reset", "a1"); err != nil {
		t.Fatalf("disabled limiter must not touch redis: %v", err)
	}

	var nilLimiter *PurposeRequestLimiter
	if err := nilLimiter.Check(context.Background(), "password_reset", "a1"); err != nil {
		t.Fatalf("nil limiter must allow: %v", err)
	}
}

func TestPurposeRequestLimiterRedisDown(t *testing.T) {
	l, mr := newPurposeLimiterTest(t, PurposeRequestConfig{Enabled: true, MaxRequests: 1, Window: time.Minute})
	mr.Close()
	if err := l.Check(context.Background(), "password_reset", "a1"); !errors.Is(err, ErrPurposeRequestRedisUnavailable) {
		t.Fatalf("expected ErrPurposeRequestRedisUnavailable, got %v", err)
	}
}
