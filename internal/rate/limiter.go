package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes one counted hit.
type Result struct {
	Count      int64
	Allowed    bool
	RetryAfter time.Duration
}

// Window counts hits per key in Redis fixed windows. A window opens on the
// first hit of a key and closes when its TTL runs out.
type Window struct {
	redis  redis.UniversalClient
	prefix string
}

// NewWindow creates a fixed-window counter whose keys live under prefix.
func NewWindow(redisClient redis.UniversalClient, prefix string) *Window {
	return &Window{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Hit counts one request for key and reports whether it fits in limit.
// RetryAfter is set only for rejected hits.
func (w *Window) Hit(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if w == nil {
		return Result{Allowed: true}, nil
	}
	if window <= 0 {
		return Result{}, errors.New("rate window must be > 0")
	}

	fullKey := w.key(key)
	count, err := w.incrementWithTTL(ctx, fullKey, window)
	if err != nil {
		return Result{}, err
	}

	res := Result{Count: count, Allowed: count <= int64(limit)}
	if !res.Allowed {
		ttl, err := w.redis.PTTL(ctx, fullKey).Result()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if ttl < 0 {
			// Lost EXPIRE after INCR; re-arm so the key cannot stick forever.
			if err := w.redis.PExpire(ctx, fullKey, window).Err(); err != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			ttl = window
		}
		res.RetryAfter = ttl
	}

	return res, nil
}

func (w *Window) key(key string) string {
	if w.prefix == "" {
		return key
	}
	return w.prefix + ":" + key
}

func (w *Window) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
