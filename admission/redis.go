package admission

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

// RedisBackend shares budgets across replicas through Redis fixed windows
// under the "gia" key prefix.
type RedisBackend struct {
	window *rate.Window
}

// NewRedisBackend returns a backend counting in redisClient.
func NewRedisBackend(redisClient redis.UniversalClient) *RedisBackend {
	return &RedisBackend{window: rate.NewWindow(redisClient, "gia")}
}

func (r *RedisBackend) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := r.window.Hit(ctx, key, limit, window)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: res.Allowed, RetryAfter: res.RetryAfter}, nil
}
