package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

var (
	ErrPurposeRequestRateLimited      = errors.New("purpose request rate limited")
	ErrPurposeRequestRedisUnavailable = errors.New("purpose request redis unavailable")
)

// PurposeRequestConfig bounds how many purpose tokens one account may
// request per window.
type PurposeRequestConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// PurposeRequestLimiter throttles token-producing requests (confirmation
// resend, password reset, email change) per account and purpose.
type PurposeRequestLimiter struct {
	window *rate.Window
	config PurposeRequestConfig
}

func NewPurposeRequestLimiter(redisClient redis.UniversalClient, cfg PurposeRequestConfig) *PurposeRequestLimiter {
	return &PurposeRequestLimiter{
		window: rate.NewWindow(redisClient, "gipr"),
		config: cfg,
	}
}

// Check counts one request. It returns [ErrPurposeRequestRateLimited] once
// the account exhausted its budget for purpose.
func (l *PurposeRequestLimiter) Check(ctx context.Context, purpose, accountID string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	res, err := l.window.Hit(ctx, purposeRequestKey(purpose, accountID), l.config.MaxRequests, l.config.Window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPurposeRequestRedisUnavailable, err)
	}
	if !res.Allowed {
		return ErrPurposeRequestRateLimited
	}
	return nil
}

func purposeRequestKey(purpose, accountID string) string {
	return purpose + ":" + accountID
}
