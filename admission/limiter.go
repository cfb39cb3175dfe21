package admission

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// Tier selects the budget a request is charged against.
type Tier uint8

const (
	TierAnonymous Tier = iota
	TierAuthenticated
)

func (t Tier) String() string {
	switch t {
	case TierAnonymous:
		return "anonymous"
	case TierAuthenticated:
		return "authenticated"
	default:
		return "tier" + strconv.Itoa(int(t))
	}
}

// Config holds the per-tier budgets.
type Config struct {
	AnonymousLimit     int
	AuthenticatedLimit int
	Window             time.Duration
	// Global charges every caller of a tier to one shared budget instead of
	// one budget per caller.
	Global bool
}

// DefaultConfig returns 10 anonymous and 30 authenticated requests per
// minute, partitioned per caller.
func DefaultConfig() Config {
	return Config{
		AnonymousLimit:     10,
		AuthenticatedLimit: 30,
		Window:             time.Minute,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.AnonymousLimit <= 0 {
		return errors.New("admission AnonymousLimit must be > 0")
	}
	if c.AuthenticatedLimit <= 0 {
		return errors.New("admission AuthenticatedLimit must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("admission Window must be > 0")
	}
	return nil
}

// Decision is a backend's verdict on one hit.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Backend counts hits per key in fixed windows.
type Backend interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// RejectedError is returned by [Limiter.Acquire] when the budget is spent.
// It unwraps to [domain.ErrRateLimited].
type RejectedError struct {
	Tier       Tier
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s tier, retry after %s", domain.ErrRateLimited, e.Tier, e.RetryAfter)
}

func (e *RejectedError) Unwrap() error {
	return domain.ErrRateLimited
}

// ErrBackendUnavailable wraps backend failures.
var ErrBackendUnavailable = errors.New("admission backend unavailable")

// Limiter admits or rejects requests per tier.
type Limiter struct {
	backend  Backend
	config   Config
	inFlight atomic.Int64
}

// New returns a Limiter charging cfg's budgets against backend.
func New(backend Backend, cfg Config) (*Limiter, error) {
	if backend == nil {
		return nil, errors.New("admission backend required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{backend: backend, config: cfg}, nil
}

// Acquire charges one request of key against tier. The window budget is spent
// on acquire; releasing the lease only returns the in-flight slot.
func (l *Limiter) Acquire(ctx context.Context, tier Tier, key string) (*Lease, error) {
	limit := l.limit(tier)
	if limit <= 0 {
		return nil, fmt.Errorf("unknown admission tier %s", tier)
	}

	d, err := l.backend.Hit(ctx, l.partition(tier, key), limit, l.config.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !d.Allowed {
		return nil, &RejectedError{Tier: tier, RetryAfter: d.RetryAfter}
	}

	l.inFlight.Add(1)
	return &Lease{limiter: l}, nil
}

// InFlight is the number of leases not yet released.
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}

func (l *Limiter) limit(tier Tier) int {
	switch tier {
	case TierAnonymous:
		return l.config.AnonymousLimit
	case TierAuthenticated:
		return l.config.AuthenticatedLimit
	default:
		return 0
	}
}

func (l *Limiter) partition(tier Tier, key string) string {
	if l.config.Global || key == "" {
		return tier.String()
	}
	return tier.String() + ":" + key
}

// Lease is one admitted request. Release is safe to call more than once.
type Lease struct {
	limiter *Limiter
	once    sync.Once
}

func (le *Lease) Release() {
	if le == nil {
		return
	}
	le.once.Do(func() {
		le.limiter.inFlight.Add(-1)
	})
}
