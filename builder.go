package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/notify"
	"github.com/MrEthical07/goIdentity/logging"
	"github.com/MrEthical07/goIdentity/password"
)

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	issuer    TokenIssuer
	notifier  Notifier
	auditSink AuditSink
	logger    logging.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the default [TokenIssuer] and the
// purpose request throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithTokenIssuer replaces the Redis and JWT backed default issuer.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.issuer = issuer
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log logging.Logger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. Background
// workers start here; release them with [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.issuer == nil && b.redis == nil {
		return nil, errors.New("redis client required for the default token issuer")
	}
	if cfg.PurposeRequests.Enabled && b.redis == nil {
		return nil, errors.New("PurposeRequests throttle requires redis client")
	}

	log := b.logger
	if log == nil {
		log = logging.Nop()
	}

	// -------- TOKEN ISSUER --------
	issuer := b.issuer
	if issuer == nil {
		defaultIssuer, err := NewTokenIssuer(b.redis, cfg)
		if err != nil {
			return nil, err
		}
		issuer = defaultIssuer
	}

	// -------- PASSWORD HASHING --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		store:        b.store,
		issuer:       issuer,
		passwordHash: ph,
		policy: password.Policy{
			MinLength:      cfg.PasswordPolicy.MinLength,
			RequireUpper:   cfg.PasswordPolicy.RequireUpper,
			RequireLower:   cfg.PasswordPolicy.RequireLower,
			RequireDigit:   cfg.PasswordPolicy.RequireDigit,
			RequireSymbol:  cfg.PasswordPolicy.RequireSymbol,
			MaxPasswordLen: ph.MaxPasswordBytes(),
		},
		log:       log,
		buildLink: linkBuilder(cfg.Links),
		now:       time.Now,
	}

	if cfg.Security.DummyPasswordHashing {
		secret, err := internal.NewSecret()
		if err != nil {
			return nil, err
		}
		dummy, err := ph.Hash(internal.EncodeOpaqueToken(internal.RecordID{}, secret))
		if err != nil {
			return nil, err
		}
		engine.dummyHash = dummy
	}

	if revoker, ok := issuer.(SubjectRevoker); ok {
		engine.revoker = revoker
	}
	switch p := issuer.(type) {
	case interface{ Ping(context.Context) error }:
		engine.ping = p.Ping
	default:
		if b.redis != nil {
			engine.ping = func(ctx context.Context) error {
				return b.redis.Ping(ctx).Err()
			}
		}
	}

	// -------- THROTTLE, NOTIFY, AUDIT, METRICS --------
	if cfg.PurposeRequests.Enabled {
		engine.purposeLimiter = limiters.NewPurposeRequestLimiter(b.redis, limiters.PurposeRequestConfig{
			Enabled:     true,
			MaxRequests: cfg.PurposeRequests.MaxRequests,
			Window:      cfg.PurposeRequests.Window,
		})
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NewLogNotifier(log, false)
	}
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.outbox = notify.NewOutbox(notify.Config{
		BufferSize:  cfg.Notify.BufferSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	}, notifier, engine.onNotifyError)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
