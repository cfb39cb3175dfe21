package goIdentity

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig] and
// override what differs; [Builder.Build] validates it.
type Config struct {
	JWT             JWTConfig
	Tokens          TokenConfig
	Password        PasswordConfig
	PasswordPolicy  PasswordPolicyConfig
	PurposeRequests PurposeRequestConfig
	Links           LinkConfig
	Notify          NotifyConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
	Security        SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and ID token signing. RefreshTTL bounds the
// lifetime of opaque refresh grants.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	IDTokenTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls purpose tokens and the Redis key layout of the
// default [TokenIssuer].
type TokenConfig struct {
	PurposeTTL    time.Duration
	PurposePrefix string
	RefreshPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin rehashes a stored password with the parameters above
	// after a successful password grant when it was hashed more cheaply.
	UpgradeOnLogin bool
}

// PasswordPolicyConfig lists the strength rules for new passwords.
type PasswordPolicyConfig struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

/*
====================================
PURPOSE REQUEST CONFIG
====================================
*/

// PurposeRequestConfig throttles token-producing requests (confirmation
// resend, password reset, email change) per account and purpose.
type PurposeRequestConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

/*
====================================
LINK CONFIG
====================================
*/

// LinkConfig builds the links handed to the [Notifier]. An empty BaseURL
// makes the link the bare token.
type LinkConfig struct {
	BaseURL                string
	ConfirmEmailPath       string
	ResetPasswordPath      string
	ConfirmEmailChangePath string
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls the asynchronous notification outbox.
type NotifyConfig struct {
	BufferSize  int
	Workers     int
	SendTimeout time.Duration
}

/*
====================================
AUDIT & METRICS CONFIG
====================================
*/

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds consistency and revocation knobs.
type SecurityConfig struct {
	// MaxCommitAttempts bounds the optimistic retry loop of account updates.
	MaxCommitAttempts int
	// RevokeGrantsOnCredentialChange drops every refresh grant of an account
	// after a password reset or change. The security stamp check rejects
	// those grants either way.
	RevokeGrantsOnCredentialChange bool
	// DummyPasswordHashing verifies a throwaway hash when a password grant
	// names an unknown account.
	DummyPasswordHashing bool
}

// DefaultConfig returns the recommended configuration. JWT keys are not set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			IDTokenTTL:    15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "goidentity",
		},
		Tokens: TokenConfig{
			PurposeTTL:    24 * time.Hour,
			PurposePrefix: "gip",
			RefreshPrefix: "gig",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireDigit:  true,
			RequireSymbol: true,
		},
		PurposeRequests: PurposeRequestConfig{
			Enabled:     true,
			MaxRequests: 3,
			Window:      15 * time.Minute,
		},
		Links: LinkConfig{
			ConfirmEmailPath:       "/connect/confirm-email",
			ResetPasswordPath:      "/reset-password",
			ConfirmEmailChangePath: "/connect/confirm-email-change",
		},
		Notify: NotifyConfig{
			BufferSize:  256,
			Workers:     2,
			SendTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			MaxCommitAttempts:              3,
			RevokeGrantsOnCredentialChange: true,
			DummyPasswordHashing:           true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.IDTokenTTL < 0 {
		return errors.New("JWT IDTokenTTL must be >= 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}

	// Tokens
	if c.Tokens.PurposeTTL <= 0 {
		return errors.New("Tokens PurposeTTL must be > 0")
	}
	if strings.TrimSpace(c.Tokens.PurposePrefix) == "" || strings.TrimSpace(c.Tokens.RefreshPrefix) == "" {
		return errors.New("Tokens prefixes must not be empty")
	}
	if c.Tokens.PurposePrefix == c.Tokens.RefreshPrefix {
		return errors.New("Tokens PurposePrefix and RefreshPrefix must differ")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.PasswordPolicy.MinLength < 8 {
		return errors.New("PasswordPolicy MinLength must be >= 8")
	}

	// Purpose requests
	if c.PurposeRequests.Enabled {
		if c.PurposeRequests.MaxRequests <= 0 {
			return errors.New("PurposeRequests MaxRequests must be > 0")
		}
		if c.PurposeRequests.Window <= 0 {
			return errors.New("PurposeRequests Window must be > 0")
		}
	}

	// Links
	if c.Links.BaseURL != "" {
		u, err := url.Parse(c.Links.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Links BaseURL must be an absolute URL")
		}
	}

	// Notify
	if c.Notify.BufferSize <= 0 {
		return errors.New("Notify BufferSize must be > 0")
	}
	if c.Notify.Workers <= 0 {
		return errors.New("Notify Workers must be > 0")
	}
	if c.Notify.SendTimeout <= 0 {
		return errors.New("Notify SendTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Security
	if c.Security.MaxCommitAttempts <= 0 || c.Security.MaxCommitAttempts > 10 {
		return errors.New("Security MaxCommitAttempts must be between 1 and 10")
	}

	return nil
}
