// Package config loads the identityd process settings from the environment
// and command-line flags and turns them into an engine configuration.
package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/admission"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the identityd process configuration. Flags override
// environment variables, which override the defaults.
type Config struct {
	HTTPAddr        string        `env:"GOIDENTITY_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"GOIDENTITY_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Dev bool `env:"GOIDENTITY_DEV"`

	RedisAddr     string `env:"GOIDENTITY_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"GOIDENTITY_REDIS_PASSWORD"`
	RedisDB       int    `env:"GOIDENTITY_REDIS_DB"`

	Store       string `env:"GOIDENTITY_STORE" envDefault:"sqlite"`
	DatabaseURL string `env:"GOIDENTITY_DATABASE_URL" envDefault:"goidentity.db"`

	JWTSigningMethod  string        `env:"GOIDENTITY_JWT_SIGNING_METHOD" envDefault:"ed25519"`
	JWTPrivateKeyFile string        `env:"GOIDENTITY_JWT_PRIVATE_KEY_FILE"`
	JWTPublicKeyFile  string        `env:"GOIDENTITY_JWT_PUBLIC_KEY_FILE"`
	JWTSecret         string        `env:"GOIDENTITY_JWT_SECRET"`
	JWTKeyID          string        `env:"GOIDENTITY_JWT_KEY_ID"`
	Issuer            string        `env:"GOIDENTITY_ISSUER" envDefault:"goidentity"`
	AccessTTL         time.Duration `env:"GOIDENTITY_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL        time.Duration `env:"GOIDENTITY_REFRESH_TTL" envDefault:"168h"`
	PurposeTTL        time.Duration `env:"GOIDENTITY_PURPOSE_TTL" envDefault:"24h"`

	LinkBaseURL string `env:"GOIDENTITY_LINK_BASE_URL"`
	ExposeLinks bool   `env:"GOIDENTITY_EXPOSE_LINKS"`

	LogFormat string `env:"GOIDENTITY_LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"GOIDENTITY_LOG_LEVEL" envDefault:"info"`
	AuditFile string `env:"GOIDENTITY_AUDIT_FILE"`

	MetricsEnabled bool `env:"GOIDENTITY_METRICS_ENABLED" envDefault:"true"`

	AdmissionEnabled       bool          `env:"GOIDENTITY_ADMISSION_ENABLED" envDefault:"true"`
	AdmissionRedis         bool          `env:"GOIDENTITY_ADMISSION_REDIS" envDefault:"true"`
	AdmissionAnonymous     int           `env:"GOIDENTITY_ADMISSION_ANONYMOUS" envDefault:"10"`
	AdmissionAuthenticated int           `env:"GOIDENTITY_ADMISSION_AUTHENTICATED" envDefault:"30"`
	AdmissionWindow        time.Duration `env:"GOIDENTITY_ADMISSION_WINDOW" envDefault:"1m"`
	AdmissionGlobal        bool          `env:"GOIDENTITY_ADMISSION_GLOBAL"`
}

// Load reads the environment and then parses args (without the program
// name). pflag.ErrHelp is returned as is when --help is given.
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("identityd", pflag.ContinueOnError)
	cfg.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if cfg.Dev && !fs.Changed("store") && os.Getenv("GOIDENTITY_STORE") == "" {
		cfg.Store = StoreMemory
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AddFlags registers every setting on fs, defaulting to the current values.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.HTTPAddr, "addr", c.HTTPAddr, "HTTP listen address")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development mode: embedded Redis, in-memory store unless --store is set, ephemeral signing key")

	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	fs.StringVar(&c.Store, "store", c.Store, "credential store: memory, sqlite or postgres")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "SQLite path or Postgres DSN")

	fs.StringVar(&c.JWTSigningMethod, "jwt-signing-method", c.JWTSigningMethod, "ed25519 or hs256")
	fs.StringVar(&c.JWTPrivateKeyFile, "jwt-private-key-file", c.JWTPrivateKeyFile, "PEM Ed25519 private key")
	fs.StringVar(&c.JWTPublicKeyFile, "jwt-public-key-file", c.JWTPublicKeyFile, "PEM Ed25519 public key")
	fs.StringVar(&c.JWTKeyID, "jwt-key-id", c.JWTKeyID, "kid header for issued tokens")
	fs.StringVar(&c.Issuer, "issuer", c.Issuer, "iss claim")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "refresh token lifetime")
	fs.DurationVar(&c.PurposeTTL, "purpose-ttl", c.PurposeTTL, "confirmation and reset token lifetime")

	fs.StringVar(&c.LinkBaseURL, "link-base-url", c.LinkBaseURL, "base URL of links sent in notifications")
	fs.BoolVar(&c.ExposeLinks, "expose-links", c.ExposeLinks, "log notification links (development only)")

	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "json or text")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.AuditFile, "audit-file", c.AuditFile, "append audit events as JSON lines to this file (- for stdout)")

	fs.BoolVar(&c.MetricsEnabled, "metrics", c.MetricsEnabled, "collect metrics and serve /metrics")

	fs.BoolVar(&c.AdmissionEnabled, "admission", c.AdmissionEnabled, "enable per-caller admission control")
	fs.BoolVar(&c.AdmissionRedis, "admission-redis", c.AdmissionRedis, "share admission counters through Redis")
	fs.IntVar(&c.AdmissionAnonymous, "admission-anonymous", c.AdmissionAnonymous, "anonymous requests per window")
	fs.IntVar(&c.AdmissionAuthenticated, "admission-authenticated", c.AdmissionAuthenticated, "authenticated requests per window")
	fs.DurationVar(&c.AdmissionWindow, "admission-window", c.AdmissionWindow, "admission window")
	fs.BoolVar(&c.AdmissionGlobal, "admission-global", c.AdmissionGlobal, "one budget per tier instead of per caller")
}

// Validate checks settings that do not depend on the engine.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("addr must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown-timeout must be > 0")
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("database-url is required for the %s store", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.AdmissionEnabled {
		if err := c.AdmissionConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AdmissionConfig returns the admission limiter settings.
func (c Config) AdmissionConfig() admission.Config {
	return admission.Config{
		AnonymousLimit:     c.AdmissionAnonymous,
		AuthenticatedLimit: c.AdmissionAuthenticated,
		Window:             c.AdmissionWindow,
		Global:             c.AdmissionGlobal,
	}
}

// EngineConfig builds the engine configuration. In dev mode a missing
// Ed25519 key pair is generated and lives only as long as the process.
func (c Config) EngineConfig() (goIdentity.Config, error) {
	cfg := goIdentity.DefaultConfig()
	cfg.JWT.SigningMethod = c.JWTSigningMethod
	cfg.JWT.Issuer = c.Issuer
	cfg.JWT.KeyID = c.JWTKeyID
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Tokens.PurposeTTL = c.PurposeTTL
	cfg.Links.BaseURL = c.LinkBaseURL
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Audit.Enabled = c.AuditFile != ""

	switch c.JWTSigningMethod {
	case "hs256":
		if c.JWTSecret == "" {
			return goIdentity.Config{}, errors.New("GOIDENTITY_JWT_SECRET is required for hs256")
		}
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	case "ed25519":
		priv, pub, err := c.ed25519Keys()
		if err != nil {
			return goIdentity.Config{}, err
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	default:
		return goIdentity.Config{}, fmt.Errorf("unsupported jwt signing method %q", c.JWTSigningMethod)
	}

	if err := cfg.Validate(); err != nil {
		return goIdentity.Config{}, err
	}
	return cfg, nil
}

func (c Config) ed25519Keys() ([]byte, []byte, error) {
	if c.JWTPrivateKeyFile == "" && c.JWTPublicKeyFile == "" {
		if !c.Dev {
			return nil, nil, errors.New("jwt-private-key-file and jwt-public-key-file are required outside dev mode")
		}
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return priv, pub, nil
	}

	priv, err := os.ReadFile(c.JWTPrivateKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read jwt private key: %w", err)
	}
	pub, err := os.ReadFile(c.JWTPublicKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read jwt public key: %w", err)
	}
	return priv, pub, nil
}
