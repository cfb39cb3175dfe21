// identityd serves the goIdentity HTTP API.
//
// Settings come from GOIDENTITY_* environment variables and flags; run with
// --help for the list. --dev starts an embedded Redis, keeps accounts in
// memory and generates a throwaway signing key, so nothing but the binary
// is needed to try the API locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/admission"
	"github.com/MrEthical07/goIdentity/httpapi"
	"github.com/MrEthical07/goIdentity/internal/config"
	"github.com/MrEthical07/goIdentity/logging"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/MrEthical07/goIdentity/store/sqlstore"
)

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
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	builder := goIdentity.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithNotifier(goIdentity.NewLogNotifier(log, cfg.Dev || cfg.ExposeLinks)).
		WithLogger(log)

	if cfg.AuditFile != "" {
		w, closeAudit, err := openAuditFile(cfg.AuditFile)
		if err != nil {
			return err
		}
		defer closeAudit()
		builder = builder.WithAuditSink(goIdentity.NewJSONWriterSink(w))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	logStartup(ctx, log, engine, engineCfg)

	opts := httpapi.Options{Logger: log}
	if cfg.AdmissionEnabled {
		var backend admission.Backend = admission.NewMemoryBackend()
		if cfg.AdmissionRedis {
			backend = admission.NewRedisBackend(rdb)
		}
		limiter, err := admission.New(backend, cfg.AdmissionConfig())
		if err != nil {
			return err
		}
		opts.Limiter = limiter
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "store", cfg.Store, "dev", cfg.Dev)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRedis(ctx context.Context, cfg config.Config) (redis.UniversalClient, func(), error) {
	addr := cfg.RedisAddr
	var mr *miniredis.Miniredis
	if cfg.Dev {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		addr = mr.Addr()
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	if err := client.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, cleanup, nil
}

func openStore(ctx context.Context, cfg config.Config) (goIdentity.CredentialStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	case config.StoreSQLite, config.StorePostgres:
		dialect := sqlstore.DialectSQLite
		if cfg.Store == config.StorePostgres {
			dialect = sqlstore.DialectPostgres
		}
		s, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openAuditFile(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func logStartup(ctx context.Context, log logging.Logger, engine *goIdentity.Engine, cfg goIdentity.Config) {
	r := engine.SecurityReport()
	log.Info(ctx, "security report",
		"signing_algorithm", r.SigningAlgorithm,
		"access_ttl", r.AccessTTL,
		"refresh_ttl", r.RefreshTTL,
		"purpose_token_ttl", r.PurposeTokenTTL,
		"argon2_memory_kb", r.Argon2.Memory,
		"argon2_time", r.Argon2.Time,
		"policy_min_length", r.PolicyMinLength,
		"purpose_throttle", r.PurposeThrottleActive,
		"grant_revocation_on_change", r.GrantRevocationOnChange,
		"audit", r.AuditActive,
	)
	for _, w := range cfg.Lint() {
		log.Warn(ctx, "config lint", "code", w.Code, "message", w.Message)
	}
}
