package goIdentity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/store/memory"
)

const testPassword = "Abcd123!"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Notify.Workers = 1
	return cfg
}

// captureNotifier records every delivered notification.
type captureNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	ready chan struct{}
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ready: make(chan struct{}, 64)}
}

func (n *captureNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
	select {
	case n.ready <- struct{}{}:
	default:
	}
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// wait blocks until a notification of kind arrives for to and returns it.
func (n *captureNotifier) wait(t *testing.T, kind PurposeKind, to string) Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		for i := len(n.sent) - 1; i >= 0; i-- {
			if n.sent[i].Purpose == kind && n.sent[i].To == to {
				msg := n.sent[i]
				n.sent = append(n.sent[:i], n.sent[i+1:]...)
				n.mu.Unlock()
				return msg
			}
		}
		n.mu.Unlock()

		select {
		case <-n.ready:
		case <-deadline:
			t.Fatalf("no %s notification for %s", kind, to)
			return Notification{}
		}
	}
}

type engineTest struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	store    *memory.Store
	notifier *captureNotifier
}

func newEngineTest(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *engineTest {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	et := &engineTest{
		mr:       mr,
		rdb:      rdb,
		store:    memory.New(),
		notifier: newCaptureNotifier(),
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(et.store).
		WithNotifier(et.notifier)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	et.engine = engine

	return et
}

// registerConfirmed registers email and confirms it through the notified
// token. It returns the account id.
func (et *engineTest) registerConfirmed(t *testing.T, email string) string {
	t.Helper()

	id := et.register(t, email)
	token := et.notifier.wait(t, PurposeEmailConfirmation, email).Link
	if err := et.engine.ConfirmEmail(context.Background(), id, token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	return id
}

func (et *engineTest) register(t *testing.T, email string) string {
	t.Helper()

	res, err := et.engine.Register(context.Background(), "A", "B", email, testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res.AccountID
}

func (et *engineTest) login(t *testing.T, email, password string) TokenSet {
	t.Helper()

	set, err := et.engine.Exchange(context.Background(), GrantRequest{
		GrantType: GrantPassword,
		UserName:  email,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("password grant failed: %v", err)
	}
	return set
}
