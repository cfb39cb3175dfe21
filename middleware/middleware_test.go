package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/admission"
)

type fakeAuth map[string]string

func (f fakeAuth) AuthenticateAccessToken(_ context.Context, token string) (goIdentity.ClaimsPrincipal, error) {
	sub, ok := f[token]
	if !ok {
		return goIdentity.ClaimsPrincipal{}, goIdentity.ErrInvalidToken
	}
	return goIdentity.ClaimsPrincipal{Subject: sub}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		w.Header().Set("X-Subject", p.Subject)
		w.WriteHeader(http.StatusOK)
	})
}

func request(h http.Handler, remote, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/connect/user-info", nil)
	req.RemoteAddr = remote
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	h := Guard(fakeAuth{"good": "acct-1"})(okHandler())

	tests := []struct {
		authz string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer good", http.StatusOK},
		{"bearer good", http.StatusOK},
	}
	for _, tc := range tests {
		rec := request(h, "192.0.2.1:1234", tc.authz)
		if rec.Code != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.authz, tc.want, rec.Code)
		}
	}

	rec := request(h, "192.0.2.1:1234", "Bearer good")
	if rec.Header().Get("X-Subject") != "acct-1" {
		t.Fatalf("principal not propagated: %q", rec.Header().Get("X-Subject"))
	}
}

func TestAuthenticateNeverRejects(t *testing.T) {
	h := Authenticate(fakeAuth{"good": "acct-1"})(okHandler())

	if rec := request(h, "192.0.2.1:1", "Bearer bad"); rec.Code != http.StatusOK || rec.Header().Get("X-Subject") != "" {
		t.Fatalf("invalid token must pass anonymously, got %d %q", rec.Code, rec.Header().Get("X-Subject"))
	}
	if rec := request(h, "192.0.2.1:1", "Bearer good"); rec.Header().Get("X-Subject") != "acct-1" {
		t.Fatal("expected principal for a valid token")
	}
}

func newTestLimiter(t *testing.T, anon, authed int) *admission.Limiter {
	t.Helper()

	cfg := admission.DefaultConfig()
	cfg.AnonymousLimit = anon
	cfg.AuthenticatedLimit = authed
	l, err := admission.New(admission.NewMemoryBackend(), cfg)
	if err != nil {
		t.Fatalf("admission.New failed: %v", err)
	}
	return l
}

func TestAdmissionRejectsWithRetryAfter(t *testing.T) {
	l := newTestLimiter(t, 2, 5)
	var rejectedTiers []admission.Tier
	h := Authenticate(fakeAuth{"good": "acct-1"})(
		Admission(l, AdmissionOptions{OnReject: func(tier admission.Tier) {
			rejectedTiers = append(rejectedTiers, tier)
		}})(okHandler()),
	)

	for i := 0; i < 2; i++ {
		if rec := request(h, "192.0.2.1:1", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := request(h, "192.0.2.1:2", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// another IP and an authenticated caller have their own budgets
	if rec := request(h, "192.0.2.9:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("other IP: expected 200, got %d", rec.Code)
	}
	if rec := request(h, "192.0.2.1:1", "Bearer good"); rec.Code != http.StatusOK {
		t.Fatalf("authenticated: expected 200, got %d", rec.Code)
	}

	if len(rejectedTiers) != 1 || rejectedTiers[0] != admission.TierAnonymous {
		t.Fatalf("unexpected rejections: %v", rejectedTiers)
	}
	if l.InFlight() != 0 {
		t.Fatalf("leases leaked: %d", l.InFlight())
	}
}

type failingBackend struct{}

func (failingBackend) Hit(context.Context, string, int, time.Duration) (admission.Decision, error) {
	return admission.Decision{}, errors.New("down")
}

func TestAdmissionFailsOpen(t *testing.T) {
	l, err := admission.New(failingBackend{}, admission.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	h := Admission(l, AdmissionOptions{})(okHandler())

	if rec := request(h, "192.0.2.1:1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected backend failure to admit, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Fatalf("unexpected ip %q", got)
	}
	req.RemoteAddr = "unix"
	if got := ClientIP(req); got != "unix" {
		t.Fatalf("unexpected ip %q", got)
	}
}
