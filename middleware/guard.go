package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// Authenticator verifies bearer access tokens. *goIdentity.Engine satisfies it.
type Authenticator interface {
	AuthenticateAccessToken(ctx context.Context, token string) (goIdentity.ClaimsPrincipal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal recorded by [Authenticate] or
// [Guard].
func PrincipalFromContext(ctx context.Context) (goIdentity.ClaimsPrincipal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(goIdentity.ClaimsPrincipal)
	return p, ok
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p goIdentity.ClaimsPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Authenticate records the principal of a valid bearer token. Requests with
// no token or an invalid one pass through anonymously.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := PrincipalFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			p, err := auth.AuthenticateAccessToken(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Guard rejects requests without a valid bearer token with 401. A principal
// already recorded by [Authenticate] is reused.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if auth == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized.")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized.")
				return
			}

			p, err := auth.AuthenticateAccessToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
