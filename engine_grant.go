package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Exchange runs a token endpoint grant.
//
// The password grant fails with [ErrForbidden] for an unknown email, a wrong
// password and an unconfirmed account alike. The refresh_token grant
// consumes the presented token and fails with [ErrForbidden] when the token
// is invalid or reused, or when the account changed its credentials since.
// Other grant types fail with [ErrUnsupportedGrant].
func (e *Engine) Exchange(ctx context.Context, req GrantRequest) (TokenSet, error) {
	start := time.Now()
	set, err := flows.RunExchange(ctx, req, e.grantDeps())
	if e.metrics != nil {
		e.metrics.Observe(MetricGrantLatency, time.Since(start))
	}
	e.logFailure(ctx, "exchange", err)
	return set, err
}

// Logout revokes refreshToken when one is given. It always succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	return flows.RunLogout(ctx, refreshToken, e.grantDeps())
}

// AuthenticateAccessToken verifies a bearer access token. Every failure is
// [ErrInvalidToken].
func (e *Engine) AuthenticateAccessToken(ctx context.Context, token string) (ClaimsPrincipal, error) {
	return flows.RunAuthenticateAccess(ctx, token, e.grantDeps())
}
