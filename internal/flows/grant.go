package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// RunExchange classifies a token endpoint request and, when the account is
// eligible, asks the issuer for a token set. Unconfirmed accounts never get
// a token through either grant.
func RunExchange(ctx context.Context, req domain.GrantRequest, deps GrantDeps) (domain.TokenSet, error) {
	normalizeGrantDeps(&deps)
	if !deps.ready() {
		return domain.TokenSet{}, domain.ErrEngineNotReady
	}

	switch req.GrantType {
	case domain.GrantPassword:
		return runPasswordGrant(ctx, req, &deps)
	case domain.GrantRefreshToken:
		return runRefreshGrant(ctx, req, &deps)
	default:
		deps.MetricInc(deps.Metrics.UnsupportedGrant)
		return domain.TokenSet{}, domain.ErrUnsupportedGrant
	}
}

func runPasswordGrant(ctx context.Context, req domain.GrantRequest, deps *GrantDeps) (domain.TokenSet, error) {
	email := strings.TrimSpace(req.UserName)
	if email == "" || req.Password == "" {
		deps.MetricInc(deps.Metrics.PasswordGrantFailure)
		return domain.TokenSet{}, &domain.FieldError{Fields: map[string]string{
			"username": "username and password are required",
		}}
	}

	forbid := func(accountID, reason string) (domain.TokenSet, error) {
		deps.MetricInc(deps.Metrics.PasswordGrantFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordGrant, false, accountID, domain.ErrForbidden, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return domain.TokenSet{}, domain.ErrForbidden
	}

	acct, err := deps.Store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return domain.TokenSet{}, mapStoreError(err)
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(req.Password, deps.DummyHash)
		}
		return forbid("", "unknown_account")
	}

	ok, err := deps.VerifyPassword(req.Password, acct.PasswordHash)
	if err != nil || !ok {
		return forbid(acct.ID, "bad_password")
	}
	if !acct.EmailConfirmed {
		return forbid(acct.ID, "unconfirmed")
	}

	upgradePasswordHash(ctx, deps, acct, req.Password)

	set, err := issueTokenSet(ctx, deps.Issuer, domain.ClaimsPrincipal{
		Subject: acct.ID,
		Name:    acct.UserName,
		Scopes:  domain.PasswordGrantScopes(),
	}, acct.SecurityStamp)
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordGrantFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordGrant, false, acct.ID, err, nil)
		return domain.TokenSet{}, err
	}

	deps.MetricInc(deps.Metrics.PasswordGrantSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordGrant, true, acct.ID, nil, nil)
	return set, nil
}

var errPasswordHashChanged = errors.New("password hash changed since verification")

// upgradePasswordHash rehashes password with the current cost parameters
// when acct's stored hash is weaker. It never fails the grant; the write is
// skipped when the hash changed after it was verified.
func upgradePasswordHash(ctx context.Context, deps *GrantDeps, acct domain.Account, password string) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil {
		return
	}
	needsUpgrade, err := deps.PasswordNeedsUpgrade(acct.PasswordHash)
	if err != nil || !needsUpgrade {
		return
	}

	upgraded, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn(ctx, "password hash upgrade generation failed", "account_id", acct.ID, "error", err)
		return
	}

	_, err = Commit(ctx, deps.Store, acct.ID, deps.MaxCommitAttempts, func(current domain.Account) (domain.Account, error) {
		if current.PasswordHash != acct.PasswordHash {
			return domain.Account{}, errPasswordHashChanged
		}
		current.PasswordHash = upgraded
		return current, nil
	})
	if err != nil && !errors.Is(err, errPasswordHashChanged) {
		deps.Warn(ctx, "password hash upgrade update failed", "account_id", acct.ID, "error", err)
	}
}

func runRefreshGrant(ctx context.Context, req domain.GrantRequest, deps *GrantDeps) (domain.TokenSet, error) {
	if req.RefreshToken == "" {
		deps.MetricInc(deps.Metrics.RefreshGrantFailure)
		return domain.TokenSet{}, &domain.FieldError{Fields: map[string]string{
			"refresh_token": "refresh_token is required",
		}}
	}

	forbid := func(accountID, reason string) (domain.TokenSet, error) {
		deps.MetricInc(deps.Metrics.RefreshGrantFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshGrant, false, accountID, domain.ErrForbidden, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return domain.TokenSet{}, domain.ErrForbidden
	}

	principal, err := deps.Issuer.AuthenticateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRefreshTokenInvalid):
			return forbid("", "invalid_refresh_token")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.TokenSet{}, err
		default:
			return domain.TokenSet{}, fmt.Errorf("%w: %v", domain.ErrIssuerUnavailable, err)
		}
	}
	if principal.Subject == "" {
		return forbid("", "missing_subject")
	}

	acct, err := deps.Store.FindByID(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return forbid(principal.Subject, "unknown_account")
		}
		return domain.TokenSet{}, mapStoreError(err)
	}
	if !acct.EmailConfirmed {
		return forbid(acct.ID, "unconfirmed")
	}
	if principal.SecurityStamp != acct.SecurityStamp {
		return forbid(acct.ID, "security_stamp")
	}

	scopes := make([]string, len(principal.Scopes))
	copy(scopes, principal.Scopes)

	set, err := issueTokenSet(ctx, deps.Issuer, domain.ClaimsPrincipal{
		Subject: acct.ID,
		Name:    acct.UserName,
		Scopes:  scopes,
	}, acct.SecurityStamp)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshGrantFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshGrant, false, acct.ID, err, nil)
		return domain.TokenSet{}, err
	}

	deps.MetricInc(deps.Metrics.RefreshGrantSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshGrant, true, acct.ID, nil, nil)
	return set, nil
}

// RunLogout revokes refreshToken when one is given. It always succeeds from
// the caller's point of view.
func RunLogout(ctx context.Context, refreshToken string, deps GrantDeps) error {
	normalizeGrantDeps(&deps)
	if deps.Issuer == nil {
		return domain.ErrEngineNotReady
	}

	deps.MetricInc(deps.Metrics.Logout)
	if refreshToken == "" {
		deps.EmitAudit(ctx, deps.Events.Logout, true, "", nil, nil)
		return nil
	}

	if err := deps.Issuer.RevokeRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, domain.ErrRefreshTokenInvalid) {
		deps.EmitAudit(ctx, deps.Events.Logout, true, "", err, func() map[string]string {
			return map[string]string{"revocation": "failed"}
		})
		return nil
	}

	deps.EmitAudit(ctx, deps.Events.Logout, true, "", nil, nil)
	return nil
}

// RunAuthenticateAccess verifies a bearer access token.
func RunAuthenticateAccess(ctx context.Context, token string, deps GrantDeps) (domain.ClaimsPrincipal, error) {
	if deps.Issuer == nil {
		return domain.ClaimsPrincipal{}, domain.ErrEngineNotReady
	}
	if token == "" {
		return domain.ClaimsPrincipal{}, domain.ErrInvalidToken
	}

	principal, err := deps.Issuer.AuthenticateAccessToken(ctx, token)
	if err != nil {
		return domain.ClaimsPrincipal{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if principal.Subject == "" {
		return domain.ClaimsPrincipal{}, domain.ErrInvalidToken
	}
	return principal, nil
}

func issueTokenSet(ctx context.Context, issuer domain.TokenIssuer, principal domain.ClaimsPrincipal, stamp string) (domain.TokenSet, error) {
	set, err := issuer.IssueTokenSet(ctx, principal, stamp)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.TokenSet{}, err
		}
		return domain.TokenSet{}, fmt.Errorf("%w: %v", domain.ErrIssuerUnavailable, err)
	}
	return set, nil
}
