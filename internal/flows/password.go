package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// RunRequestPasswordReset sends a password-reset token to email when it
// belongs to a confirmed account.
//
// The result never reveals whether the email exists: a missing account, an
// unconfirmed one and a throttled request all return nil without touching the
// issuer, after SleepEnumerationDelay stands in for the token write they
// skipped. Only malformed input and store outages are reported.
func RunRequestPasswordReset(ctx context.Context, email string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if err := validateInput(emailInput{Email: email}); err != nil {
		return err
	}

	suppressed := func(accountID, reason string) error {
		if err := deps.SleepEnumerationDelay(ctx); err != nil {
			return err
		}
		deps.MetricInc(deps.Metrics.PasswordResetSuppressed)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, accountID, nil, func() map[string]string {
			return map[string]string{
				"enumeration_safe": "true",
				"suppressed":       reason,
			}
		})
		return nil
	}

	acct, err := deps.Store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return suppressed("", "unknown_account")
		}
		return mapStoreError(err)
	}
	if !acct.EmailConfirmed {
		return suppressed(acct.ID, "unconfirmed")
	}

	allowed, err := deps.AllowPurposeRequest(ctx, domain.PurposePasswordReset, acct.ID)
	if err != nil || !allowed {
		deps.MetricInc(deps.Metrics.PurposeRequestThrottled)
		return suppressed(acct.ID, "throttled")
	}

	if err := issueAndNotify(ctx, &deps, domain.PurposePasswordReset, acct.ID, acct.Email, ""); err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, acct.ID, err, nil)
		return nil
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, acct.ID, nil, nil)
	return nil
}

// RunConfirmPasswordReset consumes a password-reset token for accountID and
// replaces the password. The policy is checked first so a weak candidate
// leaves the token usable.
func RunConfirmPasswordReset(ctx context.Context, accountID, token, newPassword string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	fail := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, accountID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if _, err := findAccount(ctx, deps.Store, accountID); err != nil {
		return fail(err, "lookup")
	}
	if violations := deps.CheckPolicy(newPassword); len(violations) > 0 {
		return fail(&domain.PolicyError{Violations: violations}, "password_policy")
	}
	if _, err := consumePurpose(ctx, deps.Issuer, domain.PurposePasswordReset, accountID, token); err != nil {
		return fail(err, "token")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(fmt.Errorf("hash password: %w", err), "hash")
	}
	stamp, err := deps.NewSecurityStamp()
	if err != nil {
		return fail(fmt.Errorf("security stamp: %w", err), "stamp")
	}

	_, err = Commit(ctx, deps.Store, accountID, deps.MaxCommitAttempts, func(acct domain.Account) (domain.Account, error) {
		return Apply(acct, Change{
			Transition:    TransitionResetPassword,
			PasswordHash:  hash,
			SecurityStamp: stamp,
		})
	})
	if err != nil {
		return fail(err, "commit")
	}

	revokeAfterCredentialChange(ctx, &deps, deps.Events.PasswordResetConfirm, accountID)

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, accountID, nil, nil)
	return nil
}

// RunChangePassword replaces the password of an authenticated account after
// verifying currentPassword. If the stored hash changes between the check and
// the write, currentPassword is verified again against the new hash.
func RunChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	fail := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, accountID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	acct, err := findAccount(ctx, deps.Store, accountID)
	if err != nil {
		return fail(err, "lookup")
	}
	if err := verifyCurrent(deps.VerifyPassword, currentPassword, acct.PasswordHash); err != nil {
		return fail(err, "current_password")
	}
	if violations := deps.CheckPolicy(newPassword); len(violations) > 0 {
		return fail(&domain.PolicyError{Violations: violations}, "password_policy")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(fmt.Errorf("hash password: %w", err), "hash")
	}
	stamp, err := deps.NewSecurityStamp()
	if err != nil {
		return fail(fmt.Errorf("security stamp: %w", err), "stamp")
	}

	verifiedHash := acct.PasswordHash
	_, err = Commit(ctx, deps.Store, accountID, deps.MaxCommitAttempts, func(current domain.Account) (domain.Account, error) {
		if current.PasswordHash != verifiedHash {
			if err := verifyCurrent(deps.VerifyPassword, currentPassword, current.PasswordHash); err != nil {
				return current, err
			}
			verifiedHash = current.PasswordHash
		}
		return Apply(current, Change{
			Transition:    TransitionChangePassword,
			PasswordHash:  hash,
			SecurityStamp: stamp,
		})
	})
	if err != nil {
		return fail(err, "commit")
	}

	revokeAfterCredentialChange(ctx, &deps, deps.Events.PasswordChange, accountID)

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, accountID, nil, nil)
	return nil
}

func verifyCurrent(verify func(string, string) (bool, error), password, encodedHash string) error {
	if password == "" {
		return domain.ErrInvalidCredential
	}
	ok, err := verify(password, encodedHash)
	if err != nil || !ok {
		return domain.ErrInvalidCredential
	}
	return nil
}

// revokeAfterCredentialChange drops outstanding refresh grants. The rotated
// security stamp already blocks them on the next refresh, so a failure here
// is audited and otherwise ignored.
func revokeAfterCredentialChange(ctx context.Context, deps *AccountDeps, event, accountID string) {
	if err := deps.RevokeGrants(ctx, accountID); err != nil {
		deps.EmitAudit(ctx, event, true, accountID, err, func() map[string]string {
			return map[string]string{"grant_revocation": "failed"}
		})
	}
}
