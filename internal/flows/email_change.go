package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// RunRequestEmailChange sends an email-change token bound to (accountID,
// newEmail) to the new address.
func RunRequestEmailChange(ctx context.Context, accountID, newEmail string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	newEmail = strings.TrimSpace(newEmail)
	if err := validateInput(newEmailInput{NewEmail: newEmail}); err != nil {
		return err
	}

	acct, err := findAccount(ctx, deps.Store, accountID)
	if err != nil {
		return err
	}
	if err := CanChangeEmail(acct, newEmail); err != nil {
		deps.EmitAudit(ctx, deps.Events.EmailChangeRequest, false, accountID, err, nil)
		return err
	}

	allowed, err := deps.AllowPurposeRequest(ctx, domain.PurposeEmailChange, acct.ID)
	if err != nil {
		return err
	}
	if !allowed {
		deps.MetricInc(deps.Metrics.PurposeRequestThrottled)
		deps.EmitAudit(ctx, deps.Events.EmailChangeRequest, false, accountID, domain.ErrRateLimited, nil)
		return domain.ErrRateLimited
	}

	if err := issueAndNotify(ctx, &deps, domain.PurposeEmailChange, acct.ID, newEmail, newEmail); err != nil {
		deps.EmitAudit(ctx, deps.Events.EmailChangeRequest, false, accountID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.EmailChangeRequest)
	deps.EmitAudit(ctx, deps.Events.EmailChangeRequest, true, accountID, nil, nil)
	return nil
}

// RunConfirmEmailChange consumes an email-change token and moves the account
// to newEmail. The token must have been issued for exactly newEmail.
//
// A precondition that no longer holds at commit time (the account already
// moved to that address through another token) is reported as
// [domain.ErrInvalidToken]; a uniqueness clash with another account is
// [domain.ErrConflict].
func RunConfirmEmailChange(ctx context.Context, accountID, newEmail, token string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	fail := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.EmailChangeFailure)
		deps.EmitAudit(ctx, deps.Events.EmailChangeConfirm, false, accountID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if _, err := findAccount(ctx, deps.Store, accountID); err != nil {
		return fail(err, "lookup")
	}
	claims, err := consumePurpose(ctx, deps.Issuer, domain.PurposeEmailChange, accountID, token)
	if err != nil {
		return fail(err, "token")
	}
	if newEmail == "" || claims.Extra != newEmail {
		return fail(domain.ErrInvalidToken, "email_mismatch")
	}

	stamp, err := deps.NewSecurityStamp()
	if err != nil {
		return fail(err, "stamp")
	}

	_, err = Commit(ctx, deps.Store, accountID, deps.MaxCommitAttempts, func(acct domain.Account) (domain.Account, error) {
		return Apply(acct, Change{
			Transition:    TransitionChangeEmail,
			Email:         newEmail,
			SecurityStamp: stamp,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrPreconditionFailed) {
			return fail(domain.ErrInvalidToken, "precondition")
		}
		return fail(err, "commit")
	}

	deps.MetricInc(deps.Metrics.EmailChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailChangeConfirm, true, accountID, nil, nil)
	return nil
}
