package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// RegisterRequest is the input of [RunRegister].
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// RegisterResult reports the created account. ConfirmationIssued is false
// when the account was stored but the confirmation token could not be
// produced; the caller can recover through resend-confirmation.
type RegisterResult struct {
	AccountID          string
	ConfirmationIssued bool
}

var errAlreadyConfirmed = &domain.PreconditionError{Reason: "Email already confirmed."}

// RunRegister creates an unconfirmed account whose username is its email and
// sends it an email-confirmation token.
func RunRegister(ctx context.Context, req RegisterRequest, deps AccountDeps) (RegisterResult, error) {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return RegisterResult{}, domain.ErrEngineNotReady
	}

	firstName, lastName := trimNames(req.FirstName, req.LastName)
	email := strings.TrimSpace(req.Email)
	if err := validateInput(registerInput{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  req.Password,
	}); err != nil {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", err, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return RegisterResult{}, err
	}

	if _, err := deps.Store.FindByEmail(ctx, email); err == nil {
		deps.MetricInc(deps.Metrics.RegisterDuplicate)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", domain.ErrConflict, func() map[string]string {
			return map[string]string{"reason": "duplicate"}
		})
		return RegisterResult{}, domain.ErrConflict
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return RegisterResult{}, mapStoreError(err)
	}

	if violations := deps.CheckPolicy(req.Password); len(violations) > 0 {
		policyErr := &domain.PolicyError{Violations: violations}
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.Register, false, "", policyErr, func() map[string]string {
			return map[string]string{"reason": "password_policy"}
		})
		return RegisterResult{}, policyErr
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}
	stamp, err := deps.NewSecurityStamp()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("security stamp: %w", err)
	}

	acct, err := deps.Store.Create(ctx, domain.Account{
		ID:             deps.NewAccountID(),
		UserName:       email,
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: false,
		FirstName:      firstName,
		LastName:       lastName,
		CreatedAt:      deps.Now().UTC(),
		SecurityStamp:  stamp,
	})
	if err != nil {
		mapped := mapStoreError(err)
		if errors.Is(mapped, domain.ErrConflict) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
		} else {
			deps.MetricInc(deps.Metrics.RegisterFailure)
		}
		deps.EmitAudit(ctx, deps.Events.Register, false, "", mapped, nil)
		return RegisterResult{}, mapped
	}

	result := RegisterResult{AccountID: acct.ID, ConfirmationIssued: true}
	if err := issueAndNotify(ctx, &deps, domain.PurposeEmailConfirmation, acct.ID, acct.Email, ""); err != nil {
		// The account exists now; a failed token only delays confirmation.
		result.ConfirmationIssued = false
		deps.EmitAudit(ctx, deps.Events.Register, true, acct.ID, err, func() map[string]string {
			return map[string]string{"confirmation": "not_issued"}
		})
		deps.MetricInc(deps.Metrics.RegisterSuccess)
		return result, nil
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, acct.ID, nil, nil)
	return result, nil
}

// RunConfirmEmail consumes an email-confirmation token bound to accountID and
// marks the email confirmed.
func RunConfirmEmail(ctx context.Context, accountID, token string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	fail := func(err error, reason string) error {
		deps.MetricInc(deps.Metrics.EmailConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.EmailConfirm, false, accountID, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if _, err := findAccount(ctx, deps.Store, accountID); err != nil {
		return fail(err, "lookup")
	}
	if _, err := consumePurpose(ctx, deps.Issuer, domain.PurposeEmailConfirmation, accountID, token); err != nil {
		return fail(err, "token")
	}

	_, err := Commit(ctx, deps.Store, accountID, deps.MaxCommitAttempts, func(acct domain.Account) (domain.Account, error) {
		return Apply(acct, Change{Transition: TransitionConfirmEmail})
	})
	if err != nil {
		return fail(err, "commit")
	}

	deps.MetricInc(deps.Metrics.EmailConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailConfirm, true, accountID, nil, nil)
	return nil
}

// RunResendConfirmation issues a fresh confirmation token for an account that
// has not confirmed its email yet.
func RunResendConfirmation(ctx context.Context, email string, deps AccountDeps) error {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if err := validateInput(emailInput{Email: email}); err != nil {
		return err
	}

	acct, err := deps.Store.FindByEmail(ctx, email)
	if err != nil {
		return mapStoreError(err)
	}
	if acct.EmailConfirmed {
		deps.EmitAudit(ctx, deps.Events.ConfirmationResend, false, acct.ID, errAlreadyConfirmed, nil)
		return errAlreadyConfirmed
	}

	allowed, err := deps.AllowPurposeRequest(ctx, domain.PurposeEmailConfirmation, acct.ID)
	if err != nil {
		return err
	}
	if !allowed {
		deps.MetricInc(deps.Metrics.PurposeRequestThrottled)
		deps.EmitAudit(ctx, deps.Events.ConfirmationResend, false, acct.ID, domain.ErrRateLimited, nil)
		return domain.ErrRateLimited
	}

	if err := issueAndNotify(ctx, &deps, domain.PurposeEmailConfirmation, acct.ID, acct.Email, ""); err != nil {
		deps.EmitAudit(ctx, deps.Events.ConfirmationResend, false, acct.ID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.ConfirmationResent)
	deps.EmitAudit(ctx, deps.Events.ConfirmationResend, true, acct.ID, nil, nil)
	return nil
}

// RunGetUserInfo returns the public profile of accountID.
func RunGetUserInfo(ctx context.Context, accountID string, deps AccountDeps) (domain.Profile, error) {
	if deps.Store == nil {
		return domain.Profile{}, domain.ErrEngineNotReady
	}
	acct, err := findAccount(ctx, deps.Store, accountID)
	if err != nil {
		return domain.Profile{}, err
	}
	return acct.Profile(), nil
}

// RunUpdateUserInfo replaces the first and last name of accountID.
func RunUpdateUserInfo(ctx context.Context, accountID, firstName, lastName string, deps AccountDeps) (domain.Profile, error) {
	normalizeAccountDeps(&deps)
	if !deps.ready() {
		return domain.Profile{}, domain.ErrEngineNotReady
	}

	firstName, lastName = trimNames(firstName, lastName)
	if err := validateInput(profileInput{FirstName: firstName, LastName: lastName}); err != nil {
		return domain.Profile{}, err
	}

	updated, err := Commit(ctx, deps.Store, accountID, deps.MaxCommitAttempts, func(acct domain.Account) (domain.Account, error) {
		return Apply(acct, Change{
			Transition: TransitionUpdateProfile,
			FirstName:  firstName,
			LastName:   lastName,
		})
	})
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.ProfileUpdate, false, accountID, err, nil)
		return domain.Profile{}, err
	}

	deps.MetricInc(deps.Metrics.ProfileUpdate)
	deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, accountID, nil, nil)
	return updated.Profile(), nil
}

func findAccount(ctx context.Context, store domain.CredentialStore, accountID string) (domain.Account, error) {
	if accountID == "" {
		return domain.Account{}, domain.ErrNotFound
	}
	acct, err := store.FindByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, mapStoreError(err)
	}
	return acct, nil
}

// consumePurpose burns token and checks it was bound to accountID. Every
// rejection collapses into [domain.ErrInvalidToken].
func consumePurpose(ctx context.Context, issuer domain.TokenIssuer, kind domain.PurposeKind, accountID, token string) (domain.PurposeClaims, error) {
	if token == "" {
		return domain.PurposeClaims{}, domain.ErrInvalidToken
	}

	claims, err := issuer.ConsumePurposeToken(ctx, kind, token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPurposeTokenInvalid):
			return domain.PurposeClaims{}, domain.ErrInvalidToken
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.PurposeClaims{}, err
		default:
			return domain.PurposeClaims{}, fmt.Errorf("%w: %v", domain.ErrIssuerUnavailable, err)
		}
	}
	if claims.AccountID != accountID {
		return domain.PurposeClaims{}, domain.ErrInvalidToken
	}

	return claims, nil
}

func issueAndNotify(ctx context.Context, deps *AccountDeps, kind domain.PurposeKind, accountID, to, extra string) error {
	token, err := deps.Issuer.IssuePurposeToken(ctx, kind, accountID, extra)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIssuerUnavailable, err)
	}

	deps.Notify(ctx, domain.Notification{
		To:        to,
		Purpose:   kind,
		AccountID: accountID,
		Link:      deps.BuildLink(kind, accountID, extra, token),
	})
	return nil
}
