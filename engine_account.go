package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Register creates an unconfirmed account whose username is its email and
// sends an email-confirmation link to it.
//
// It fails with [ErrInvalidInput] (a [*FieldError]) for empty names or a
// malformed email, [ErrConflict] when the email is taken and
// [ErrWeakCredential] (a [*PolicyError]) when the password fails the policy.
func (e *Engine) Register(ctx context.Context, firstName, lastName, email, password string) (RegisterResult, error) {
	res, err := flows.RunRegister(ctx, flows.RegisterRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	}, e.accountDeps())
	if err != nil {
		e.logFailure(ctx, "register", err)
		return RegisterResult{}, err
	}
	return RegisterResult{
		AccountID:          res.AccountID,
		ConfirmationIssued: res.ConfirmationIssued,
	}, nil
}

// ConfirmEmail consumes an email-confirmation token for accountID.
// Unknown accounts fail with [ErrNotFound]; every token problem is
// [ErrInvalidToken].
func (e *Engine) ConfirmEmail(ctx context.Context, accountID, token string) error {
	err := flows.RunConfirmEmail(ctx, accountID, token, e.accountDeps())
	e.logFailure(ctx, "confirm_email", err)
	return err
}

// ResendConfirmation issues a new confirmation link for an unconfirmed
// account. It fails with [ErrNotFound] for unknown emails and
// [ErrPreconditionFailed] when the email is already confirmed.
func (e *Engine) ResendConfirmation(ctx context.Context, email string) error {
	err := flows.RunResendConfirmation(ctx, email, e.accountDeps())
	e.logFailure(ctx, "resend_confirmation", err)
	return err
}

// GetUserInfo returns the profile of accountID.
func (e *Engine) GetUserInfo(ctx context.Context, accountID string) (Profile, error) {
	p, err := flows.RunGetUserInfo(ctx, accountID, e.accountDeps())
	e.logFailure(ctx, "get_user_info", err)
	return p, err
}

// UpdateUserInfo replaces the first and last name of accountID and returns
// the updated profile.
func (e *Engine) UpdateUserInfo(ctx context.Context, accountID, firstName, lastName string) (Profile, error) {
	p, err := flows.RunUpdateUserInfo(ctx, accountID, firstName, lastName, e.accountDeps())
	e.logFailure(ctx, "update_user_info", err)
	return p, err
}
