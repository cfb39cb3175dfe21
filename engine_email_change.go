package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// RequestEmailChange sends an email-change link to newEmail. The current
// email must be confirmed and differ from newEmail, otherwise it fails with
// [ErrPreconditionFailed].
func (e *Engine) RequestEmailChange(ctx context.Context, accountID, newEmail string) error {
	err := flows.RunRequestEmailChange(ctx, accountID, newEmail, e.accountDeps())
	e.logFailure(ctx, "email_change_request", err)
	return err
}

// ConfirmEmailChange applies an email change. newEmail must be exactly the
// address the token was issued for. The username follows the email when it
// was derived from it.
func (e *Engine) ConfirmEmailChange(ctx context.Context, accountID, newEmail, token string) error {
	err := flows.RunConfirmEmailChange(ctx, accountID, newEmail, token, e.accountDeps())
	e.logFailure(ctx, "email_change_confirm", err)
	return err
}
