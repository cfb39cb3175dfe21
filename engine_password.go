package goIdentity

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

const (
	enumerationDelayMin = 20 * time.Millisecond
	enumerationDelayMax = 40 * time.Millisecond
)

// RequestPasswordReset sends a password-reset link when email belongs to a
// confirmed account. The result does not reveal whether it did: unknown,
// unconfirmed and throttled requests also succeed. Only a malformed email
// fails, with [ErrInvalidInput].
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	err := flows.RunRequestPasswordReset(ctx, email, e.accountDeps())
	e.logFailure(ctx, "password_reset_request", err)
	return err
}

// ConfirmPasswordReset replaces the password of accountID using a reset
// token. The new password is checked against the policy before the token is
// consumed, so a weak password leaves the token usable.
//
// Refresh grants issued before the reset stop working.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, accountID, token, newPassword string) error {
	err := flows.RunConfirmPasswordReset(ctx, accountID, token, newPassword, e.accountDeps())
	e.logFailure(ctx, "password_reset_confirm", err)
	return err
}

// ChangePassword replaces the password of accountID after verifying the
// current one. It fails with [ErrInvalidCredential] on a wrong current
// password.
func (e *Engine) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	err := flows.RunChangePassword(ctx, accountID, currentPassword, newPassword, e.accountDeps())
	e.logFailure(ctx, "password_change", err)
	return err
}

// sleepEnumerationDelay waits a random 20-40ms. Suppressed reset requests
// skip the purpose token write and the outbox hand-off, so they would
// otherwise answer measurably faster than real ones.
func (e *Engine) sleepEnumerationDelay(ctx context.Context) error {
	span := int64(enumerationDelayMax-enumerationDelayMin) / int64(time.Millisecond)
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return err
	}

	timer := time.NewTimer(enumerationDelayMin + time.Duration(n.Int64())*time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
