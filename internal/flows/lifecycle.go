package flows

import (
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// Transition names an account state change.
type Transition int

const (
	TransitionConfirmEmail Transition = iota + 1
	TransitionResetPassword
	TransitionChangePassword
	TransitionChangeEmail
	TransitionUpdateProfile
)

func (t Transition) String() string {
	switch t {
	case TransitionConfirmEmail:
		return "confirm_email"
	case TransitionResetPassword:
		return "reset_password"
	case TransitionChangePassword:
		return "change_password"
	case TransitionChangeEmail:
		return "change_email"
	case TransitionUpdateProfile:
		return "update_profile"
	default:
		return "unknown"
	}
}

// Change is the input of one transition. Only the fields the transition
// reads need to be set.
type Change struct {
	Transition    Transition
	PasswordHash  string
	Email         string
	FirstName     string
	LastName      string
	SecurityStamp string
}

var errMissingChangeField = errors.New("change is missing a required field")

// Apply checks the preconditions of c against acct and returns the next
// account state. It never touches I/O; callers persist the result with a
// version-checked update and re-run Apply on conflict.
//
// Preconditions:
//   - reset_password, change_password: non-empty hash and security stamp.
//   - reset_password: the email must be confirmed.
//   - change_email: the current email must be confirmed and the new one
//     must differ from it case-insensitively.
//   - update_profile: both names non-empty.
func Apply(acct domain.Account, c Change) (domain.Account, error) {
	next := acct

	switch c.Transition {
	case TransitionConfirmEmail:
		next.EmailConfirmed = true

	case TransitionResetPassword, TransitionChangePassword:
		if c.PasswordHash == "" || c.SecurityStamp == "" {
			return acct, errMissingChangeField
		}
		if c.Transition == TransitionResetPassword && !acct.EmailConfirmed {
			return acct, domain.ErrPreconditionFailed
		}
		next.PasswordHash = c.PasswordHash
		next.SecurityStamp = c.SecurityStamp

	case TransitionChangeEmail:
		if c.Email == "" || c.SecurityStamp == "" {
			return acct, errMissingChangeField
		}
		if err := CanChangeEmail(acct, c.Email); err != nil {
			return acct, err
		}
		if domain.SameEmail(acct.UserName, acct.Email) {
			next.UserName = c.Email
		}
		next.Email = c.Email
		next.EmailConfirmed = true
		next.SecurityStamp = c.SecurityStamp

	case TransitionUpdateProfile:
		first := strings.TrimSpace(c.FirstName)
		last := strings.TrimSpace(c.LastName)
		if first == "" || last == "" {
			return acct, errMissingChangeField
		}
		next.FirstName = first
		next.LastName = last

	default:
		return acct, errors.New("unknown account transition")
	}

	return next, nil
}

// CanChangeEmail reports whether acct may move to newEmail.
func CanChangeEmail(acct domain.Account, newEmail string) error {
	if !acct.EmailConfirmed {
		return errEmailUnconfirmed
	}
	if domain.SameEmail(acct.Email, newEmail) {
		return errEmailUnchanged
	}
	return nil
}

var (
	errEmailUnconfirmed = &domain.PreconditionError{Reason: "Your email must be confirmed before changing it."}
	errEmailUnchanged   = &domain.PreconditionError{Reason: "New email address must be different from the current one."}
)
