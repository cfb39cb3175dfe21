package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// AccountMetrics holds the metric ids the account flows increment.
type AccountMetrics struct {
	RegisterSuccess             int
	RegisterDuplicate           int
	RegisterFailure             int
	EmailConfirmSuccess         int
	EmailConfirmFailure         int
	ConfirmationResent          int
	PasswordResetRequest        int
	PasswordResetSuppressed     int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	PasswordChangeSuccess       int
	PasswordChangeFailure       int
	EmailChangeRequest          int
	EmailChangeSuccess          int
	EmailChangeFailure          int
	ProfileUpdate               int
	PurposeRequestThrottled     int
}

// AccountEvents holds the audit event names the account flows emit.
type AccountEvents struct {
	Register             string
	EmailConfirm         string
	ConfirmationResend   string
	PasswordResetRequest string
	PasswordResetConfirm string
	PasswordChange       string
	EmailChangeRequest   string
	EmailChangeConfirm   string
	ProfileUpdate        string
}

// AccountDeps captures account lifecycle dependencies.
type AccountDeps struct {
	Store             domain.CredentialStore
	Issuer            domain.TokenIssuer
	MaxCommitAttempts int

	Now              func() time.Time
	NewAccountID     func() string
	NewSecurityStamp func() (string, error)
	HashPassword     func(string) (string, error)
	VerifyPassword   func(password, encodedHash string) (bool, error)
	CheckPolicy      func(string) []string

	// AllowPurposeRequest throttles token-producing requests per account.
	// Returning false suppresses the request.
	AllowPurposeRequest func(ctx context.Context, kind domain.PurposeKind, accountID string) (bool, error)
	// RevokeGrants drops every refresh grant of an account. Failures are
	// audited but never undo a committed change.
	RevokeGrants func(ctx context.Context, accountID string) error
	// SleepEnumerationDelay pads password reset requests that issue no
	// token, so their latency matches the ones that do.
	SleepEnumerationDelay func(context.Context) error
	BuildLink             func(kind domain.PurposeKind, accountID, extra, token string) string
	// Notify hands a notification to delivery. It must not block on the
	// delivery itself.
	Notify func(context.Context, domain.Notification)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, accountID string, err error, metadata func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
}

func (d AccountDeps) ready() bool {
	return d.Store != nil &&
		d.Issuer != nil &&
		d.NewAccountID != nil &&
		d.NewSecurityStamp != nil &&
		d.HashPassword != nil &&
		d.VerifyPassword != nil
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MaxCommitAttempts <= 0 {
		deps.MaxCommitAttempts = DefaultMaxCommitAttempts
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CheckPolicy == nil {
		deps.CheckPolicy = func(string) []string { return nil }
	}
	if deps.AllowPurposeRequest == nil {
		deps.AllowPurposeRequest = func(context.Context, domain.PurposeKind, string) (bool, error) { return true, nil }
	}
	if deps.RevokeGrants == nil {
		deps.RevokeGrants = func(context.Context, string) error { return nil }
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
	if deps.BuildLink == nil {
		deps.BuildLink = func(_ domain.PurposeKind, _, _, token string) string { return token }
	}
	if deps.Notify == nil {
		deps.Notify = func(context.Context, domain.Notification) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}

// GrantMetrics holds the metric ids the grant flows increment.
type GrantMetrics struct {
	PasswordGrantSuccess int
	PasswordGrantFailure int
	RefreshGrantSuccess  int
	RefreshGrantFailure  int
	UnsupportedGrant     int
	Logout               int
}

// GrantEvents holds the audit event names the grant flows emit.
type GrantEvents struct {
	PasswordGrant string
	RefreshGrant  string
	Logout        string
}

// GrantDeps captures token endpoint dependencies.
type GrantDeps struct {
	Store             domain.CredentialStore
	Issuer            domain.TokenIssuer
	MaxCommitAttempts int

	VerifyPassword func(password, encodedHash string) (bool, error)
	// DummyHash is verified against when no account matches, so unknown
	// emails cost the same as wrong passwords.
	DummyHash string

	// PasswordNeedsUpgrade and HashPassword rehash a stored password after a
	// successful password grant when its cost parameters are stale. Leaving
	// either nil disables the upgrade.
	PasswordNeedsUpgrade func(encodedHash string) (bool, error)
	HashPassword         func(string) (string, error)
	Warn                 func(ctx context.Context, msg string, args ...any)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, accountID string, err error, metadata func() map[string]string)

	Metrics GrantMetrics
	Events  GrantEvents
}

func (d GrantDeps) ready() bool {
	return d.Store != nil && d.Issuer != nil && d.VerifyPassword != nil
}

func normalizeGrantDeps(deps *GrantDeps) {
	if deps.MaxCommitAttempts <= 0 {
		deps.MaxCommitAttempts = DefaultMaxCommitAttempts
	}
	if deps.Warn == nil {
		deps.Warn = func(context.Context, string, ...any) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}
