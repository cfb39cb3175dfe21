package domain

import "context"

// CredentialStore persists accounts. Lookups by email and username are
// case-insensitive. Update is a compare-and-swap on Version: it fails with
// ErrVersionConflict when the stored version differs from acct.Version, and
// on success returns the account with Version incremented.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByUserName(ctx context.Context, userName string) (Account, error)
	Create(ctx context.Context, acct Account) (Account, error)
	Update(ctx context.Context, acct Account) (Account, error)
}

// TokenIssuer mints and checks every token the provider hands out.
type TokenIssuer interface {
	IssuePurposeToken(ctx context.Context, kind PurposeKind, accountID, extra string) (string, error)
	ConsumePurposeToken(ctx context.Context, kind PurposeKind, token string) (PurposeClaims, error)
	IssueTokenSet(ctx context.Context, principal ClaimsPrincipal, securityStamp string) (TokenSet, error)
	AuthenticateRefreshToken(ctx context.Context, token string) (RefreshPrincipal, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	AuthenticateAccessToken(ctx context.Context, token string) (ClaimsPrincipal, error)
}

// SubjectRevoker is implemented by issuers that can drop every refresh grant
// of an account at once.
type SubjectRevoker interface {
	RevokeSubject(ctx context.Context, subject string) error
}

// Notification is an out-of-band message carrying a purpose token link.
type Notification struct {
	To        string
	Purpose   PurposeKind
	AccountID string
	Link      string
}

// Notifier delivers notifications. Delivery failures never fail the request
// that produced them.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
