package goIdentity

import "github.com/MrEthical07/goIdentity/internal/domain"

// Account is the persisted identity record.
type Account = domain.Account

// Profile is the caller-visible projection returned by [Engine.GetUserInfo].
type Profile = domain.Profile

// PurposeKind selects which account transition a purpose token authorizes.
type PurposeKind = domain.PurposeKind

const (
	PurposeEmailConfirmation = domain.PurposeEmailConfirmation
	PurposePasswordReset     = domain.PurposePasswordReset
	PurposeEmailChange       = domain.PurposeEmailChange
)

// PurposeClaims is what a consumed purpose token was bound to.
type PurposeClaims = domain.PurposeClaims

// Scopes understood by the provider.
const (
	ScopeOpenID        = domain.ScopeOpenID
	ScopeEmail         = domain.ScopeEmail
	ScopeProfile       = domain.ScopeProfile
	ScopeOfflineAccess = domain.ScopeOfflineAccess
	ScopeAPI           = domain.ScopeAPI
)

// ClaimsPrincipal is the identity assertion handed to the [TokenIssuer] and
// returned by [Engine.AuthenticateAccessToken].
type ClaimsPrincipal = domain.ClaimsPrincipal

// RefreshPrincipal is a principal recovered from a refresh token together
// with the account security stamp recorded at issuance.
type RefreshPrincipal = domain.RefreshPrincipal

// TokenSet is the result of a successful grant.
type TokenSet = domain.TokenSet

// GrantType names a token endpoint grant.
type GrantType = domain.GrantType

const (
	GrantPassword     = domain.GrantPassword
	GrantRefreshToken = domain.GrantRefreshToken
)

// GrantRequest is an inbound token endpoint request.
type GrantRequest = domain.GrantRequest

// CredentialStore persists accounts. Lookups by email and username are
// case-insensitive; Update is a compare-and-swap on Version.
type CredentialStore = domain.CredentialStore

// TokenIssuer mints and checks purpose tokens, access tokens and refresh
// tokens. [NewTokenIssuer] returns the Redis and JWT backed default.
type TokenIssuer = domain.TokenIssuer

// SubjectRevoker is implemented by issuers that can drop every refresh grant
// of an account at once. The Engine uses it after password changes.
type SubjectRevoker = domain.SubjectRevoker

// Notification is an out-of-band message carrying a purpose token link.
type Notification = domain.Notification

// Notifier delivers notifications. Delivery runs asynchronously and its
// failures never fail the request that produced the notification.
type Notifier = domain.Notifier

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	AccountID string
	// ConfirmationIssued is false when the account was created but the
	// confirmation token could not be issued. The caller can use
	// [Engine.ResendConfirmation] later.
	ConfirmationIssued bool
}

// NormalizeEmail is the comparison key stores use for emails and usernames.
func NormalizeEmail(email string) string {
	return domain.NormalizeEmail(email)
}
