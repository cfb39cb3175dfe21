// Package domain holds the account, principal and token types shared by the
// engine, its flows and the collaborator implementations. The root package
// re-exports everything here through aliases.
package domain

import (
	"strings"
	"time"
)

// Account is the persisted identity record.
type Account struct {
	ID             string
	UserName       string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	FirstName      string
	LastName       string
	CreatedAt      time.Time
	SecurityStamp  string
	Version        uint64
}

// Profile is the caller-visible projection of an Account.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	UserName  string `json:"userName"`
}

// Profile returns the public projection of a.
func (a Account) Profile() Profile {
	return Profile{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		UserName:  a.UserName,
	}
}

// NormalizeEmail is the comparison key for emails and usernames.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail reports whether a and b name the same mailbox.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// PurposeKind selects which account transition a purpose token authorizes.
type PurposeKind uint8

const (
	PurposeEmailConfirmation PurposeKind = iota + 1
	PurposePasswordReset
	PurposeEmailChange
)

func (k PurposeKind) String() string {
	switch k {
	case PurposeEmailConfirmation:
		return "email_confirmation"
	case PurposePasswordReset:
		return "password_reset"
	case PurposeEmailChange:
		return "email_change"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known kinds.
func (k PurposeKind) Valid() bool {
	return k >= PurposeEmailConfirmation && k <= PurposeEmailChange
}

// PurposeClaims is what a consumed purpose token was bound to.
type PurposeClaims struct {
	AccountID string
	Extra     string
}

// Scope values.
const (
	ScopeOpenID        = "openid"
	ScopeEmail         = "email"
	ScopeProfile       = "profile"
	ScopeOfflineAccess = "offline_access"
	ScopeAPI           = "api"
)

// PasswordGrantScopes is the fixed scope set granted on password login.
func PasswordGrantScopes() []string {
	return []string{ScopeOpenID, ScopeEmail, ScopeProfile}
}

// ClaimsPrincipal is the identity assertion handed to the token issuer.
type ClaimsPrincipal struct {
	Subject string
	Name    string
	Scopes  []string
}

// HasScope reports whether scope is granted to p.
func (p ClaimsPrincipal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RefreshPrincipal is a principal recovered from a refresh token together with
// the account security stamp recorded when the grant was issued.
type RefreshPrincipal struct {
	ClaimsPrincipal
	SecurityStamp string
}

// TokenSet is the result of a successful grant.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    time.Duration
	RefreshToken string
	IDToken      string
	Scopes       []string
}

// GrantType names a token endpoint grant.
type GrantType string

const (
	GrantPassword     GrantType = "password"
	GrantRefreshToken GrantType = "refresh_token"
)

// GrantRequest is an inbound token endpoint request.
type GrantRequest struct {
	GrantType    GrantType
	UserName     string
	Password     string
	RefreshToken string
}
