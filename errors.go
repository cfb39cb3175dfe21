package goIdentity

import (
	"github.com/MrEthical07/goIdentity/internal/domain"
	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Outward error taxonomy. Every Engine method fails with one of these
// (possibly wrapped) or with an infrastructure error below.
var (
	ErrConflict           = domain.ErrConflict
	ErrWeakCredential     = domain.ErrWeakCredential
	ErrInvalidCredential  = domain.ErrInvalidCredential
	ErrInvalidToken       = domain.ErrInvalidToken
	ErrNotFound           = domain.ErrNotFound
	ErrForbidden          = domain.ErrForbidden
	ErrPreconditionFailed = domain.ErrPreconditionFailed
	ErrUnsupportedGrant   = domain.ErrUnsupportedGrant
	ErrRateLimited        = domain.ErrRateLimited
	ErrInvalidInput       = domain.ErrInvalidInput
	ErrEngineNotReady     = domain.ErrEngineNotReady

	// ErrCommitContention means every optimistic write attempt lost to a
	// concurrent update of the same account. It unwraps to [ErrConflict]
	// but, unlike a uniqueness clash, retrying may succeed.
	ErrCommitContention = flows.ErrCommitContention
)

// Collaborator errors. [CredentialStore] and [TokenIssuer] implementations
// return these; the Engine translates them.
var (
	// ErrAccountNotFound is returned by store lookups that match nothing.
	ErrAccountNotFound = domain.ErrAccountNotFound
	// ErrDuplicateAccount is returned by Create and Update when the email or
	// username is already taken.
	ErrDuplicateAccount = domain.ErrDuplicateAccount
	// ErrVersionConflict is returned by Update when the stored version moved.
	ErrVersionConflict     = domain.ErrVersionConflict
	ErrPurposeTokenInvalid = domain.ErrPurposeTokenInvalid
	ErrRefreshTokenInvalid = domain.ErrRefreshTokenInvalid
	ErrAccessTokenInvalid  = domain.ErrAccessTokenInvalid
)

// Infrastructure errors. They surface as internal failures and are never
// shown to callers verbatim.
var (
	ErrStoreUnavailable  = domain.ErrStoreUnavailable
	ErrIssuerUnavailable = domain.ErrIssuerUnavailable
)

// PolicyError lists the password rules a candidate failed. It unwraps to
// [ErrWeakCredential].
type PolicyError = domain.PolicyError

// FieldError carries per-field input validation messages. It unwraps to
// [ErrInvalidInput].
type FieldError = domain.FieldError

// PreconditionError is an [ErrPreconditionFailed] with a caller-facing reason.
type PreconditionError = domain.PreconditionError
