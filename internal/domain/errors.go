package domain

import (
	"errors"
	"sort"
	"strings"
)

// Outward error taxonomy.
var (
	ErrConflict           = errors.New("conflict")
	ErrWeakCredential     = errors.New("weak credential")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUnsupportedGrant   = errors.New("unsupported grant type")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEngineNotReady     = errors.New("engine not ready")
)

// Collaborator errors. Stores and issuers return these; the engine translates
// them into the outward taxonomy.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("duplicate account")
	ErrVersionConflict     = errors.New("account version conflict")
	ErrPurposeTokenInvalid = errors.New("purpose token invalid")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrAccessTokenInvalid  = errors.New("access token invalid")
)

// Infrastructure errors. These surface as internal failures.
var (
	ErrStoreUnavailable  = errors.New("credential store unavailable")
	ErrIssuerUnavailable = errors.New("token issuer unavailable")
)

// PolicyError lists the password rules a candidate failed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrWeakCredential.Error()
	}
	return ErrWeakCredential.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PolicyError) Unwrap() error {
	return ErrWeakCredential
}

// FieldError carries per-field input validation messages.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

// PreconditionError is an [ErrPreconditionFailed] with a caller-facing
// reason.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	if e == nil || e.Reason == "" {
		return ErrPreconditionFailed.Error()
	}
	return ErrPreconditionFailed.Error() + ": " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}
