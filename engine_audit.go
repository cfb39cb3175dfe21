package goIdentity

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegister             = "register"
	auditEventEmailConfirm         = "email_confirm"
	auditEventConfirmationResend   = "confirmation_resend"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordChange       = "password_change"
	auditEventEmailChangeRequest   = "email_change_request"
	auditEventEmailChangeConfirm   = "email_change_confirm"
	auditEventProfileUpdate        = "profile_update"
	auditEventPasswordGrant        = "password_grant"
	auditEventRefreshGrant         = "refresh_grant"
	auditEventLogout               = "logout"
)

// AuditErrorCode is the stable error label recorded in [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrConflict           AuditErrorCode = "conflict"
	auditErrWeakCredential     AuditErrorCode = "weak_credential"
	auditErrInvalidCredential  AuditErrorCode = "invalid_credential"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrPreconditionFailed AuditErrorCode = "precondition_failed"
	auditErrUnsupportedGrant   AuditErrorCode = "unsupported_grant"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrCanceled           AuditErrorCode = "canceled"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrWeakCredential):
		return auditErrWeakCredential
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrPreconditionFailed):
		return auditErrPreconditionFailed
	case errors.Is(err, ErrUnsupportedGrant):
		return auditErrUnsupportedGrant
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrIssuerUnavailable):
		return auditErrUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
