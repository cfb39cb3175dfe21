package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/notify"
	"github.com/MrEthical07/goIdentity/logging"
	"github.com/MrEthical07/goIdentity/password"
)

// Engine runs the account lifecycle and the token endpoint grants on top of
// a [CredentialStore] and a [TokenIssuer]. Build it with [Builder].
type Engine struct {
	config         Config
	store          CredentialStore
	issuer         TokenIssuer
	revoker        SubjectRevoker
	ping           func(context.Context) error
	passwordHash   *password.Argon2
	policy         password.Policy
	dummyHash      string
	purposeLimiter *limiters.PurposeRequestLimiter
	outbox         *notify.Outbox
	audit          *audit.Dispatcher
	metrics        *Metrics
	log            logging.Logger
	buildLink      func(kind PurposeKind, accountID, extra, token string) string
	now            func() time.Time
}

// Close drains pending notifications and audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.outbox != nil {
		e.outbox.Close()
	}
	if e.audit != nil {
		drain := e.audit.Close()
		log := e.Logger()
		log.Info(context.Background(), "audit dispatcher drained",
			"pending", drain.Pending,
			"elapsed", drain.Elapsed,
		)
		for _, d := range e.audit.DroppedByType() {
			log.Warn(context.Background(), "audit events dropped",
				"event_type", d.EventType,
				"count", d.Count,
			)
		}
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			Gauges:     map[GaugeID]int64{},
		}
	}
	return e.metrics.Snapshot()
}

// ObserveInFlight samples inFlight into [GaugeAdmissionInFlight] on every
// metrics snapshot.
func (e *Engine) ObserveInFlight(inFlight func() int64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.SetGauge(GaugeAdmissionInFlight, inFlight)
}

// RecordAdmissionRejected counts one request turned away by admission
// control in front of the engine.
func (e *Engine) RecordAdmissionRejected() {
	e.metricInc(MetricAdmissionRejected)
}

// Ping checks the token backend. It backs the health endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.ping == nil {
		return nil
	}
	return e.ping(ctx)
}

// Logger returns the engine logger.
func (e *Engine) Logger() logging.Logger {
	if e == nil || e.log == nil {
		return logging.Nop()
	}
	return e.log
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) allowPurposeRequest(ctx context.Context, kind PurposeKind, accountID string) (bool, error) {
	err := e.purposeLimiter.Check(ctx, kind.String(), accountID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, limiters.ErrPurposeRequestRateLimited):
		return false, nil
	default:
		return false, err
	}
}

func (e *Engine) revokeGrants(ctx context.Context, accountID string) error {
	if e.revoker == nil || !e.config.Security.RevokeGrantsOnCredentialChange {
		return nil
	}
	return e.revoker.RevokeSubject(ctx, accountID)
}

func (e *Engine) enqueueNotification(ctx context.Context, n Notification) {
	e.outbox.Enqueue(ctx, n)
}

func (e *Engine) onNotifyError(n Notification, err error) {
	if errors.Is(err, notify.ErrOutboxFull) || errors.Is(err, notify.ErrOutboxClosed) {
		e.metricInc(MetricNotificationDropped)
	} else {
		e.metricInc(MetricNotificationFailed)
	}
	e.log.Warn(context.Background(), "notification not delivered",
		"purpose", n.Purpose.String(),
		"account_id", n.AccountID,
		"error", err,
	)
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Store:                 e.store,
		Issuer:                e.issuer,
		MaxCommitAttempts:     e.config.Security.MaxCommitAttempts,
		Now:                   e.now,
		NewAccountID:          uuid.NewString,
		NewSecurityStamp:      internal.NewSecurityStamp,
		HashPassword:          e.passwordHash.Hash,
		VerifyPassword:        e.passwordHash.Verify,
		CheckPolicy:           e.policy.Check,
		AllowPurposeRequest:   e.allowPurposeRequest,
		RevokeGrants:          e.revokeGrants,
		SleepEnumerationDelay: e.sleepEnumerationDelay,
		BuildLink:             e.buildLink,
		Notify:                e.enqueueNotification,
		MetricInc:             func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:             e.emitAudit,
		Metrics: flows.AccountMetrics{
			RegisterSuccess:             int(MetricRegisterSuccess),
			RegisterDuplicate:           int(MetricRegisterDuplicate),
			RegisterFailure:             int(MetricRegisterFailure),
			EmailConfirmSuccess:         int(MetricEmailConfirmSuccess),
			EmailConfirmFailure:         int(MetricEmailConfirmFailure),
			ConfirmationResent:          int(MetricConfirmationResent),
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetSuppressed:     int(MetricPasswordResetSuppressed),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			PasswordChangeSuccess:       int(MetricPasswordChangeSuccess),
			PasswordChangeFailure:       int(MetricPasswordChangeFailure),
			EmailChangeRequest:          int(MetricEmailChangeRequest),
			EmailChangeSuccess:          int(MetricEmailChangeSuccess),
			EmailChangeFailure:          int(MetricEmailChangeFailure),
			ProfileUpdate:               int(MetricProfileUpdate),
			PurposeRequestThrottled:     int(MetricPurposeRequestThrottled),
		},
		Events: flows.AccountEvents{
			Register:             auditEventRegister,
			EmailConfirm:         auditEventEmailConfirm,
			ConfirmationResend:   auditEventConfirmationResend,
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			PasswordChange:       auditEventPasswordChange,
			EmailChangeRequest:   auditEventEmailChangeRequest,
			EmailChangeConfirm:   auditEventEmailChangeConfirm,
			ProfileUpdate:        auditEventProfileUpdate,
		},
	}
}

func (e *Engine) grantDeps() flows.GrantDeps {
	deps := flows.GrantDeps{
		Store:             e.store,
		Issuer:            e.issuer,
		MaxCommitAttempts: e.config.Security.MaxCommitAttempts,
		VerifyPassword:    e.passwordHash.Verify,
		DummyHash:         e.dummyHash,
		Warn:              e.Logger().Warn,
		MetricInc:         func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:         e.emitAudit,
		Metrics: flows.GrantMetrics{
			PasswordGrantSuccess: int(MetricPasswordGrantSuccess),
			PasswordGrantFailure: int(MetricPasswordGrantFailure),
			RefreshGrantSuccess:  int(MetricRefreshGrantSuccess),
			RefreshGrantFailure:  int(MetricRefreshGrantFailure),
			UnsupportedGrant:     int(MetricUnsupportedGrant),
			Logout:               int(MetricLogout),
		},
		Events: flows.GrantEvents{
			PasswordGrant: auditEventPasswordGrant,
			RefreshGrant:  auditEventRefreshGrant,
			Logout:        auditEventLogout,
		},
	}
	if e.config.Password.UpgradeOnLogin {
		deps.PasswordNeedsUpgrade = e.passwordHash.NeedsUpgrade
		deps.HashPassword = e.passwordHash.Hash
	}
	return deps
}

// logFailure records errors outside the caller-facing taxonomy. Those are
// backend failures the caller only sees as an internal error.
func (e *Engine) logFailure(ctx context.Context, op string, err error) {
	if err == nil || e == nil || e.log == nil {
		return
	}
	if code := auditErrorCode(err); code != auditErrUnavailable && code != auditErrInternal {
		return
	}
	e.log.Error(ctx, "operation failed",
		"op", op,
		"request_id", RequestIDFromContext(ctx),
		"error", err,
	)
}
