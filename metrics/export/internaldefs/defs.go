package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef binds a counter id to its exported name.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram id to its exported name.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Accounts created by registration."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registrations rejected because the email was taken."},
	{ID: goIdentity.MetricRegisterFailure, Name: "goidentity_register_failure_total", Help: "Registrations rejected for invalid input or a weak password."},
	{ID: goIdentity.MetricEmailConfirmSuccess, Name: "goidentity_email_confirm_success_total", Help: "Successful email confirmations."},
	{ID: goIdentity.MetricEmailConfirmFailure, Name: "goidentity_email_confirm_failure_total", Help: "Failed email confirmations."},
	{ID: goIdentity.MetricConfirmationResent, Name: "goidentity_confirmation_resent_total", Help: "Confirmation links sent again on request."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset requests that issued a token."},
	{ID: goIdentity.MetricPasswordResetSuppressed, Name: "goidentity_password_reset_suppressed_total", Help: "Password reset requests answered without issuing a token."},
	{ID: goIdentity.MetricPasswordResetConfirmSuccess, Name: "goidentity_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: goIdentity.MetricPasswordResetConfirmFailure, Name: "goidentity_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: goIdentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Successful password changes."},
	{ID: goIdentity.MetricPasswordChangeFailure, Name: "goidentity_password_change_failure_total", Help: "Failed password changes."},
	{ID: goIdentity.MetricEmailChangeRequest, Name: "goidentity_email_change_request_total", Help: "Email change requests that issued a token."},
	{ID: goIdentity.MetricEmailChangeSuccess, Name: "goidentity_email_change_success_total", Help: "Completed email changes."},
	{ID: goIdentity.MetricEmailChangeFailure, Name: "goidentity_email_change_failure_total", Help: "Failed email change confirmations."},
	{ID: goIdentity.MetricProfileUpdate, Name: "goidentity_profile_update_total", Help: "Profile updates."},
	{ID: goIdentity.MetricPurposeRequestThrottled, Name: "goidentity_purpose_request_throttled_total", Help: "Token-producing requests denied by the per-account throttle."},
	{ID: goIdentity.MetricPasswordGrantSuccess, Name: "goidentity_password_grant_success_total", Help: "Successful password grants."},
	{ID: goIdentity.MetricPasswordGrantFailure, Name: "goidentity_password_grant_failure_total", Help: "Failed password grants."},
	{ID: goIdentity.MetricRefreshGrantSuccess, Name: "goidentity_refresh_grant_success_total", Help: "Successful refresh grants."},
	{ID: goIdentity.MetricRefreshGrantFailure, Name: "goidentity_refresh_grant_failure_total", Help: "Failed refresh grants."},
	{ID: goIdentity.MetricUnsupportedGrant, Name: "goidentity_unsupported_grant_total", Help: "Token requests with an unsupported grant type."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Logout requests."},
	{ID: goIdentity.MetricAdmissionRejected, Name: "goidentity_admission_rejected_total", Help: "Requests rejected by admission control."},
	{ID: goIdentity.MetricNotificationDropped, Name: "goidentity_notification_dropped_total", Help: "Notifications dropped because the outbox was full."},
	{ID: goIdentity.MetricNotificationFailed, Name: "goidentity_notification_failed_total", Help: "Notifications the notifier failed to deliver."},
}

// GaugeDef binds a gauge id to its exported name.
type GaugeDef struct {
	ID   goIdentity.GaugeID
	Name string
	Help string
}

// GaugeDefs lists every exported gauge. A gauge with no registered source is
// not exported.
var GaugeDefs = []GaugeDef{
	{ID: goIdentity.GaugeAdmissionInFlight, Name: "goidentity_admission_in_flight", Help: "Admitted requests still being served."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricGrantLatency, Name: "goidentity_grant_latency_seconds", Help: "Token endpoint grant latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "goidentity_audit_dropped_total"

// HistogramBounds are the upper bounds of the latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
