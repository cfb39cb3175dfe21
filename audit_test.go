package goIdentity

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newAuditEngineTest(t *testing.T) (*engineTest, *ChannelSink) {
	t.Helper()

	sink := NewChannelSink(128)
	et := newEngineTest(t, func(c *Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 128
		c.Audit.DropIfFull = false
	}, func(b *Builder) {
		b.WithAuditSink(sink)
	})
	return et, sink
}

func waitAuditEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s audit event", eventType)
			return AuditEvent{}
		}
	}
}

func TestAuditCarriesRequestContext(t *testing.T) {
	et, sink := newAuditEngineTest(t)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithClientIP(ctx, "203.0.113.9")
	ctx = WithUserAgent(ctx, "test-agent")

	res, err := et.engine.Register(ctx, "A", "B", "a@x.com", testPassword)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ev := waitAuditEvent(t, sink, auditEventRegister)
	if !ev.Success || ev.AccountID != res.AccountID {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.RequestID != "req-1" || ev.IP != "203.0.113.9" || ev.UserAgent != "test-agent" {
		t.Fatalf("request context not recorded: %+v", ev)
	}
}

func TestAuditFailedGrantHasErrorCode(t *testing.T) {
	et, sink := newAuditEngineTest(t)

	_, _ = et.engine.Exchange(context.Background(), GrantRequest{
		GrantType: GrantPassword,
		UserName:  "nobody@x.com",
		Password:  testPassword,
	})

	ev := waitAuditEvent(t, sink, auditEventPasswordGrant)
	if ev.Success || ev.Error != string(auditErrForbidden) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAuditNeverCarriesSecrets(t *testing.T) {
	et, sink := newAuditEngineTest(t)

	id := et.register(t, "a@x.com")
	token := et.notifier.wait(t, PurposeEmailConfirmation, "a@x.com").Link
	if err := et.engine.ConfirmEmail(context.Background(), id, token); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	set := et.login(t, "a@x.com", testPassword)
	if err := et.engine.Logout(context.Background(), set.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	secrets := []string{testPassword, token, set.AccessToken, set.RefreshToken, set.IDToken}
	for _, eventType := range []string{auditEventRegister, auditEventEmailConfirm, auditEventPasswordGrant, auditEventLogout} {
		ev := waitAuditEvent(t, sink, eventType)
		dump := ev.EventType + ev.AccountID + ev.Error
		for k, v := range ev.Metadata {
			dump += k + v
		}
		for _, secret := range secrets {
			if secret != "" && strings.Contains(dump, secret) {
				t.Fatalf("%s event leaks secret material", eventType)
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrConflict, auditErrConflict},
		{&PolicyError{Violations: []string{"x"}}, auditErrWeakCredential},
		{&FieldError{Fields: map[string]string{"email": "bad"}}, auditErrInvalidInput},
		{&PreconditionError{Reason: "x"}, auditErrPreconditionFailed},
		{ErrStoreUnavailable, auditErrUnavailable},
		{context.Canceled, auditErrCanceled},
	}

	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
