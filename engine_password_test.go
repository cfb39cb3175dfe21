package goIdentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	et := newEngineTest(t, nil)
	et.register(t, "unconfirmed@x.com")
	et.notifier.wait(t, PurposeEmailConfirmation, "unconfirmed@x.com")

	for _, email := range []string{"nobody@x.com", "unconfirmed@x.com"} {
		if err := et.engine.RequestPasswordReset(context.Background(), email); err != nil {
			t.Fatalf("%s: expected nil, got %v", email, err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if got := et.notifier.count(); got != 0 {
		t.Fatalf("expected no notifications, got %d", got)
	}

	if err := et.engine.RequestPasswordReset(context.Background(), "not-an-email"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPasswordResetSuppressedRequestIsPadded(t *testing.T) {
	et := newEngineTest(t, nil)

	start := time.Now()
	if err := et.engine.RequestPasswordReset(context.Background(), "nobody@x.com"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < enumerationDelayMin {
		t.Fatalf("expected at least %s for an unknown email, took %s", enumerationDelayMin, elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := et.engine.RequestPasswordReset(ctx, "nobody@x.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	et := newEngineTest(t, nil)
	id := et.registerConfirmed(t, "a@x.com")
	old := et.login(t, "a@x.com", testPassword)

	if err := et.engine.RequestPasswordReset(context.Background(), "A@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := et.notifier.wait(t, PurposePasswordReset, "a@x.com").Link

	// a weak password must not burn the token
	if err := et.engine.ConfirmPasswordReset(context.Background(), id, token, "weak"); !errors.Is(err, ErrWeakCredential) {
		t.Fatalf("expected ErrWeakCredential, got %v", err)
	}
	if err := et.engine.ConfirmPasswordReset(context.Background(), id, token, "Efgh456!"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if err := et.engine.ConfirmPasswordReset(context.Background(), id, token, "Ijkl789!"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}

	_, err := et.engine.Exchange(context.Background(), GrantRequest{
		GrantType: GrantPassword,
		UserName:  "a@x.com",
		Password:  testPassword,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	et.login(t, "a@x.com", "Efgh456!")

	_, err = et.engine.Exchange(context.Background(), GrantRequest{
		GrantType:    GrantRefreshToken,
		RefreshToken: old.RefreshToken,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("refresh grants issued before the reset must fail, got %v", err)
	}
}

func TestPasswordResetWrongPurposeToken(t *testing.T) {
	et := newEngineTest(t, nil)
	id := et.register(t, "a@x.com")
	confirmToken := et.notifier.wait(t, PurposeEmailConfirmation, "a@x.com").Link

	if err := et.engine.ConfirmPasswordReset(context.Background(), id, confirmToken, "Efgh456!"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a confirmation token, got %v", err)
	}
	// the kind mismatch burned it
	if err := et.engine.ConfirmEmail(context.Background(), id, confirmToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected burned confirmation token, got %v", err)
	}
}

func TestPasswordResetThrottleIsSilent(t *testing.T) {
	et := newEngineTest(t, func(c *Config) {
		c.PurposeRequests.MaxRequests = 1
	})
	et.registerConfirmed(t, "a@x.com")

	for i := 0; i < 3; i++ {
		if err := et.engine.RequestPasswordReset(context.Background(), "a@x.com"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	et.notifier.wait(t, PurposePasswordReset, "a@x.com")

	time.Sleep(50 * time.Millisecond)
	if got := et.notifier.count(); got != 0 {
		t.Fatalf("expected throttled requests to send nothing, got %d", got)
	}
}

func TestChangePassword(t *testing.T) {
	et := newEngineTest(t, nil)
	id := et.registerConfirmed(t, "a@x.com")
	set := et.login(t, "a@x.com", testPassword)

	if err := et.engine.ChangePassword(context.Background(), id, "Wrong123!", "Efgh456!"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	var policyErr *PolicyError
	if err := et.engine.ChangePassword(context.Background(), id, testPassword, "short"); !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	if err := et.engine.ChangePassword(context.Background(), "missing", testPassword, "Efgh456!"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := et.engine.ChangePassword(context.Background(), id, testPassword, "Efgh456!"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	et.login(t, "a@x.com", "Efgh456!")

	_, err := et.engine.Exchange(context.Background(), GrantRequest{
		GrantType:    GrantRefreshToken,
		RefreshToken: set.RefreshToken,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected old refresh token to fail, got %v", err)
	}
}

func TestChangePasswordRevokesGrantsInRedis(t *testing.T) {
	et := newEngineTest(t, nil)
	id := et.registerConfirmed(t, "a@x.com")
	et.login(t, "a@x.com", testPassword)
	et.login(t, "a@x.com", testPassword)

	subjectKey := et.engine.config.Tokens.RefreshPrefix + "s:" + id
	if !et.mr.Exists(subjectKey) {
		t.Fatalf("expected subject index %s", subjectKey)
	}

	if err := et.engine.ChangePassword(context.Background(), id, testPassword, "Efgh456!"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if et.mr.Exists(subjectKey) {
		t.Fatal("expected subject index to be removed")
	}
}
