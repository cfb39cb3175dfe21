package goIdentity

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/MrEthical07/goIdentity/logging"
)

func TestLinkBuilderBareToken(t *testing.T) {
	build := linkBuilder(defaultConfig().Links)
	if got := build(PurposePasswordReset, "acct-1", "", "tok"); got != "tok" {
		t.Fatalf("expected bare token, got %q", got)
	}
}

func TestLinkBuilderURLs(t *testing.T) {
	links := defaultConfig().Links
	links.BaseURL = "https://id.example.com/"
	build := linkBuilder(links)

	tests := []struct {
		kind     PurposeKind
		extra    string
		path     string
		newEmail string
	}{
		{PurposeEmailConfirmation, "", "/connect/confirm-email", ""},
		{PurposePasswordReset, "", "/reset-password", ""},
		{PurposeEmailChange, "n+1@x.com", "/connect/confirm-email-change", "n+1@x.com"},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			raw := build(tc.kind, "acct-1", tc.extra, "tok/en")
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("invalid link %q: %v", raw, err)
			}
			if u.Host != "id.example.com" || u.Path != tc.path {
				t.Fatalf("unexpected link %q", raw)
			}
			q := u.Query()
			if q.Get("userId") != "acct-1" || q.Get("token") != "tok/en" || q.Get("newEmail") != tc.newEmail {
				t.Fatalf("unexpected query %q", u.RawQuery)
			}
		})
	}
}

func TestLogNotifierHidesLinks(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logging.New(&buf, "json", "info"), false)

	msg := Notification{To: "a@x.com", Purpose: PurposePasswordReset, AccountID: "acct-1", Link: "secret-token"}
	if err := n.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"purpose":"password_reset"`) || !strings.Contains(out, "a@x.com") {
		t.Fatalf("unexpected log line: %s", out)
	}
	if strings.Contains(out, "secret-token") {
		t.Fatalf("link leaked: %s", out)
	}

	buf.Reset()
	n = NewLogNotifier(logging.New(&buf, "json", "info"), true)
	_ = n.Send(context.Background(), msg)
	if !strings.Contains(buf.String(), "secret-token") {
		t.Fatalf("expected link when exposed: %s", buf.String())
	}
}

func TestLogNotifierNilLogger(t *testing.T) {
	if err := NewLogNotifier(nil, true).Send(context.Background(), Notification{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}
