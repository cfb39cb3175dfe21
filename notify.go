package goIdentity

import (
	"context"
	"net/url"
	"strings"

	"github.com/MrEthical07/goIdentity/logging"
)

// LogNotifier is a [Notifier] that writes notifications to a logger instead
// of sending mail. Links carry live tokens, so they are only logged when
// exposeLinks is set (local development).
type LogNotifier struct {
	log         logging.Logger
	exposeLinks bool
}

// NewLogNotifier returns a LogNotifier. A nil log discards everything.
func NewLogNotifier(log logging.Logger, exposeLinks bool) *LogNotifier {
	if log == nil {
		log = logging.Nop()
	}
	return &LogNotifier{log: log, exposeLinks: exposeLinks}
}

func (n *LogNotifier) Send(ctx context.Context, msg Notification) error {
	args := []any{
		"to", msg.To,
		"purpose", msg.Purpose.String(),
		"account_id", msg.AccountID,
	}
	if n.exposeLinks {
		args = append(args, "link", msg.Link)
	}
	n.log.Info(ctx, "notification", args...)
	return nil
}

// linkBuilder renders the link placed in a notification. With no BaseURL
// the bare token is used.
func linkBuilder(cfg LinkConfig) func(kind PurposeKind, accountID, extra, token string) string {
	base := strings.TrimRight(cfg.BaseURL, "/")

	return func(kind PurposeKind, accountID, extra, token string) string {
		if base == "" {
			return token
		}

		q := url.Values{}
		q.Set("userId", accountID)

		var path string
		switch kind {
		case PurposeEmailConfirmation:
			path = cfg.ConfirmEmailPath
		case PurposePasswordReset:
			path = cfg.ResetPasswordPath
		case PurposeEmailChange:
			path = cfg.ConfirmEmailChangePath
			q.Set("newEmail", extra)
		default:
			return token
		}
		q.Set("token", token)

		return base + path + "?" + q.Encode()
	}
}
