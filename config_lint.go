package goIdentity

import "time"

// LintWarning is a configuration choice that is valid but worth a second
// look before production.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports risky but valid settings. It never fails; use [Config.Validate]
// for hard errors.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", "JWT leeway above 30s widens the replay window of expired tokens")
	}
	if c.JWT.AccessTTL > time.Hour {
		add("access_ttl_long", "access tokens cannot be revoked; keep AccessTTL under an hour")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", "refresh grants live longer than 30 days")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("hs256_shared_secret", "hs256 shares the signing key with every verifier")
	}
	if c.Tokens.PurposeTTL > 72*time.Hour {
		add("purpose_ttl_long", "purpose tokens stay valid for more than three days")
	}
	if !c.PurposeRequests.Enabled {
		add("purpose_throttle_disabled", "password reset and confirmation requests are not throttled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "account and grant events are not audited")
	}
	if !c.Security.RevokeGrantsOnCredentialChange {
		add("grants_survive_credential_change", "refresh grants are only rejected lazily after a password change")
	}
	if !c.Security.DummyPasswordHashing {
		add("dummy_hashing_disabled", "password grant timing reveals whether an account exists")
	}
	if c.Links.BaseURL == "" {
		add("links_base_url_missing", "notifications will carry bare tokens instead of links")
	}

	return ws
}
