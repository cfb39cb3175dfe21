// Package goIdentity is an identity provider core: account registration,
// email confirmation, password reset and change, email change, and the
// password and refresh-token grants of an OAuth-style token endpoint.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([CredentialStore], [TokenIssuer], [Notifier])
// and the error taxonomy. Flow orchestration, purpose-token storage, request
// throttling, notification delivery and audit dispatch live under internal/.
//
// # Consistency
//
// Every account mutation is a compare-and-swap on [Account].Version. A
// conflicting write re-reads the account and re-checks the transition, so
// two concurrent requests can never both apply a change that only one of
// them was entitled to. Purpose tokens and refresh tokens are single-use.
//
// # What this package must NOT do
//
//   - Log or return password hashes, purpose tokens or refresh secrets.
//   - Let a notification or audit failure fail the request that produced it.
//   - Import any sub-package that re-imports goIdentity (no import cycles).
package goIdentity
