// Package flows holds the orchestration for every Engine operation.
//
// Each Run* function takes a typed dependency struct and talks to the outside
// world only through it: the credential store, the token issuer, the
// notification hook, metrics and audit callbacks. The account state machine
// itself is the pure [Apply] function; [Commit] turns it into an atomic
// read-check-write against the store.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Construct tokens. Token material is always produced by the issuer.
package flows
