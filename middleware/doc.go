// Package middleware adapts the engine's bearer-token check and the admission
// limiter to net/http.
//
// # Chain
//
//	Authenticate -> Admission -> (Guard on protected routes) -> handler
//
// [Authenticate] only records a verified principal so [Admission] can pick the
// tier; it never rejects. [Guard] rejects requests without a principal.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Authenticator).
//   - Count requests itself (delegates to admission.Limiter).
package middleware
