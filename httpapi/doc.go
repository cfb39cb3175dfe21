// Package httpapi exposes the engine over HTTP under /connect, plus /healthz
// and /metrics.
//
// # Request pipeline
//
//	requestContext -> Authenticate -> Admission -> route (-> Guard)
//
// requestContext assigns a request id and copies client IP and user agent
// into the context the engine audits with. Account endpoints answer with JSON
// {"message": ...} or {"error": ..., "message": ...}; the token endpoint uses
// the OAuth error shape.
//
// # What this package must NOT do
//
//   - Decide account or grant outcomes. Every decision is the engine's.
//   - Put internal error text in 5xx bodies.
package httpapi
