// Package stores provides the Redis-backed record store for single-use
// purpose tokens: email confirmation, password reset and email change.
//
// # Design
//
// Each record is a versioned binary blob with a TTL. Consume runs a Lua
// script that reads and deletes the record in one step, then checks expiry,
// kind and secret hash. Because the delete happens before any check, a
// record can be read at most once. The final secret comparison is repeated
// in Go with a constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate secrets or decide
// what a consumed record authorizes; that belongs to the token issuer and
// internal/flows.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Store or log plaintext secrets.
package stores
