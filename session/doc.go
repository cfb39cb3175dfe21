// Package session provides Redis-backed persistence for refresh grants and
// the compact binary grant encoding.
//
// # Binary encoding
//
// The refresh hash and the expiry sit at fixed offsets right after the
// version byte so the rotation script can compare and swap the hash without
// parsing the variable-length tail (subject, name, stamp, scopes).
//
// # Rotation
//
// [Store.RotateRefreshHash] is a single Lua compare-and-swap. A presented hash
// that does not match the stored one means the token was already rotated by
// someone else: the grant is deleted and [ErrRefreshHashMismatch] returned.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Grant] model. It does NOT sign
// access tokens, look up accounts or compare security stamps; those belong to
// the token issuer and the engine.
//
// # What this package must NOT do
//
//   - Import goIdentity or jwt (no upward imports).
//   - Store plaintext refresh secrets in [Grant] fields.
package session
