// Package internal contains helpers that are private to goIdentity: opaque
// token encoding, record ids and security stamps.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: process settings from environment and flags
//   - domain: account, principal and token types plus the error taxonomy
//   - flows: flow orchestrators behind every Engine operation
//   - limiters: purpose-token request throttle
//   - notify: async notification outbox
//   - rate: fixed-window Redis counter primitive
//   - stores: Redis purpose-token store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Log or return raw secrets beyond the encoded token handed to the caller.
package internal
