// Package rate provides the Redis fixed-window counter shared by admission
// control and the purpose-request throttle.
//
// # Window semantics
//
// INCR + conditional PEXPIRE on the first hit. Keys are namespaced by the
// prefix given to [NewWindow]:
//   - gia:  admission tiers
//   - gipr: purpose-token requests per account
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters and admission).
package rate
