// Package admission bounds how many requests a caller may start per fixed
// window before any engine work runs.
//
// # Tiers
//
//   - [TierAnonymous]: callers without a valid bearer token, partitioned by
//     client IP. Default 10 per minute.
//   - [TierAuthenticated]: callers with a valid access token, partitioned by
//     subject. Default 30 per minute.
//
// With [Config].Global set every caller of a tier shares one budget.
//
// # Backends
//
//   - [MemoryBackend]: per-process, one packed (window, count) word per
//     partition updated with compare-and-swap.
//   - [RedisBackend]: INCR + PEXPIRE on first hit through internal/rate, shared
//     by every replica.
//
// # What this package must NOT do
//
//   - Authenticate callers. The middleware picks the tier.
//   - Queue rejected requests.
package admission
