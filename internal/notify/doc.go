// Package notify decouples notification delivery from the request that
// produced it.
//
// [Outbox] buffers notifications and sends them from worker goroutines with
// their own timeout, so a slow or failing mail transport never fails or
// delays an account operation.
//
// # What this package must NOT do
//
//   - Retry forever or persist notifications. A lost link is recovered by
//     requesting a new one.
//   - Import goIdentity.
package notify
