package notify

import "errors"

// ErrOutboxFull is reported to the error callback when a notification is
// dropped because the buffer is full.
var ErrOutboxFull = errors.New("notification outbox full")

// ErrOutboxClosed is reported to the error callback when a notification is
// enqueued after Close.
var ErrOutboxClosed = errors.New("notification outbox closed")
