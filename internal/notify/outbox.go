package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// Config controls outbox buffering and delivery.
type Config struct {
	BufferSize  int
	Workers     int
	SendTimeout time.Duration
}

// Outbox hands notifications to a [domain.Notifier] on background workers.
// Enqueue never blocks: a full buffer drops the notification and counts it.
//
// mu orders Enqueue against Close. Enqueue sends under the read lock and
// Close flips closed under the write lock, so once Close holds it no send is
// in flight and the workers' final drain sees every accepted notification.
type Outbox struct {
	cfg      Config
	notifier domain.Notifier
	onError  func(domain.Notification, error)

	ch        chan domain.Notification
	done      chan struct{}
	wg        sync.WaitGroup
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewOutbox starts cfg.Workers delivery goroutines. onError, when set, is
// called for every failed send.
func NewOutbox(cfg Config, notifier domain.Notifier, onError func(domain.Notification, error)) *Outbox {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if onError == nil {
		onError = func(domain.Notification, error) {}
	}

	o := &Outbox{
		cfg:      cfg,
		notifier: notifier,
		onError:  onError,
		ch:       make(chan domain.Notification, cfg.BufferSize),
		done:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.run()
	}

	return o
}

func (o *Outbox) run() {
	defer o.wg.Done()

	for {
		select {
		case n := <-o.ch:
			o.deliver(n)
		case <-o.done:
			for {
				select {
				case n := <-o.ch:
					o.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (o *Outbox) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SendTimeout)
	defer cancel()

	if err := o.notifier.Send(ctx, n); err != nil {
		o.failed.Add(1)
		o.onError(n, err)
		return
	}
	o.sent.Add(1)
}

// Enqueue queues n for delivery. The request context is deliberately not
// carried over: delivery outlives the request that produced it.
func (o *Outbox) Enqueue(_ context.Context, n domain.Notification) {
	if o == nil {
		return
	}

	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.dropped.Add(1)
		o.onError(n, ErrOutboxClosed)
		return
	}
	select {
	case o.ch <- n:
		o.mu.RUnlock()
	default:
		o.mu.RUnlock()
		o.dropped.Add(1)
		o.onError(n, ErrOutboxFull)
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (o *Outbox) Close() {
	if o == nil {
		return
	}
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.done)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

// Stats reports delivery counters.
func (o *Outbox) Stats() (sent, failed, dropped uint64) {
	if o == nil {
		return 0, 0, 0
	}
	return o.sent.Load(), o.failed.Load(), o.dropped.Load()
}
