package audit

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DrainStats describes the final flush performed by Close.
type DrainStats struct {
	// Pending is the number of events still buffered when Close started.
	Pending int
	Elapsed time.Duration
}

// DroppedEvent is the drop count of one event type.
type DroppedEvent struct {
	EventType string
	Count     uint64
}

// Dispatcher forwards audit events to a sink on one background goroutine, so
// the account and grant paths never wait on audit I/O. Drops are counted per
// event type: losing a burst of password_grant events reads differently from
// losing a single password_reset_confirm.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	ch     chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
	drain  DrainStats
	closed bool
	// mu orders Emit against Close: Emit sends under the read lock, Close
	// marks the dispatcher closed under the write lock.
	mu        sync.RWMutex
	closeOnce sync.Once

	dropped atomic.Uint64
	byType  sync.Map // event type -> *atomic.Uint64
}

// NewDispatcher starts a dispatcher goroutine. It returns nil when cfg is
// disabled; every method is nil-safe.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
		now:  time.Now,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues event. With DropIfFull a full buffer drops the event and
// counts it against its type; otherwise Emit blocks until there is room or
// ctx ends. Events emitted after Close are discarded without counting.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.countDrop(event.EventType)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.countDrop(event.EventType)
	}
}

func (d *Dispatcher) countDrop(eventType string) {
	d.dropped.Add(1)
	if v, ok := d.byType.Load(eventType); ok {
		v.(*atomic.Uint64).Add(1)
		return
	}
	v, _ := d.byType.LoadOrStore(eventType, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

// Close stops accepting events and drains the buffer into the sink. The
// returned stats describe that drain; later calls return the same stats.
func (d *Dispatcher) Close() DrainStats {
	if d == nil {
		return DrainStats{}
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		pending := len(d.ch)
		start := d.now()
		close(d.done)
		d.mu.Unlock()

		d.wg.Wait()
		d.drain = DrainStats{Pending: pending, Elapsed: d.now().Sub(start)}
	})
	return d.drain
}

// Dropped reports how many events were discarded, across all types.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType reports the drop count of every event type that lost at
// least one event, highest count first.
func (d *Dispatcher) DroppedByType() []DroppedEvent {
	if d == nil {
		return nil
	}

	var out []DroppedEvent
	d.byType.Range(func(key, value any) bool {
		out = append(out, DroppedEvent{EventType: key.(string), Count: value.(*atomic.Uint64).Load()})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}
