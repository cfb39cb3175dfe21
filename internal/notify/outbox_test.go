package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
	gate chan struct{}
}

func (r *recordingNotifier) Send(ctx context.Context, n domain.Notification) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestOutboxDeliversBeforeClose(t *testing.T) {
	rec := &recordingNotifier{}
	o := NewOutbox(Config{BufferSize: 8, Workers: 2}, rec, nil)

	for i := 0; i < 5; i++ {
		o.Enqueue(context.Background(), domain.Notification{To: "a@x.com", Purpose: domain.PurposeEmailConfirmation})
	}
	o.Close()

	if rec.count() != 5 {
		t.Fatalf("expected 5 deliveries, got %d", rec.count())
	}
	sent, failed, dropped := o.Stats()
	if sent != 5 || failed != 0 || dropped != 0 {
		t.Fatalf("unexpected stats sent=%d failed=%d dropped=%d", sent, failed, dropped)
	}
}

func TestOutboxReportsFailures(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("smtp down")}
	var (
		mu   sync.Mutex
		errs []error
	)
	o := NewOutbox(Config{BufferSize: 4}, rec, func(_ domain.Notification, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	o.Enqueue(context.Background(), domain.Notification{To: "a@x.com"})
	o.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 {
		t.Fatalf("expected one reported failure, got %d", len(errs))
	}
	if _, failed, _ := o.Stats(); failed != 1 {
		t.Fatalf("expected failed=1, got %d", failed)
	}
}

func TestOutboxEnqueueNeverBlocks(t *testing.T) {
	rec := &recordingNotifier{gate: make(chan struct{})}
	o := NewOutbox(Config{BufferSize: 1, Workers: 1, SendTimeout: time.Second}, rec, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			o.Enqueue(context.Background(), domain.Notification{To: "a@x.com"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Enqueue blocked on a stalled notifier")
	}

	if _, _, dropped := o.Stats(); dropped == 0 {
		t.Fatalf("expected drops with a stalled notifier")
	}
	close(rec.gate)
	o.Close()
}

func TestOutboxEnqueueAfterCloseIsReported(t *testing.T) {
	rec := &recordingNotifier{}
	var closedErrs int
	o := NewOutbox(Config{BufferSize: 4}, rec, func(_ domain.Notification, err error) {
		if errors.Is(err, ErrOutboxClosed) {
			closedErrs++
		}
	})
	o.Close()

	o.Enqueue(context.Background(), domain.Notification{To: "a@x.com"})

	if closedErrs != 1 {
		t.Fatalf("expected ErrOutboxClosed reported once, got %d", closedErrs)
	}
	if sent, _, dropped := o.Stats(); sent != 0 || dropped != 1 {
		t.Fatalf("unexpected stats sent=%d dropped=%d", sent, dropped)
	}
}

func TestOutboxEnqueueRacingCloseLosesNothing(t *testing.T) {
	const producers, perProducer = 16, 64

	for round := 0; round < 20; round++ {
		rec := &recordingNotifier{}
		o := NewOutbox(Config{BufferSize: producers * perProducer, Workers: 2}, rec, nil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perProducer; i++ {
					o.Enqueue(context.Background(), domain.Notification{To: "a@x.com"})
				}
			}()
		}
		close(start)
		o.Close()
		wg.Wait()

		sent, failed, dropped := o.Stats()
		if failed != 0 {
			t.Fatalf("round %d: unexpected failures %d", round, failed)
		}
		if sent+dropped != producers*perProducer {
			t.Fatalf("round %d: sent=%d dropped=%d, want total %d", round, sent, dropped, producers*perProducer)
		}
		if int(sent) != rec.count() {
			t.Fatalf("round %d: stats report %d sent, notifier saw %d", round, sent, rec.count())
		}
	}
}

func TestOutboxNilSafe(t *testing.T) {
	var o *Outbox
	o.Enqueue(context.Background(), domain.Notification{})
	o.Close()
	if sent, failed, dropped := o.Stats(); sent+failed+dropped != 0 {
		t.Fatalf("nil outbox must report zero stats")
	}
}
