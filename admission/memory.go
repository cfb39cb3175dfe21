package admission

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// evicted marks a slot the sweeper has unlinked. Hit never produces it: the
// count would have to reach math.MaxUint32.
const evicted = math.MaxUint64

// MemoryBackend keeps one packed word per key: the window index in the high
// 32 bits and the hit count in the low 32 bits. Updates are a CAS loop, so a
// stale window is reset and counted in the same step.
//
// The first hit of every window sweeps slots still holding an older index, so
// the map only retains keys seen in the current window. A backend serves a
// single window length.
type MemoryBackend struct {
	slots sync.Map // key -> *atomic.Uint64
	swept atomic.Uint64
	now   func() time.Time
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{now: time.Now}
}

func (m *MemoryBackend) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	now := m.now()
	index := uint64(now.UnixNano()/int64(window)) & math.MaxUint32
	if last := m.swept.Load(); last != index && m.swept.CompareAndSwap(last, index) {
		m.sweep(index)
	}

	slot := m.slot(key)
	for {
		old := slot.Load()
		if old == evicted {
			m.slots.CompareAndDelete(key, slot)
			slot = m.slot(key)
			continue
		}
		count := old & math.MaxUint32
		if old>>32 != index {
			count = 0
		}
		if count >= uint64(limit) {
			return Decision{RetryAfter: retryAfter(now, window)}, nil
		}
		if slot.CompareAndSwap(old, index<<32|(count+1)) {
			return Decision{Allowed: true}, nil
		}
	}
}

// sweep unlinks every slot whose window is not index. A slot is marked
// evicted before it leaves the map, so a concurrent Hit that already holds
// it retries against a fresh slot instead of counting into a dead one.
func (m *MemoryBackend) sweep(index uint64) {
	m.slots.Range(func(key, value any) bool {
		slot := value.(*atomic.Uint64)
		old := slot.Load()
		if old != evicted && old>>32 != index && slot.CompareAndSwap(old, evicted) {
			m.slots.CompareAndDelete(key, slot)
		}
		return true
	})
}

func (m *MemoryBackend) slot(key string) *atomic.Uint64 {
	if v, ok := m.slots.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := m.slots.LoadOrStore(key, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

func retryAfter(now time.Time, window time.Duration) time.Duration {
	elapsed := time.Duration(now.UnixNano() % int64(window))
	return window - elapsed
}
