package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter or histogram.
type MetricID uint16

const (
	// MetricRegisterSuccess counts accounts created by Register.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts Register calls rejected because the email was taken.
	MetricRegisterDuplicate
	MetricRegisterFailure
	MetricEmailConfirmSuccess
	MetricEmailConfirmFailure
	MetricConfirmationResent
	// MetricPasswordResetRequest counts reset requests that issued a token.
	MetricPasswordResetRequest
	// MetricPasswordResetSuppressed counts reset requests answered without issuing a token (unknown, unconfirmed or throttled).
	MetricPasswordResetSuppressed
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricEmailChangeRequest
	MetricEmailChangeSuccess
	MetricEmailChangeFailure
	MetricProfileUpdate
	// MetricPurposeRequestThrottled counts token-producing requests denied by the per-account throttle.
	MetricPurposeRequestThrottled
	MetricPasswordGrantSuccess
	MetricPasswordGrantFailure
	MetricRefreshGrantSuccess
	MetricRefreshGrantFailure
	MetricUnsupportedGrant
	MetricLogout
	// MetricAdmissionRejected counts requests rejected by admission control.
	MetricAdmissionRejected
	// MetricNotificationDropped counts notifications dropped because the outbox was full.
	MetricNotificationDropped
	// MetricNotificationFailed counts notifications the Notifier failed to deliver.
	MetricNotificationFailed
	// MetricGrantLatency is the token endpoint latency histogram.
	MetricGrantLatency
	metricIDCount
)

// GaugeID names one sampled gauge. Gauges read a source function at
// snapshot time instead of being incremented.
type GaugeID uint16

const (
	// GaugeAdmissionInFlight is the number of admitted requests still being
	// served.
	GaugeAdmissionInFlight GaugeID = iota
	gaugeIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line padded atomic counters and a fixed-bucket latency
// histogram. A disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
	gauges        [gaugeIDCount]atomic.Pointer[func() int64]
}

// MetricsSnapshot is a point-in-time copy of every counter, histogram and
// registered gauge.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	Gauges     map[GaugeID]int64
}

// NewMetrics returns a Metrics honoring cfg. Latency histograms need both
// Enabled and EnableLatencyHistograms.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only [MetricGrantLatency] has
// a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricGrantLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// SetGauge registers fn as the source of gauge id. A nil fn unregisters it.
func (m *Metrics) SetGauge(id GaugeID, fn func() int64) {
	if m == nil || id >= gaugeIDCount {
		return
	}
	if fn == nil {
		m.gauges[id].Store(nil)
		return
	}
	m.gauges[id].Store(&fn)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			Gauges:     map[GaugeID]int64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
		Gauges:     make(map[GaugeID]int64, int(gaugeIDCount)),
	}

	for id := GaugeID(0); id < gaugeIDCount; id++ {
		if fn := m.gauges[id].Load(); fn != nil {
			s.Gauges[id] = (*fn)()
		}
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricGrantLatency].buckets[i])
		}
		s.Histograms[MetricGrantLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
