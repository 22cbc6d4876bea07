package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Queue metrics
	TracesEnqueued  prometheus.Counter
	TracesDropped   prometheus.Counter
	TracesDelivered prometheus.Counter
	PendingTraces   prometheus.Gauge
	InFlightTraces  prometheus.Gauge

	// Sink metrics
	Handshakes       *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	PayloadSize      *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// Collector metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	BatchesCollected *prometheus.CounterVec

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current totals for the JSON status endpoint
type Snapshot struct {
	TracesEnqueued    int64 `json:"traces_enqueued"`
	TracesDropped     int64 `json:"traces_dropped"`
	TracesDelivered   int64 `json:"traces_delivered"`
	DeliveryFailures  int64 `json:"delivery_failures"`
	HandshakeFailures int64 `json:"handshake_failures"`
}

// NewMetrics creates the collectors and registers them on reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TracesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_traces_enqueued_total",
			Help: "Total number of traces accepted into the pending queue",
		}),
		TracesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_traces_dropped_total",
			Help: "Total number of pending traces dropped by the queue limit",
		}),
		TracesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracker_traces_delivered_total",
			Help: "Total number of traces acknowledged by the sink",
		}),
		PendingTraces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_pending_traces",
			Help: "Traces waiting for the next flush",
		}),
		InFlightTraces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_inflight_traces",
			Help: "Traces handed to the sink and not yet acknowledged",
		}),

		Handshakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_handshakes_total",
				Help: "Session handshakes by outcome",
			},
			[]string{"sink", "outcome"},
		),
		Deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_deliveries_total",
				Help: "Batch deliveries by outcome",
			},
			[]string{"sink", "outcome"},
		),
		DeliveryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_delivery_duration_seconds",
				Help:    "Time from handing a batch to the sink until its outcome",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"sink"},
		),
		PayloadSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_payload_size_bytes",
				Help:    "Serialized batch size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"codec"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracker_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_http_requests_total",
				Help: "Total number of collector HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_http_request_duration_seconds",
				Help:    "Collector HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		BatchesCollected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_batches_total",
				Help: "Batches received by the collector",
			},
			[]string{"content_type"},
		),
	}
}

// RecordEnqueued counts an accepted trace and the resulting queue depth
func (m *Metrics) RecordEnqueued(pending int) {
	if m == nil {
		return
	}
	m.TracesEnqueued.Inc()
	m.PendingTraces.Set(float64(pending))

	m.mu.Lock()
	m.snapshot.TracesEnqueued++
	m.mu.Unlock()
}

// RecordDropped counts traces evicted by the queue limit
func (m *Metrics) RecordDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TracesDropped.Add(float64(n))

	m.mu.Lock()
	m.snapshot.TracesDropped += int64(n)
	m.mu.Unlock()
}

// SetQueues publishes the pending and in-flight sizes
func (m *Metrics) SetQueues(pending, inFlight int) {
	if m == nil {
		return
	}
	m.PendingTraces.Set(float64(pending))
	m.InFlightTraces.Set(float64(inFlight))
}

// RecordHandshake counts a handshake outcome
func (m *Metrics) RecordHandshake(sink, outcome string) {
	if m == nil {
		return
	}
	m.Handshakes.WithLabelValues(sink, outcome).Inc()
	if outcome != OutcomeSuccess {
		m.mu.Lock()
		m.snapshot.HandshakeFailures++
		m.mu.Unlock()
	}
}

// RecordDelivery counts a delivery outcome and its latency
func (m *Metrics) RecordDelivery(sink, outcome string, traces int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(sink, outcome).Inc()
	m.DeliveryDuration.WithLabelValues(sink).Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome == OutcomeSuccess {
		m.TracesDelivered.Add(float64(traces))
		m.snapshot.TracesDelivered += int64(traces)
	} else {
		m.snapshot.DeliveryFailures++
	}
}

// RecordPayload observes a serialized batch size
func (m *Metrics) RecordPayload(codec string, size int) {
	if m == nil {
		return
	}
	m.PayloadSize.WithLabelValues(codec).Observe(float64(size))
}

// SetBreakerState publishes a breaker state as its numeric value
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest records a collector HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBatchCollected counts a batch stored by the collector
func (m *Metrics) RecordBatchCollected(contentType string) {
	if m == nil {
		return
	}
	m.BatchesCollected.WithLabelValues(contentType).Inc()
}

// Snapshot returns a copy of the current totals
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
