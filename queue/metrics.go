package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	renewalOK    = "ok"
	renewalStale = "stale"
	renewalError = "error"
	renewalLimit = "limit"

	resultOK    = "ok"
	resultStale = "stale"
	resultError = "error"
)

// Metrics holds the Prometheus collectors for the producer and consumer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	leased             prometheus.Counter
	emptyPolls         prometheus.Counter
	enqueued           prometheus.Counter
	renewals           *prometheus.CounterVec
	deletes            *prometheus.CounterVec
	processed          *prometheus.CounterVec
	processingDuration prometheus.Histogram
}

// NewMetrics creates the collectors. Call [Metrics.Register] to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		leased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderqueue_messages_leased_total",
			Help: "Messages leased from the queue.",
		}),
		emptyPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderqueue_empty_polls_total",
			Help: "Dequeue attempts that found the queue empty.",
		}),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderqueue_messages_enqueued_total",
			Help: "Messages placed on the queue.",
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderqueue_lease_renewals_total",
			Help: "Heartbeat lease renewals by result.",
		}, []string{"result"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderqueue_messages_deleted_total",
			Help: "Delete calls for processed messages by result.",
		}, []string{"result"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderqueue_processing_total",
			Help: "Processor invocations by result.",
		}, []string{"result"}),
		processingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderqueue_processing_duration_seconds",
			Help:    "Time spent in the processor per message.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.leased, m.emptyPolls, m.enqueued, m.renewals, m.deletes, m.processed, m.processingDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

func (m *Metrics) lease() {
	if m != nil {
		m.leased.Inc()
	}
}

func (m *Metrics) emptyPoll() {
	if m != nil {
		m.emptyPolls.Inc()
	}
}

func (m *Metrics) enqueue() {
	if m != nil {
		m.enqueued.Inc()
	}
}

func (m *Metrics) renewal(result string) {
	if m != nil {
		m.renewals.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) deleted(result string) {
	if m != nil {
		m.deletes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) process(result string, elapsed time.Duration) {
	if m != nil {
		m.processed.WithLabelValues(result).Inc()
		m.processingDuration.Observe(elapsed.Seconds())
	}
}
