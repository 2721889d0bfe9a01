// Package metrics provides Prometheus instrumentation for the daemon.
//
// Metrics exposed:
//   - buoyd_ingest_readings_total: Counter of readings applied, by channel
//   - buoyd_ingest_failures_total: Counter of ingest failures, by channel and reason
//   - buoyd_queue_polls_total: Counter of queue receive calls, by outcome
//   - buoyd_queue_acked_total: Counter of acknowledged queue messages
//   - buoyd_queue_batch_size: Histogram of non-empty batch sizes
//   - buoyd_http_requests_total: Counter of HTTP requests, by route and status
//   - buoyd_http_request_duration_seconds: Histogram of HTTP request durations
//   - buoyd_store_update_duration_seconds: Histogram of store write latency
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcome label values.
const (
	PollOutcomeBatch = "batch"
	PollOutcomeEmpty = "empty"
	PollOutcomeError = "error"
)

// Ingest channel label values.
const (
	ChannelHTTP  = "http"
	ChannelQueue = "queue"
)

type Metrics struct {
	ReadingsIngested    *prometheus.CounterVec
	IngestFailures      *prometheus.CounterVec
	QueuePolls          *prometheus.CounterVec
	QueueAcked          prometheus.Counter
	QueueBatchSize      prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StoreUpdateDuration prometheus.Histogram
}

// New registers the metric set on reg. Pass prometheus.DefaultRegisterer in
// the daemon and a fresh prometheus.NewRegistry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReadingsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buoyd_ingest_readings_total",
			Help: "Total readings applied to the store, by producer channel",
		}, []string{"channel"}),

		IngestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buoyd_ingest_failures_total",
			Help: "Total ingest failures, by producer channel and reason",
		}, []string{"channel", "reason"}),

		QueuePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buoyd_queue_polls_total",
			Help: "Total queue receive calls, by outcome",
		}, []string{"outcome"}),

		QueueAcked: factory.NewCounter(prometheus.CounterOpts{
			Name: "buoyd_queue_acked_total",
			Help: "Total queue messages acknowledged after a successful apply",
		}),

		QueueBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "buoyd_queue_batch_size",
			Help:    "Size of non-empty receive batches",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buoyd_http_requests_total",
			Help: "Total HTTP requests, by route and status code",
		}, []string{"route", "code"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "buoyd_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		StoreUpdateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "buoyd_store_update_duration_seconds",
			Help:    "Latency of store update calls",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordIngest(channel string, count int) {
	m.ReadingsIngested.WithLabelValues(channel).Add(float64(count))
}

func (m *Metrics) RecordIngestFailure(channel, reason string) {
	m.IngestFailures.WithLabelValues(channel, reason).Inc()
}

func (m *Metrics) RecordPoll(outcome string) {
	m.QueuePolls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordBatch(size int) {
	m.QueueBatchSize.Observe(float64(size))
}

func (m *Metrics) RecordAck() {
	m.QueueAcked.Inc()
}

func (m *Metrics) RecordHTTPRequest(route, code string) {
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
}

func (m *Metrics) ObserveHTTPDuration(route string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) ObserveStoreUpdate(seconds float64) {
	m.StoreUpdateDuration.Observe(seconds)
}
