package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer, in which case nothing is recorded.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	refreshes        *prometheus.CounterVec
	readings         prometheus.Counter
	cardsPublished   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodos_upstream_requests_total",
			Help: "Requests made to the telemetry API, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nodos_upstream_request_duration_seconds",
			Help:    "Latency of requests made to the telemetry API.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"endpoint"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodos_card_refreshes_total",
			Help: "Node card refresh runs, by outcome.",
		}, []string{"outcome"}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nodos_readings_processed_total",
			Help: "Readings passed through the reshaping pipeline.",
		}),
		cardsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodos_cards_published_total",
			Help: "Node cards pushed to outbound sinks, by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}

	reg.MustRegister(m.upstreamRequests, m.upstreamLatency, m.refreshes, m.readings, m.cardsPublished)

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveRequest(endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) RefreshDone(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ReadingsProcessed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.readings.Add(float64(n))
}

func (m *Metrics) Published(sink string, err error) {
	if m == nil {
		return
	}
	m.cardsPublished.WithLabelValues(sink, outcome(err)).Inc()
}
