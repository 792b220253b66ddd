package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	channelState *prometheus.GaugeVec
	pollsTotal   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	staleness    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		channelState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_channel_state",
				Help: "Current stream channel state per topic (0=connecting 1=open 2=degraded 3=reconnecting 4=closed)",
			},
			[]string{"topic"},
		),
		pollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_polls_total",
				Help: "Total snapshot polls issued per topic and outcome",
			},
			[]string{"topic", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		staleness: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_staleness_seconds",
				Help: "Age of the last update per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordChannelState records the current stream channel state for a topic.
func (r *Recorder) RecordChannelState(topic string, state int) {
	r.channelState.WithLabelValues(topic).Set(float64(state))
}

// RecordPoll records a snapshot poll outcome ("ok", "error", "stale").
func (r *Recorder) RecordPoll(topic, outcome string) {
	r.pollsTotal.WithLabelValues(topic, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordStaleness records the age of the last update for a symbol.
func (r *Recorder) RecordStaleness(symbol string, seconds float64) {
	r.staleness.WithLabelValues(symbol).Set(seconds)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
