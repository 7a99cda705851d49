package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rahoverlay"

// Metrics holds the poller's Prometheus instruments
type Metrics struct {
	ticks           prometheus.Counter
	skipped         *prometheus.CounterVec
	emitted         *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	fallbacks       prometheus.Counter
	computeFailures prometheus.Counter
	laps            prometheus.Counter
	archiveErrors   prometheus.Counter
	connected       prometheus.Gauge
	tickDuration    prometheus.Histogram
}

// NewMetrics registers the poller instruments on reg. A nil reg yields
// instruments that are never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Poll ticks that produced a record",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Poll ticks skipped, by reason",
		}, []string{"reason"}),
		emitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events handed to the broadcast hub, by event",
		}, []string{"event"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped for slow subscribers, by channel",
		}, []string{"channel"}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_records_total",
			Help:      "Records emitted with fallback derived metrics",
		}),
		computeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_failures_total",
			Help:      "Recovered metrics computation failures",
		}),
		laps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "laps_recorded_total",
			Help:      "Laps appended to the lap history",
		}),
		archiveErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Laps the archive failed to store",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sim_connected",
			Help:      "1 while the simulator is connected",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent computing and emitting one tick",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .016, .033},
		}),
	}
}

// Dropped counts an event dropped by the broadcast hub
func (m *Metrics) Dropped(channel string) {
	m.dropped.WithLabelValues(channel).Inc()
}

// ComputeFailed counts a recovered computation failure
func (m *Metrics) ComputeFailed(error) {
	m.computeFailures.Inc()
}
