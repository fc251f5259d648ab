package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFeedRequests        = "feed_requests_total"
	MetricFeedEmptyPages      = "feed_empty_pages_total"
	MetricFeedCandidates      = "feed_candidates_scored_total"
	MetricFeedRankingDuration = "feed_ranking_duration_seconds"
)

// Metrics contains Prometheus metrics for the feed pipeline.
// All operations are thread-safe.
type Metrics struct {
	requests        *prometheus.CounterVec
	emptyPages      *prometheus.CounterVec
	candidates      prometheus.Counter
	rankingDuration prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedRequests,
				Help: "Total number of feed requests by feed type and outcome",
			},
			[]string{"feed", "status"},
		),
		emptyPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedEmptyPages,
				Help: "Total number of feed requests that returned an empty page",
			},
			[]string{"feed"},
		),
		candidates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFeedCandidates,
				Help: "Total number of candidate posts scored by the discovery pipeline",
			},
		),
		rankingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricFeedRankingDuration,
				Help:    "Discovery ranking pipeline duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requests,
		m.emptyPages,
		m.candidates,
		m.rankingDuration,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRequests increments the feed request counter.
func (m *Metrics) IncRequests(feedType, status string) {
	m.requests.WithLabelValues(feedType, status).Inc()
}

// IncEmptyPages increments the empty page counter.
func (m *Metrics) IncEmptyPages(feedType string) {
	m.emptyPages.WithLabelValues(feedType).Inc()
}

// AddCandidates records the number of candidates scored in one request.
func (m *Metrics) AddCandidates(n int) {
	m.candidates.Add(float64(n))
}

// ObserveRankingDuration records the pipeline duration in seconds.
func (m *Metrics) ObserveRankingDuration(seconds float64) {
	m.rankingDuration.Observe(seconds)
}
