// Package metrics provides Prometheus collectors for the job runner and the
// read-path caches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricJobsTotal       = "curation_jobs_total"
	MetricJobsDuration    = "curation_jobs_duration_seconds"
	MetricJobErrorsTotal  = "curation_job_errors_total"
	MetricCacheLookups    = "curation_cache_lookups_total"
	MetricEmbeddingsTotal = "curation_embedding_calls_total"
)

// Job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeRetried   = "retried"
	OutcomeCancelled = "cancelled"
)

// Cache lookup results.
const (
	CacheHitLocal  = "local_hit"
	CacheHitShared = "shared_hit"
	CacheMiss      = "miss"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	jobsTotal      *prometheus.CounterVec
	jobsDuration   *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	embeddingCalls *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobsTotal,
				Help: "Background jobs finished by type and outcome",
			},
			[]string{"job_type", "outcome"},
		),
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricJobsDuration,
				Help:    "Background job run time in seconds by type",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobErrorsTotal,
				Help: "Background job failures by type and error kind",
			},
			[]string{"job_type", "kind"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookups,
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		embeddingCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEmbeddingsTotal,
				Help: "External embedding calls by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.jobsTotal, m.jobsDuration, m.jobErrors, m.cacheLookups, m.embeddingCalls}
}

func (m *Metrics) IncJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(jobType, outcome).Inc()
}

func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	if m == nil {
		return
	}
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

func (m *Metrics) IncJobError(jobType, kind string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(jobType, kind).Inc()
}

func (m *Metrics) IncCacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) IncEmbeddingCall(outcome string) {
	if m == nil {
		return
	}
	m.embeddingCalls.WithLabelValues(outcome).Inc()
}
