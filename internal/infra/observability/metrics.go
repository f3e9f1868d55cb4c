package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	detectionRuns    *prometheus.CounterVec
	subscriptions    *prometheus.CounterVec
	recordsIngested  prometheus.Counter
	groupsConsidered prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subtrack_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtrack_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtrack_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtrack_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		detectionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtrack_detection_runs_total",
				Help: "Total detection runs by outcome.",
			},
			[]string{"status"},
		),
		subscriptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subtrack_subscriptions_upserted_total",
				Help: "Subscriptions created or refreshed by detection.",
			},
			[]string{"action"},
		),
		recordsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "subtrack_records_ingested_total",
				Help: "Transaction records persisted from the feed or seeder.",
			},
		),
		groupsConsidered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "subtrack_detection_groups_total",
				Help: "Candidate merchant groups evaluated by detection.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrDetectionRun increments the detection run counter with an outcome
// label ("success" or "error").
func (m *Metrics) IncrDetectionRun(status string) {
	m.detectionRuns.WithLabelValues(status).Inc()
}

// IncrSubscriptionUpsert counts a created or refreshed subscription.
func (m *Metrics) IncrSubscriptionUpsert(action string) {
	m.subscriptions.WithLabelValues(action).Inc()
}

// AddRecordsIngested counts persisted transaction records.
func (m *Metrics) AddRecordsIngested(n int) {
	m.recordsIngested.Add(float64(n))
}

// AddGroupsConsidered counts evaluated candidate groups.
func (m *Metrics) AddGroupsConsidered(n int) {
	m.groupsConsidered.Add(float64(n))
}

// GetDetectionSnapshot returns cumulative detection counters suitable for
// the GET /v1/metrics/detection endpoint.
func (m *Metrics) GetDetectionSnapshot() *domain.DetectionMetrics {
	// Prometheus counters expose cumulative values.
	successRuns := getCounterValue(m.detectionRuns, "success")
	errorRuns := getCounterValue(m.detectionRuns, "error")
	created := getCounterValue(m.subscriptions, "created")
	refreshed := getCounterValue(m.subscriptions, "refreshed")
	cacheHits := getCounterValue(m.cacheHits, "subscriptions")
	cacheMisses := getCounterValue(m.cacheMisses, "subscriptions")

	totalRuns := successRuns + errorRuns
	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRuns > 0 {
		errorRate = errorRuns / totalRuns
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.DetectionMetrics{
		TotalRuns:            int64(totalRuns),
		ErrorRate:            errorRate,
		SubscriptionsCreated: int64(created),
		SubscriptionsUpdated: int64(refreshed),
		RecordsIngested:      int64(getSingleCounterValue(m.recordsIngested)),
		GroupsConsidered:     int64(getSingleCounterValue(m.groupsConsidered)),
		CacheHitRate:         cacheHitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getSingleCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
