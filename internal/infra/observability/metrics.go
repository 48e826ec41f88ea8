package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	analysisDuration *prometheus.HistogramVec
	anomaliesFound   *prometheus.GaugeVec
	ingestedRows     *prometheus.CounterVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	tokensUsed       *prometheus.CounterVec
	advisorRequests  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendlens_analysis_duration_seconds",
				Help:    "Duration of an analysis stage by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		anomaliesFound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spendlens_anomalies_found",
				Help: "Anomalies in the latest analysis by kind.",
			},
			[]string{"kind"},
		),
		ingestedRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_ingested_rows_total",
				Help: "Transactions ingested by source.",
			},
			[]string{"source"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		advisorRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendlens_advisor_requests_total",
				Help: "Advisor requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordAnalysisDuration records the duration of an analysis stage.
func (m *Metrics) RecordAnalysisDuration(operation string, d time.Duration) {
	m.analysisDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetAnomalies records how many anomalies of a kind the latest run found.
func (m *Metrics) SetAnomalies(kind string, n int) {
	m.anomaliesFound.WithLabelValues(kind).Set(float64(n))
}

// AddIngestedRows counts transactions accepted from a source.
func (m *Metrics) AddIngestedRows(source string, n int) {
	m.ingestedRows.WithLabelValues(source).Add(float64(n))
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

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrAdvisorRequest increments the advisor request counter with a status label.
func (m *Metrics) IncrAdvisorRequest(status string) {
	m.advisorRequests.WithLabelValues(status).Inc()
}

// GetAdvisorSnapshot returns a snapshot of advisor-related metrics suitable
// for the GET /v1/metrics/advisor endpoint.
func (m *Metrics) GetAdvisorSnapshot() *domain.AdvisorMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	totalRequests := getCounterValue(m.advisorRequests, "success") +
		getCounterValue(m.advisorRequests, "error")
	errorCount := getCounterValue(m.advisorRequests, "error")
	cacheHits := getCounterValue(m.cacheHits, "report")
	cacheMisses := getCounterValue(m.cacheMisses, "report")

	totalTokens := promptTokens + completionTokens
	avgTokens := float64(0)
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		avgTokens = totalTokens / totalRequests
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.AdvisorMetrics{
		TotalRequests:       int64(totalRequests),
		ErrorRate:           errorRate,
		AvgTokensPerRequest: avgTokens,
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
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
