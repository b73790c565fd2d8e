package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tierTotal     *prometheus.CounterVec
	tierLatency   *prometheus.HistogramVec
	cacheTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	journalFlush  *prometheus.CounterVec
	journalEvents *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
}

// New creates a recorder on a fresh registry.
func New() (*Recorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return NewWithRegistry(reg), reg
}

// NewWithRegistry registers the recorder collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tierTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelens_analysis_tier_total",
				Help: "Analysis tier attempts by outcome",
			},
			[]string{"tier", "outcome"},
		),
		tierLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradelens_analysis_tier_seconds",
				Help:    "Analysis tier latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
			},
			[]string{"tier"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelens_cache_lookups_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradelens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		journalFlush: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelens_journal_flushes_total",
				Help: "Journal flush attempts by result",
			},
			[]string{"result"},
		),
		journalEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradelens_journal_events_total",
				Help: "Journal events by flush result",
			},
			[]string{"result"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradelens_last_price",
				Help: "Last streamed price for a symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordTier records one tier attempt.
func (r *Recorder) RecordTier(tier, outcome string, seconds float64) {
	r.tierTotal.WithLabelValues(tier, outcome).Inc()
	r.tierLatency.WithLabelValues(tier).Observe(seconds)
}

// RecordCache records a hit or miss on a named cache.
func (r *Recorder) RecordCache(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(name, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordJournalFlush records a flush attempt and its batch size.
func (r *Recorder) RecordJournalFlush(ok bool, events int) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.journalFlush.WithLabelValues(result).Inc()
	r.journalEvents.WithLabelValues(result).Add(float64(events))
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}
