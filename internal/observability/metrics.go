package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for ingestion and post-processing.
type Metrics struct {
	// Registry owns these collectors and backs the /metrics endpoint.
	Registry *prometheus.Registry

	linesRead      prometheus.Counter
	recordsParsed  *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	itemsDiscarded *prometheus.CounterVec
	flushDuration  prometheus.Histogram
	lookupsTotal   *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	phaseDuration  *prometheus.HistogramVec
	pendingRates   prometheus.Gauge
}

// NewMetrics creates a private registry so repeated construction in tests never
// hits duplicate collector registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		linesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "spedflow_lines_read_total",
			Help: "Raw lines read from import sources.",
		}),
		recordsParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spedflow_records_parsed_total",
				Help: "Parsed records by tag.",
			},
			[]string{"tag"},
		),
		recordsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spedflow_records_written_total",
				Help: "Rows persisted by table.",
			},
			[]string{"table"},
		),
		itemsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spedflow_items_discarded_total",
				Help: "Line items dropped for lack of a parent document.",
			},
			[]string{"reason"},
		),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spedflow_flush_duration_seconds",
			Help:    "Duration of buffer flushes.",
			Buckets: prometheus.DefBuckets,
		}),
		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spedflow_registry_lookups_total",
				Help: "Supplier registry lookups by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "spedflow_registry_cache_hits_total",
			Help: "Supplier lookups served from the run cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "spedflow_registry_cache_misses_total",
			Help: "Supplier lookups not found in the run cache.",
		}),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spedflow_phase_duration_seconds",
				Help:    "Duration of pipeline phases.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"phase", "status"},
		),
		pendingRates: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spedflow_pending_rates",
			Help: "Catalog entries awaiting a rate after the last prepare.",
		}),
	}
}

// AddLinesRead counts raw lines read.
func (m *Metrics) AddLinesRead(n int) {
	m.linesRead.Add(float64(n))
}

// IncrRecordParsed counts one parsed record of the given tag.
func (m *Metrics) IncrRecordParsed(tag string) {
	m.recordsParsed.WithLabelValues(tag).Inc()
}

// AddRecordsWritten counts rows written to a table.
func (m *Metrics) AddRecordsWritten(table string, n int) {
	m.recordsWritten.WithLabelValues(table).Add(float64(n))
}

// AddItemsDiscarded counts dropped line items.
func (m *Metrics) AddItemsDiscarded(reason string, n int) {
	m.itemsDiscarded.WithLabelValues(reason).Add(float64(n))
}

// ObserveFlush records a flush duration.
func (m *Metrics) ObserveFlush(d time.Duration) {
	m.flushDuration.Observe(d.Seconds())
}

// IncrLookup counts a registry lookup outcome (found, not_found, error).
func (m *Metrics) IncrLookup(outcome string) {
	m.lookupsTotal.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the run cache hit counter.
func (m *Metrics) IncrCacheHit() {
	m.cacheHits.Inc()
}

// IncrCacheMiss increments the run cache miss counter.
func (m *Metrics) IncrCacheMiss() {
	m.cacheMisses.Inc()
}

// ObservePhase records a pipeline phase duration.
func (m *Metrics) ObservePhase(phase, status string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase, status).Observe(d.Seconds())
}

// SetPendingRates publishes the pending count of the latest prepare.
func (m *Metrics) SetPendingRates(n int) {
	m.pendingRates.Set(float64(n))
}
