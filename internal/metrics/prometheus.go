package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records scanner and signal metrics in Prometheus. A nil
// Recorder discards everything.
type Recorder struct {
	scansTotal      prometheus.Counter
	symbolOutcomes  *prometheus.CounterVec
	gateBlocks      *prometheus.CounterVec
	signalsCreated  *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	activeSignals   prometheus.Gauge
	scanDuration    prometheus.Histogram
	fetchDuration   *prometheus.HistogramVec
	dataSourceError *prometheus.CounterVec
}

// New creates a recorder registering its collectors on reg. A nil reg uses
// the default registry.
func New(namespace string, reg prometheus.Registerer) *Recorder {
	if namespace == "" {
		namespace = "smc"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		scansTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of completed scans",
		}),
		symbolOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "symbol_results_total",
				Help:      "Per-symbol scan results by status and reason",
			},
			[]string{"status", "reason"},
		),
		gateBlocks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_blocks_total",
				Help:      "Alignment gate blocks by reason",
			},
			[]string{"reason"},
		),
		signalsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_created_total",
				Help:      "Signals stored by direction and rating",
			},
			[]string{"direction", "rating"},
		),
		statusChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_status_changes_total",
				Help:      "Signal lifecycle transitions by target status",
			},
			[]string{"status"},
		),
		activeSignals: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_signals",
			Help:      "Signals currently ACTIVE",
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a full scan in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "market_data_fetch_seconds",
				Help:      "Duration of market data fetches by interval",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"interval"},
		),
		dataSourceError: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "data_source_errors_total",
				Help:      "Market data errors by operation",
			},
			[]string{"operation"},
		),
	}
}

// RecordScan records a finished scan
func (r *Recorder) RecordScan(seconds float64) {
	if r == nil {
		return
	}
	r.scansTotal.Inc()
	r.scanDuration.Observe(seconds)
}

// RecordSymbolResult records one symbol outcome
func (r *Recorder) RecordSymbolResult(status, reason string) {
	if r == nil {
		return
	}
	r.symbolOutcomes.WithLabelValues(status, reason).Inc()
}

// RecordGateBlock records a blocking gate reason
func (r *Recorder) RecordGateBlock(reason string) {
	if r == nil {
		return
	}
	r.gateBlocks.WithLabelValues(reason).Inc()
}

// RecordSignalCreated records a stored signal
func (r *Recorder) RecordSignalCreated(direction, rating string) {
	if r == nil {
		return
	}
	r.signalsCreated.WithLabelValues(direction, rating).Inc()
}

// RecordStatusChange records a lifecycle transition
func (r *Recorder) RecordStatusChange(status string) {
	if r == nil {
		return
	}
	r.statusChanges.WithLabelValues(status).Inc()
}

// SetActiveSignals sets the ACTIVE signal gauge
func (r *Recorder) SetActiveSignals(n int) {
	if r == nil {
		return
	}
	r.activeSignals.Set(float64(n))
}

// RecordFetch records a market data fetch latency
func (r *Recorder) RecordFetch(interval string, seconds float64) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(interval).Observe(seconds)
}

// RecordDataSourceError records a failed market data call
func (r *Recorder) RecordDataSourceError(operation string) {
	if r == nil {
		return
	}
	r.dataSourceError.WithLabelValues(operation).Inc()
}
