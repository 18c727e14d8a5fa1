// Package prometheus wires the stats.Recorder interface to
// prometheus/client_golang: one counter for hits, one for misses, a
// CounterVec for evictions labeled by cause, and a gauge a caller can drive
// from the façade's WeightedSize/EstimatedSize accessors.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhouwentong1993/caffeine/internal/stats"
)

// Recorder implements stats.Recorder and exports Prometheus counters/gauges.
// Safe for concurrent use; every prometheus metric type already is.
type Recorder struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	evictions     *prometheus.CounterVec
	evictedWeight *prometheus.CounterVec
	loadSuccesses prometheus.Counter
	loadFailures  prometheus.Counter
	loadNanos     prometheus.Counter
	weightedSize  prometheus.Gauge
}

// Config names and labels the registered metrics: every metric gets the
// same namespace, subsystem and constant labels.
type Config struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

// New registers and returns a Recorder. A nil Registerer uses
// prometheus.DefaultRegisterer.
func New(cfg Config) *Recorder {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "hits_total",
			Help:        "Cache lookups that found a live entry.",
			ConstLabels: cfg.ConstLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "misses_total",
			Help:        "Cache lookups that found no live entry.",
			ConstLabels: cfg.ConstLabels,
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "evictions_total",
			Help:        "Entries removed by the maintenance loop, by cause.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"cause"}),
		evictedWeight: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "evicted_weight_total",
			Help:        "Total weight removed by the maintenance loop, by cause.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"cause"}),
		loadSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "load_successes_total",
			Help:        "Loader calls that returned a value.",
			ConstLabels: cfg.ConstLabels,
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "load_failures_total",
			Help:        "Loader calls that returned an error.",
			ConstLabels: cfg.ConstLabels,
		}),
		loadNanos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "load_nanos_total",
			Help:        "Total nanoseconds spent inside loader calls.",
			ConstLabels: cfg.ConstLabels,
		}),
		weightedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "weighted_size",
			Help:        "Current total weight of resident entries.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
	reg.MustRegister(r.hits, r.misses, r.evictions, r.evictedWeight,
		r.loadSuccesses, r.loadFailures, r.loadNanos, r.weightedSize)
	return r
}

func (r *Recorder) RecordHit()  { r.hits.Inc() }
func (r *Recorder) RecordMiss() { r.misses.Inc() }

func (r *Recorder) RecordEviction(cause stats.DeletionCause, weight int64) {
	label := causeLabel(cause)
	r.evictions.WithLabelValues(label).Inc()
	r.evictedWeight.WithLabelValues(label).Add(float64(weight))
}

func (r *Recorder) RecordLoadSuccess(loadNanos int64) {
	r.loadSuccesses.Inc()
	r.loadNanos.Add(float64(loadNanos))
}

func (r *Recorder) RecordLoadFailure(loadNanos int64) {
	r.loadFailures.Inc()
	r.loadNanos.Add(float64(loadNanos))
}

// SetWeightedSize updates the resident-weight gauge. The cache never calls
// it; the gauge changes only when the Recorder's owner sets it, for example
// from the façade's WeightedSize.
func (r *Recorder) SetWeightedSize(weight int64) { r.weightedSize.Set(float64(weight)) }

func causeLabel(cause stats.DeletionCause) string {
	switch cause {
	case stats.CauseExplicit:
		return "explicit"
	case stats.CauseReplaced:
		return "replaced"
	case stats.CauseSize:
		return "size"
	case stats.CauseExpired:
		return "expired"
	case stats.CauseCollected:
		return "collected"
	default:
		return "unknown"
	}
}

var _ stats.Recorder = (*Recorder)(nil)
