// Package metrics exposes refresh run counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records the outcome of refresh runs.
type Collector struct {
	entitiesPolled *prometheus.CounterVec
	recordsCreated prometheus.Counter
	recordsUpdated prometheus.Counter
	historyEntries prometheus.Counter
	batches        *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastCandidates prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		entitiesPolled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availbox_entities_polled_total",
			Help: "Entities processed by refresh runs, by result and failure kind.",
		}, []string{"result", "kind"}),
		recordsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availbox_records_created_total",
			Help: "Availability records created.",
		}),
		recordsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availbox_records_updated_total",
			Help: "Availability records updated because a tracked field changed.",
		}),
		historyEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availbox_history_entries_total",
			Help: "Availability history entries appended.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availbox_batches_total",
			Help: "Fetch batches processed, by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "availbox_run_duration_seconds",
			Help:    "Wall time of a refresh run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		lastCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "availbox_last_run_candidates",
			Help: "Entities selected by the most recent run.",
		}),
	}

	reg.MustRegister(
		c.entitiesPolled,
		c.recordsCreated,
		c.recordsUpdated,
		c.historyEntries,
		c.batches,
		c.runDuration,
		c.lastCandidates,
	)
	return c
}

// RecordEntity counts one polled entity. kind is empty on success.
func (c *Collector) RecordEntity(success bool, kind string) {
	result := "success"
	if !success {
		result = "failure"
	}
	if kind == "" {
		kind = "none"
	}
	c.entitiesPolled.WithLabelValues(result, kind).Inc()
}

func (c *Collector) RecordPersist(created, updated, history int) {
	c.recordsCreated.Add(float64(created))
	c.recordsUpdated.Add(float64(updated))
	c.historyEntries.Add(float64(history))
}

func (c *Collector) RecordBatch(ok bool) {
	if ok {
		c.batches.WithLabelValues("ok").Inc()
		return
	}
	c.batches.WithLabelValues("failed").Inc()
}

func (c *Collector) RecordRun(candidates int, d time.Duration) {
	c.lastCandidates.Set(float64(candidates))
	c.runDuration.Observe(d.Seconds())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
