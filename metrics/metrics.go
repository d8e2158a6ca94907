// Package metrics instruments the ingestion pipeline and the query surface
// with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	filesProcessed *prometheus.CounterVec
	rowsUpserted   *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	runDuration    prometheus.Histogram

	basketRequests      prometheus.Counter
	basketUnfulfillable prometheus.Counter
	alertsTriggered     prometheus.Counter
}

func New() *Collector {
	c := &Collector{}

	c.filesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "ingest_files_total",
		Help:      "Ingested files by file type and outcome (committed, failed, skipped)",
	}, []string{"type", "outcome"})

	c.rowsUpserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "ingest_rows_upserted_total",
		Help:      "Committed rows by file type",
	}, []string{"type"})

	c.rowsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "ingest_rows_skipped_total",
		Help:      "Rows skipped for recoverable data errors, by file type",
	}, []string{"type"})

	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "basketengine",
		Name:      "ingest_run_seconds",
		Help:      "Duration of one full ingestion run",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	c.basketRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "basket_requests_total",
		Help:      "Basket optimization requests served",
	})

	c.basketUnfulfillable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "basket_unfulfillable_items_total",
		Help:      "Basket items that could not be fulfilled by any store",
	})

	c.alertsTriggered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "basketengine",
		Name:      "alerts_triggered_total",
		Help:      "Price alerts that reached their target and were deactivated",
	})

	return c
}

func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.filesProcessed,
		c.rowsUpserted,
		c.rowsSkipped,
		c.runDuration,
		c.basketRequests,
		c.basketUnfulfillable,
		c.alertsTriggered,
	)
}

// All observation methods are safe on a nil Collector so callers can run
// without metrics wired.

func (c *Collector) FileProcessed(fileType, outcome string) {
	if c == nil {
		return
	}
	c.filesProcessed.WithLabelValues(fileType, outcome).Inc()
}

func (c *Collector) RowsUpserted(fileType string, n int) {
	if c == nil {
		return
	}
	c.rowsUpserted.WithLabelValues(fileType).Add(float64(n))
}

func (c *Collector) RowsSkipped(fileType string, n int) {
	if c == nil {
		return
	}
	c.rowsSkipped.WithLabelValues(fileType).Add(float64(n))
}

func (c *Collector) RunFinished(d time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.Observe(d.Seconds())
}

func (c *Collector) BasketRequest(unfulfillable int) {
	if c == nil {
		return
	}
	c.basketRequests.Inc()
	c.basketUnfulfillable.Add(float64(unfulfillable))
}

func (c *Collector) AlertTriggered() {
	if c == nil {
		return
	}
	c.alertsTriggered.Inc()
}
