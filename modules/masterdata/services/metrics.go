package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nayoseInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "writer",
		Name:      "inserted_rows_total",
		Help:      "Total number of rows inserted by the master data writer broken down by table.",
	}, []string{"table"})

	nayoseMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "writer",
		Name:      "matched_rows_total",
		Help:      "Total number of candidate rows resolved to an existing row broken down by table and tier.",
	}, []string{"table", "tier"})

	nayoseUnresolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "writer",
		Name:      "unresolved_rows_total",
		Help:      "Total number of rows left without a foreign id after a write.",
	}, []string{"table"})

	nayoseBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "scan",
		Name:      "batches_total",
		Help:      "Total number of mapping batches processed broken down by mapping target.",
	}, []string{"target"})

	nayoseScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nayose",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Duration of scan jobs broken down by export mode and result.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"mode", "result"})

	nayoseExportFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "export",
		Name:      "files_written_total",
		Help:      "Total number of nayose files written broken down by file.",
	}, []string{"file"})

	nayoseRelationCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "relation",
		Name:      "cache_requests_total",
		Help:      "Total number of relation view lookups broken down by hit/miss.",
	}, []string{"result"})
)

func recordInserted(table string, n int) {
	if n > 0 {
		nayoseInserted.WithLabelValues(table).Add(float64(n))
	}
}

func recordMatched(table, tier string, n int) {
	if n > 0 {
		nayoseMatched.WithLabelValues(table, tier).Add(float64(n))
	}
}

func recordRelationCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	nayoseRelationCache.WithLabelValues(result).Inc()
}
