package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchLatency    *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	transfersTotal  *prometheus.CounterVec
	guardRejections prometheus.Counter
	adminOps        *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multisend_dispatch_latency_seconds",
			Help:    "Duration of dispatcher calls from guard acquisition to settlement",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisend_dispatch_batches_total",
			Help: "Number of dispatcher calls by final status",
		},
		[]string{"kind", "status"},
	)
	transfers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisend_dispatch_transfers_total",
			Help: "Number of per-recipient transfer attempts by outcome",
		},
		[]string{"kind", "outcome"},
	)
	guard := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "multisend_dispatch_reentrant_rejections_total",
			Help: "Number of calls rejected because the execution guard was held",
		},
	)
	admin := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisend_admin_operations_total",
			Help: "Number of admin operations by result",
		},
		[]string{"operation", "result"},
	)
	return lat, batches, transfers, guard, admin
}

func init() {
	batchLatency, batchesTotal, transfersTotal, guardRejections, adminOps = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(batchLatency, batchesTotal, transfersTotal, guardRejections, adminOps)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	batchLatency, batchesTotal, transfersTotal, guardRejections, adminOps = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
