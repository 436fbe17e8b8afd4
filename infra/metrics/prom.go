package metrics

import (
	"errors"
	"strconv"

	coremetrics "github.com/kilianp07/multisend/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records batch results in Prometheus metrics.
type PromSink struct {
	batches    *prometheus.CounterVec
	recipients *prometheus.CounterVec
	fees       *prometheus.CounterVec
	change     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	admin      *prometheus.CounterVec
}

// NewPromSink registers batch metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately, see Config.PromAddr.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_batch_total",
			Help: "Batches handled by the dispatcher",
		}, []string{"kind", "status"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_batch_recipients_total",
			Help: "Recipients processed, split by outcome",
		}, []string{"kind", "outcome"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_batch_fee_total",
			Help: "Fees collected by committed batches",
		}, []string{"kind"}),
		change: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_batch_change_total",
			Help: "Change returned to callers",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "multisend_batch_duration_seconds",
			Help:    "Time spent handling a batch",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_transfer_failures_total",
			Help: "Failed transfers in best-effort batches",
		}, []string{"kind", "reason"}),
		admin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multisend_batch_admin_total",
			Help: "Administrative operations by result",
		}, []string{"operation", "accepted"}),
	}
	for _, c := range []**prometheus.CounterVec{&s.batches, &s.recipients, &s.fees, &s.change, &s.failures, &s.admin} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	if err := reg.Register(s.duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		s.duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return s, nil
}

func register(reg prometheus.Registerer, c **prometheus.CounterVec) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		*c = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return nil
}

// RecordBatchResult updates the batch counters.
func (s *PromSink) RecordBatchResult(r coremetrics.BatchResult) error {
	s.batches.WithLabelValues(r.Kind, r.Status).Inc()
	s.duration.WithLabelValues(r.Kind, r.Status).Observe(r.Duration.Seconds())
	if r.Status != coremetrics.StatusCommitted {
		return nil
	}
	s.recipients.WithLabelValues(r.Kind, "succeeded").Add(float64(r.Successes))
	s.recipients.WithLabelValues(r.Kind, "failed").Add(float64(r.Failures()))
	s.fees.WithLabelValues(r.Kind).Add(r.Fee)
	s.change.WithLabelValues(r.Kind).Add(r.Change)
	return nil
}

// RecordTransferFailure counts a failed recipient.
func (s *PromSink) RecordTransferFailure(ev coremetrics.TransferFailureEvent) error {
	s.failures.WithLabelValues(ev.Kind, ev.Reason).Inc()
	return nil
}

// RecordAdminOperation counts an administrative call.
func (s *PromSink) RecordAdminOperation(ev coremetrics.AdminEvent) error {
	s.admin.WithLabelValues(ev.Operation, strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}
