package metrics

import "time"

// Batch statuses recorded by sinks and the batch log.
const (
	StatusCommitted = "committed"
	StatusReverted  = "reverted"
	StatusAllFailed = "all_failed"
	StatusRejected  = "rejected"
)

// BatchResult is the observable summary of one dispatcher call.
type BatchResult struct {
	BatchID    string
	Caller     string
	Kind       string
	Token      string
	Status     string
	Recipients int
	Successes  int
	// ValueMoved, Fee and Change are float approximations of 256-bit
	// amounts, good enough for dashboards.
	ValueMoved float64
	Fee        float64
	Change     float64
	ErrorCode  string
	Duration   time.Duration
	Time       time.Time
}

// Failures returns the number of recipients whose transfer did not succeed.
func (r BatchResult) Failures() int { return r.Recipients - r.Successes }

// MetricsSink records batch results for observability purposes.
type MetricsSink interface {
	RecordBatchResult(res BatchResult) error
}

// TransferFailureEvent describes one failed recipient in a best-effort batch.
type TransferFailureEvent struct {
	BatchID    string
	Kind       string
	Token      string
	Recipient  string
	AmountOrID string
	Reason     string
	Time       time.Time
}

// TransferFailureRecorder records per-recipient failures.
type TransferFailureRecorder interface {
	RecordTransferFailure(ev TransferFailureEvent) error
}

// AdminEvent records a configuration change attempt.
type AdminEvent struct {
	Operation string
	Caller    string
	Accepted  bool
	Time      time.Time
}

// AdminRecorder records admin operations.
type AdminRecorder interface {
	RecordAdminOperation(ev AdminEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordBatchResult(BatchResult) error              { return nil }
func (NopSink) RecordTransferFailure(TransferFailureEvent) error { return nil }
func (NopSink) RecordAdminOperation(AdminEvent) error            { return nil }
