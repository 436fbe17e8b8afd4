package metrics

import "testing"

type recordSink struct {
	count int
}

func (r *recordSink) RecordBatchResult(BatchResult) error {
	r.count++
	return nil
}

func (r *recordSink) RecordTransferFailure(TransferFailureEvent) error {
	r.count++
	return nil
}

// plainSink only implements MetricsSink.
type plainSink struct{ count int }

func (p *plainSink) RecordBatchResult(BatchResult) error {
	p.count++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	p := &plainSink{}
	m := NewMultiSink(s1, s2, p)
	if err := m.RecordBatchResult(BatchResult{Recipients: 3, Successes: 2}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	if err := m.RecordTransferFailure(TransferFailureEvent{}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := m.RecordAdminOperation(AdminEvent{}); err != nil {
		t.Fatalf("record admin: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("results not forwarded")
	}
	if p.count != 1 {
		t.Fatalf("plain sink count = %d, want 1", p.count)
	}
}

func TestBatchResultFailures(t *testing.T) {
	if got := (BatchResult{Recipients: 5, Successes: 3}).Failures(); got != 2 {
		t.Fatalf("failures = %d, want 2", got)
	}
}
