package metrics

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBatchResult forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordBatchResult(res BatchResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordBatchResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransferFailure forwards failures to sinks that record them.
func (m *MultiSink) RecordTransferFailure(ev TransferFailureEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TransferFailureRecorder); ok {
			if err := rec.RecordTransferFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAdminOperation forwards admin events.
func (m *MultiSink) RecordAdminOperation(ev AdminEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AdminRecorder); ok {
			if err := rec.RecordAdminOperation(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
