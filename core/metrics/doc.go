// Package metrics defines interfaces for collecting batch dispatch metrics.
// Sinks like PromSink and InfluxSink record batch results and per-recipient
// failures and can be combined with NewMultiSink. The factory helpers return
// a MultiSink automatically when multiple sinks are configured.
package metrics
