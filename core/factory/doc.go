// Package factory builds pluggable modules (ledger backends, metrics sinks)
// from a ModuleConfig: a type name plus raw settings that the selected
// factory decodes with Decode.
package factory
