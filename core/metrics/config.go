package metrics

import "github.com/kilianp07/multisend/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PromAddr is the listen address of the Prometheus endpoint. Empty
	// disables the endpoint.
	PromAddr string `json:"prom_addr"`
}
