package config

import "fmt"

// APIConfig defines the HTTP surface of the service.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication when set.
	Token                string `json:"token"`
	IdempotencyCacheSize int    `json:"idempotency_cache_size"`
	// EventsPath serves the websocket notification stream. Empty disables it.
	EventsPath string `json:"events_path"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.IdempotencyCacheSize == 0 {
		c.IdempotencyCacheSize = 1024
	}
	if c.EventsPath == "" {
		c.EventsPath = "/api/events"
	}
}

// Validate checks mandatory fields.
func (c APIConfig) Validate() error {
	if c.IdempotencyCacheSize < 0 {
		return fmt.Errorf("api: idempotency_cache_size must be positive")
	}
	return nil
}
