package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/infra/mqtt"
)

type Config struct {
	Dispatcher dispatch.Config `json:"dispatcher"`
	Ledger     LedgerConfig    `json:"ledger"`
	Metrics    metrics.Config  `json:"metrics"`
	Logging    logging.Config  `json:"logging"`
	MQTT       mqtt.Config     `json:"mqtt"`
	Sentry     SentryConfig    `json:"sentry"`
	API        APIConfig       `json:"api"`
}

// Load reads the file at path, applies K_ prefixed environment overrides
// (K_API__TOKEN sets api.token) and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Dispatcher.SetDefaults()
	c.Ledger.SetDefaults()
	c.Logging.SetDefaults()
	c.MQTT.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Dispatcher.Validate(); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return c.API.Validate()
}
