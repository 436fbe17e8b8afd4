package plugins

import (
	"github.com/kilianp07/multisend/core/factory"
	"github.com/kilianp07/multisend/core/ledger"
)

// Backend is a ledger that can be seeded from configuration.
type Backend interface {
	ledger.Ledger
	ledger.Seeder
}

// BackendFactory builds a ledger backend from a raw configuration map.
type BackendFactory = factory.Factory[Backend]

var ledgers = factory.NewRegistry[Backend]("ledger")

// RegisterLedger adds a ledger backend identified by name.
func RegisterLedger(name string, f BackendFactory) error { return ledgers.Register(name, f) }

// NewLedger builds the backend selected by cfg.Type.
func NewLedger(cfg factory.ModuleConfig) (Backend, error) { return ledgers.Create(cfg) }
