package dispatch

import (
	"fmt"

	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/fee"
	"github.com/kilianp07/multisend/core/model"
)

// DefaultMaxTransfersPerTx caps batch size when the configuration leaves it unset.
const DefaultMaxTransfersPerTx = 200

// Config defines dispatcher settings. Amounts are decimal or 0x-prefixed
// strings so that they survive YAML and environment overrides intact.
type Config struct {
	// Address is the dispatcher account holding custody of attached value.
	Address           string `json:"address"`
	Owner             string `json:"owner"`
	FeeAddress        string `json:"fee_address"`
	RatePerAddress    string `json:"rate_per_address"`
	MinimumRatePerTx  string `json:"minimum_rate_per_tx"`
	MaxTransfersPerTx int    `json:"max_transfers_per_tx"`
	// NativeGasStipend is the gas forwarded with native sends.
	NativeGasStipend uint64 `json:"native_gas_stipend"`
	Paused           bool   `json:"paused"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxTransfersPerTx == 0 {
		c.MaxTransfersPerTx = DefaultMaxTransfersPerTx
	}
	if c.NativeGasStipend == 0 {
		c.NativeGasStipend = params.CallStipend
	}
	if c.RatePerAddress == "" {
		c.RatePerAddress = "0"
	}
	if c.MinimumRatePerTx == "" {
		c.MinimumRatePerTx = "0"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	_, err := c.settings()
	return err
}

// settings parses c into the dispatcher's runtime state.
func (c Config) settings() (Snapshot, error) {
	var s Snapshot
	var err error
	if s.Address, err = model.ParseAddress(c.Address); err != nil {
		return s, fmt.Errorf("%w: address: %v", ErrInvalidConfig, err)
	}
	if s.Owner, err = model.ParseAddress(c.Owner); err != nil {
		return s, fmt.Errorf("%w: owner: %v", ErrInvalidConfig, err)
	}
	if s.FeeAddress, err = model.ParseAddress(c.FeeAddress); err != nil {
		return s, fmt.Errorf("%w: fee_address: %v", ErrInvalidConfig, err)
	}
	var rate, min *uint256.Int
	if rate, err = model.ParseAmount(c.RatePerAddress); err != nil {
		return s, fmt.Errorf("%w: rate_per_address: %v", ErrInvalidConfig, err)
	}
	if min, err = model.ParseAmount(c.MinimumRatePerTx); err != nil {
		return s, fmt.Errorf("%w: minimum_rate_per_tx: %v", ErrInvalidConfig, err)
	}
	s.Schedule = fee.Schedule{RatePerRecipient: rate, MinimumFee: min}
	s.MaxTransfersPerTx = c.MaxTransfersPerTx
	s.NativeGasStipend = c.NativeGasStipend
	s.Paused = c.Paused
	return s, s.validate()
}
