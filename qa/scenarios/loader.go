// Package scenarios replays YAML batch scenarios against an in-memory ledger
// and checks outcomes, balances and recorded metrics.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/multisend/config"
	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/model"
)

type DispatcherDef struct {
	Address           string `yaml:"address"`
	Owner             string `yaml:"owner"`
	FeeAddress        string `yaml:"fee_address"`
	RatePerAddress    string `yaml:"rate_per_address"`
	MinimumRatePerTx  string `yaml:"minimum_rate_per_tx"`
	MaxTransfersPerTx int    `yaml:"max_transfers_per_tx"`
	Paused            bool   `yaml:"paused"`
}

func (d DispatcherDef) Config() dispatch.Config {
	return dispatch.Config{
		Address:           d.Address,
		Owner:             d.Owner,
		FeeAddress:        d.FeeAddress,
		RatePerAddress:    d.RatePerAddress,
		MinimumRatePerTx:  d.MinimumRatePerTx,
		MaxTransfersPerTx: d.MaxTransfersPerTx,
		Paused:            d.Paused,
	}
}

type AccountDef struct {
	Address    string              `yaml:"address"`
	Native     string              `yaml:"native"`
	Tokens     map[string]string   `yaml:"tokens"`
	Allowances map[string]string   `yaml:"allowances"`
	NFTs       map[string][]string `yaml:"nfts"`
	Operators  []string            `yaml:"operators"`
}

type LedgerDef struct {
	Accounts []AccountDef `yaml:"accounts"`
	// Rejecting accounts refuse native value.
	Rejecting []string `yaml:"rejecting"`
	// Blocked maps a fungible token to recipients it refuses to credit.
	Blocked map[string][]string `yaml:"blocked"`
	// ReturnFalse lists fungible tokens that report failure by return value.
	ReturnFalse []string `yaml:"return_false"`
}

// Config converts the ledger section to its configuration form.
func (l LedgerDef) Config() config.LedgerConfig {
	lc := config.LedgerConfig{Type: "memory"}
	for _, a := range l.Accounts {
		lc.Genesis = append(lc.Genesis, config.AccountConfig{
			Address:    a.Address,
			Native:     a.Native,
			Tokens:     a.Tokens,
			Allowances: a.Allowances,
			NFTs:       a.NFTs,
			Operators:  a.Operators,
		})
	}
	for _, r := range l.Rejecting {
		lc.Receivers = append(lc.Receivers, config.ReceiverConfig{Address: r, Reject: true})
	}
	return lc
}

type StepExpect struct {
	// Error is the kind name of the expected error; empty expects success.
	Error     string `yaml:"error"`
	Successes int    `yaml:"successes"`
	Fee       string `yaml:"fee"`
	Change    string `yaml:"change"`
	// Failed lists the recipient positions expected to fail.
	Failed []int `yaml:"failed"`
}

type Step struct {
	Name   string              `yaml:"name"`
	Batch  model.BatchDocument `yaml:"batch"`
	Expect StepExpect          `yaml:"expect"`
}

type Balance struct {
	Account string `yaml:"account"`
	// Token is empty for native balances.
	Token  string `yaml:"token"`
	Amount string `yaml:"amount"`
}

type Ownership struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Owner string `yaml:"owner"`
}

type Expected struct {
	Balances  []Balance      `yaml:"balances"`
	Owners    []Ownership    `yaml:"owners"`
	Batches   map[string]int `yaml:"batches"`
	Published int            `yaml:"published"`
}

type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Dispatcher  DispatcherDef `yaml:"dispatcher"`
	Ledger      LedgerDef     `yaml:"ledger"`
	Steps       []Step        `yaml:"steps"`
	Expected    Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
