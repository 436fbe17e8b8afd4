package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
)

// LedgerConfig selects the ledger backend and its initial state.
type LedgerConfig struct {
	// Type is "memory" or "sqlite".
	Type string `json:"type"`
	// Path is the sqlite database file.
	Path      string           `json:"path"`
	Genesis   []AccountConfig  `json:"genesis"`
	Receivers []ReceiverConfig `json:"receivers"`
}

// AccountConfig seeds one account. Amounts are decimal strings and map keys
// are token addresses.
type AccountConfig struct {
	Address    string              `json:"address"`
	Native     string              `json:"native"`
	Tokens     map[string]string   `json:"tokens"`
	Allowances map[string]string   `json:"allowances"`
	NFTs       map[string][]string `json:"nfts"`
	Operators  []string            `json:"operators"`
}

// ReceiverConfig describes how an account reacts to native sends.
type ReceiverConfig struct {
	Address string `json:"address"`
	Reject  bool   `json:"reject"`
	Gas     uint64 `json:"gas"`
}

// SetDefaults applies sane defaults.
func (c *LedgerConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}
	if c.Type == "sqlite" && c.Path == "" {
		c.Path = "ledger.db"
	}
}

// Validate checks the backend and parses every seeded value.
func (c LedgerConfig) Validate() error {
	switch c.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("ledger: unknown type %s", c.Type)
	}
	if _, err := c.Accounts(); err != nil {
		return err
	}
	_, err := c.Policies()
	return err
}

// Accounts converts the genesis section into ledger accounts.
func (c LedgerConfig) Accounts() ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(c.Genesis))
	for i, ac := range c.Genesis {
		acc, err := ac.account()
		if err != nil {
			return nil, fmt.Errorf("ledger: genesis[%d]: %w", i, err)
		}
		out = append(out, acc)
	}
	return out, nil
}

// Policies converts the receivers section keyed by account.
func (c LedgerConfig) Policies() (map[common.Address]ledger.ReceiverPolicy, error) {
	out := make(map[common.Address]ledger.ReceiverPolicy, len(c.Receivers))
	for i, rc := range c.Receivers {
		addr, err := model.ParseAddress(rc.Address)
		if err != nil {
			return nil, fmt.Errorf("ledger: receivers[%d]: %w", i, err)
		}
		out[addr] = ledger.ReceiverPolicy{Reject: rc.Reject, Gas: rc.Gas}
	}
	return out, nil
}

func (a AccountConfig) account() (ledger.Account, error) {
	var acc ledger.Account
	var err error
	if acc.Address, err = model.ParseAddress(a.Address); err != nil {
		return acc, err
	}
	if acc.Native, err = model.ParseAmount(a.Native); err != nil {
		return acc, fmt.Errorf("native: %w", err)
	}
	if acc.Tokens, err = amounts(a.Tokens); err != nil {
		return acc, fmt.Errorf("tokens: %w", err)
	}
	if acc.Allowances, err = amounts(a.Allowances); err != nil {
		return acc, fmt.Errorf("allowances: %w", err)
	}
	acc.NFTs = make(map[common.Address][]*uint256.Int, len(a.NFTs))
	for tok, ids := range a.NFTs {
		addr, err := model.ParseAddress(tok)
		if err != nil {
			return acc, fmt.Errorf("nfts: %w", err)
		}
		for _, s := range ids {
			id, err := model.ParseAmount(s)
			if err != nil {
				return acc, fmt.Errorf("nfts %s: %w", tok, err)
			}
			acc.NFTs[addr] = append(acc.NFTs[addr], id)
		}
	}
	for _, op := range a.Operators {
		addr, err := model.ParseAddress(op)
		if err != nil {
			return acc, fmt.Errorf("operators: %w", err)
		}
		acc.Operators = append(acc.Operators, addr)
	}
	return acc, nil
}

func amounts(in map[string]string) (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(in))
	for tok, s := range in {
		addr, err := model.ParseAddress(tok)
		if err != nil {
			return nil, err
		}
		v, err := model.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tok, err)
		}
		out[addr] = v
	}
	return out, nil
}
