// Package memory provides an in-process ledger backed by copy-on-begin
// snapshots. Receivers and tokens can be programmed to misbehave, which makes
// it the backend of choice for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
)

// FailureStyle selects how a fungible token reports a failed transfer.
type FailureStyle int

const (
	// StyleRevert aborts the call.
	StyleRevert FailureStyle = iota
	// StyleReturnFalse returns false without aborting.
	StyleReturnFalse
)

// ReceiveHook runs when an account receives native value or a non-fungible
// token. A non-nil error makes the receipt fail.
type ReceiveHook func(ctx context.Context, from common.Address, amountOrID *uint256.Int) error

type receiver struct {
	policy ledger.ReceiverPolicy
	hook   ReceiveHook
}

// Ledger is an in-memory implementation of ledger.Ledger. Only one
// transaction may be open at a time; Begin returns ledger.ErrBusy otherwise.
type Ledger struct {
	txMu sync.Mutex

	mu    sync.RWMutex
	state *state

	cfgMu     sync.RWMutex
	styles    map[common.Address]FailureStyle
	blocked   map[common.Address]map[common.Address]bool
	receivers map[common.Address]receiver
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		state:     newState(),
		styles:    make(map[common.Address]FailureStyle),
		blocked:   make(map[common.Address]map[common.Address]bool),
		receivers: make(map[common.Address]receiver),
	}
}

// Begin opens a transaction and deposits call.Value from call.From into
// call.To.
func (l *Ledger) Begin(ctx context.Context, call ledger.Call) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.txMu.TryLock() {
		return nil, ledger.ErrBusy
	}
	l.mu.RLock()
	st := l.state.clone()
	l.mu.RUnlock()

	value := new(uint256.Int)
	if call.Value != nil {
		value.Set(call.Value)
	}
	if !st.moveNative(call.From, call.To, value) {
		l.txMu.Unlock()
		return nil, fmt.Errorf("%w: %s cannot attach %s", ledger.ErrInsufficientFunds, call.From.Hex(), value.ToBig())
	}
	return &tx{l: l, call: call, st: st}, nil
}

// Seed writes accounts directly into the committed state. spender is the
// address that the seeded allowances and operator approvals are granted to.
func (l *Ledger) Seed(_ context.Context, spender common.Address, accounts []ledger.Account) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range accounts {
		if a.Native != nil {
			l.state.native[a.Address] = a.Native.Clone()
		}
		for tok, v := range a.Tokens {
			l.state.setToken(tok, a.Address, v.Clone())
		}
		for tok, v := range a.Allowances {
			l.state.setAllowance(tok, a.Address, spender, v.Clone())
		}
		for tok, ids := range a.NFTs {
			for _, id := range ids {
				l.state.setOwner(tok, id, a.Address)
			}
		}
		for _, tok := range a.Operators {
			l.state.setOperator(tok, a.Address, spender, true)
		}
	}
	return nil
}

// SetReceiver programs how account reacts to incoming value.
func (l *Ledger) SetReceiver(_ context.Context, account common.Address, policy ledger.ReceiverPolicy) error {
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	r := l.receivers[account]
	r.policy = policy
	l.receivers[account] = r
	return nil
}

// OnReceive installs a hook that runs when account receives value.
func (l *Ledger) OnReceive(account common.Address, hook ReceiveHook) {
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	r := l.receivers[account]
	r.hook = hook
	l.receivers[account] = r
}

// SetFailureStyle selects how token reports failed transfers.
func (l *Ledger) SetFailureStyle(token common.Address, style FailureStyle) {
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	l.styles[token] = style
}

// Block makes every transfer of token to recipient fail.
func (l *Ledger) Block(token, recipient common.Address) {
	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()
	m, ok := l.blocked[token]
	if !ok {
		m = make(map[common.Address]bool)
		l.blocked[token] = m
	}
	m[recipient] = true
}

// NativeBalance returns the committed native balance of account.
func (l *Ledger) NativeBalance(account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.nativeOf(account).Clone()
}

// TokenBalance returns the committed balance of account in token.
func (l *Ledger) TokenBalance(token, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.tokenOf(token, account).Clone()
}

// Allowance returns the committed allowance owner granted spender.
func (l *Ledger) Allowance(token, owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.allowance(token, owner, spender).Clone()
}

// Owner returns the committed owner of a non-fungible token.
func (l *Ledger) Owner(token common.Address, id *uint256.Int) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.state.nfts[token][*id]
	return o, ok
}

func (l *Ledger) style(token common.Address) FailureStyle {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.styles[token]
}

func (l *Ledger) isBlocked(token, recipient common.Address) bool {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.blocked[token][recipient]
}

func (l *Ledger) receiver(account common.Address) receiver {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.receivers[account]
}

var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ ledger.Seeder = (*Ledger)(nil)
)
