// Package ledger defines the transactional resource manager the dispatcher
// moves value through. A Tx groups every transfer of one dispatcher call;
// Rollback discards all of them, including the deposit made by Begin.
package ledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrReverted marks a callee abort. Errors wrapping it are recoverable
	// transfer failures; any other error is a ledger failure.
	ErrReverted = errors.New("call reverted")
	// ErrInsufficientFunds is returned when an account cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBusy is returned by Begin when another transaction is open.
	ErrBusy = errors.New("ledger busy")
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("transaction already finished")
)

// Call describes the outer call that opens a transaction: From attaches
// Value, which is deposited into To's custody.
type Call struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

// Ledger opens transactions.
type Ledger interface {
	Begin(ctx context.Context, call Call) (Tx, error)
}

// Tx is one all-or-nothing unit of work.
type Tx interface {
	Fungible(token common.Address) FungibleToken
	NonFungible(token common.Address) NonFungibleToken
	Native() NativeTransfer
	Commit() error
	Rollback() error
}

// FungibleToken is an ERC-20 style token as seen from the dispatcher.
// TransferFrom moves amount from owner to recipient using the allowance
// granted to the dispatcher. It returns false without error when the token
// signals failure by return value.
type FungibleToken interface {
	TransferFrom(ctx context.Context, owner, recipient common.Address, amount *uint256.Int) (bool, error)
	Transfer(ctx context.Context, recipient common.Address, amount *uint256.Int) (bool, error)
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

// NonFungibleToken is an ERC-721 style token.
type NonFungibleToken interface {
	OwnerOf(ctx context.Context, id *uint256.Int) (common.Address, error)
	SafeTransferFrom(ctx context.Context, owner, recipient common.Address, id *uint256.Int) error
}

// NativeTransfer moves native currency out of dispatcher custody. Send
// forwards at most budget gas to the recipient and reports whether the
// recipient accepted the value.
type NativeTransfer interface {
	Send(ctx context.Context, recipient common.Address, amount *uint256.Int, budget uint64) (bool, error)
	BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error)
}

// Account seeds a ledger with initial state.
type Account struct {
	Address common.Address
	Native  *uint256.Int
	// Tokens maps a fungible token to the account balance.
	Tokens map[common.Address]*uint256.Int
	// Allowances maps a fungible token to the amount the account allows the
	// dispatcher to pull.
	Allowances map[common.Address]*uint256.Int
	// NFTs maps a non-fungible token to the identifiers the account owns.
	NFTs map[common.Address][]*uint256.Int
	// Operators lists non-fungible tokens for which the dispatcher is an
	// approved operator.
	Operators []common.Address
}

// ReceiverPolicy describes how an account reacts to incoming native value.
type ReceiverPolicy struct {
	// Reject makes every incoming send fail.
	Reject bool
	// Gas is the gas the receiver needs to accept a send. Sends whose budget
	// is lower fail.
	Gas uint64
}

// Seeder is implemented by ledgers that can be populated from configuration.
type Seeder interface {
	Seed(ctx context.Context, spender common.Address, accounts []Account) error
	SetReceiver(ctx context.Context, account common.Address, policy ReceiverPolicy) error
}

// IsReverted reports whether err is a recoverable callee abort.
func IsReverted(err error) bool { return errors.Is(err, ErrReverted) }
