package dispatch

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/fee"
	"github.com/kilianp07/multisend/core/model"
)

// Code is a stable numeric identifier of an error kind. Codes never change
// meaning once released.
type Code int

const (
	CodeUnknown Code = 0

	// admission
	CodeBatchTooLarge   Code = 1001
	CodeEmptyBatch      Code = 1002
	CodeLengthMismatch  Code = 1003
	CodeInsufficientFee Code = 1004
	CodeUnknownKind     Code = 1005

	// execution
	CodeNotOwner           Code = 1101
	CodeTransfersReverted  Code = 1102
	CodeAllTransfersFailed Code = 1103

	CodeArithmetic Code = 1201

	// guards
	CodeReentrantCall  Code = 1301
	CodeContractPaused Code = 1302

	// administration
	CodeUnauthorized  Code = 1401
	CodeInvalidConfig Code = 1402

	CodeSettlementFailed Code = 1501
	CodeRecoveryFailed   Code = 1502

	CodeLedgerFailure Code = 1601
)

var (
	ErrBatchTooLarge      = errors.New("batch too large")
	ErrEmptyBatch         = errors.New("empty batch")
	ErrLengthMismatch     = errors.New("recipients and amounts differ in length")
	ErrInsufficientFee    = errors.New("insufficient fee")
	ErrUnknownKind        = errors.New("unknown batch kind")
	ErrNotOwner           = errors.New("caller does not own token")
	ErrTransfersReverted  = errors.New("transfers reverted")
	ErrAllTransfersFailed = errors.New("all transfers failed")
	// ErrArithmetic is shared with the fee package so that errors.Is works
	// on errors produced by either.
	ErrArithmetic       = fee.ErrArithmetic
	ErrReentrantCall    = errors.New("reentrant call")
	ErrContractPaused   = errors.New("dispatcher paused")
	ErrUnauthorized     = errors.New("caller is not the owner")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSettlementFailed = errors.New("settlement failed")
	ErrRecoveryFailed   = errors.New("recovery failed")
	// ErrLedgerFailure wraps unexpected ledger errors. These are not caused
	// by the request and are reported to monitoring.
	ErrLedgerFailure = errors.New("ledger failure")
)

var kinds = []struct {
	err  error
	code Code
	name string
}{
	{ErrBatchTooLarge, CodeBatchTooLarge, "BatchTooLarge"},
	{ErrEmptyBatch, CodeEmptyBatch, "EmptyBatch"},
	{ErrLengthMismatch, CodeLengthMismatch, "LengthMismatch"},
	{ErrInsufficientFee, CodeInsufficientFee, "InsufficientFee"},
	{ErrUnknownKind, CodeUnknownKind, "UnknownKind"},
	{ErrNotOwner, CodeNotOwner, "NotOwner"},
	{ErrTransfersReverted, CodeTransfersReverted, "TransfersReverted"},
	{ErrAllTransfersFailed, CodeAllTransfersFailed, "AllTransfersFailed"},
	{ErrArithmetic, CodeArithmetic, "ArithmeticError"},
	{ErrReentrantCall, CodeReentrantCall, "ReentrantCall"},
	{ErrContractPaused, CodeContractPaused, "ContractPaused"},
	{ErrUnauthorized, CodeUnauthorized, "Unauthorized"},
	{ErrInvalidConfig, CodeInvalidConfig, "InvalidConfig"},
	{ErrSettlementFailed, CodeSettlementFailed, "SettlementFailed"},
	{ErrRecoveryFailed, CodeRecoveryFailed, "RecoveryFailed"},
	{ErrLedgerFailure, CodeLedgerFailure, "LedgerFailure"},
}

// CodeOf returns the code of the first known kind err wraps.
func CodeOf(err error) Code {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeUnknown
}

// KindName returns the symbolic name of err's kind, or "" when unknown.
func KindName(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// RevertedError reports the recipient that aborted a revert-on-fail batch.
// It matches ErrTransfersReverted.
type RevertedError struct {
	Recipient  common.Address
	AmountOrID *uint256.Int
	Reason     string
}

func (e *RevertedError) Error() string {
	msg := fmt.Sprintf("%s: recipient %s amount %s", ErrTransfersReverted, e.Recipient.Hex(), model.FormatAmount(e.AmountOrID))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RevertedError) Is(target error) bool { return target == ErrTransfersReverted }

func ledgerFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerFailure, op, err)
}
