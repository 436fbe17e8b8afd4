package dispatch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
)

// executor performs the single external call for one recipient. ok reports
// a successful transfer; reason explains a recoverable failure. A non-nil
// error is fatal for the whole batch.
type executor interface {
	transfer(ctx context.Context, tx ledger.Tx, caller, recipient common.Address, amountOrID *uint256.Int) (ok bool, reason string, err error)
}

func newExecutor(kind model.Kind, token common.Address, budget uint64) (executor, error) {
	switch kind {
	case model.KindFungible:
		return fungibleExecutor{token: token}, nil
	case model.KindNonFungible:
		return nonFungibleExecutor{token: token}, nil
	case model.KindNative:
		return nativeExecutor{budget: budget}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

type fungibleExecutor struct{ token common.Address }

func (e fungibleExecutor) transfer(ctx context.Context, tx ledger.Tx, caller, recipient common.Address, amount *uint256.Int) (bool, string, error) {
	ok, err := tx.Fungible(e.token).TransferFrom(ctx, caller, recipient, amount)
	switch {
	case ledger.IsReverted(err):
		return false, err.Error(), nil
	case err != nil:
		return false, "", ledgerFailure("transferFrom", err)
	case !ok:
		return false, "transferFrom returned false", nil
	}
	return true, "", nil
}

type nonFungibleExecutor struct{ token common.Address }

func (e nonFungibleExecutor) transfer(ctx context.Context, tx ledger.Tx, caller, recipient common.Address, id *uint256.Int) (bool, string, error) {
	nft := tx.NonFungible(e.token)
	owner, err := nft.OwnerOf(ctx, id)
	switch {
	case ledger.IsReverted(err):
		return false, "", fmt.Errorf("%w: token %s: %v", ErrNotOwner, model.FormatAmount(id), err)
	case err != nil:
		return false, "", ledgerFailure("ownerOf", err)
	case owner != caller:
		return false, "", fmt.Errorf("%w: token %s owned by %s", ErrNotOwner, model.FormatAmount(id), owner.Hex())
	}
	err = nft.SafeTransferFrom(ctx, caller, recipient, id)
	switch {
	case ledger.IsReverted(err):
		return false, err.Error(), nil
	case err != nil:
		return false, "", ledgerFailure("safeTransferFrom", err)
	}
	return true, "", nil
}

type nativeExecutor struct{ budget uint64 }

func (e nativeExecutor) transfer(ctx context.Context, tx ledger.Tx, _, recipient common.Address, amount *uint256.Int) (bool, string, error) {
	ok, err := tx.Native().Send(ctx, recipient, amount, e.budget)
	switch {
	case ledger.IsReverted(err):
		return false, err.Error(), nil
	case err != nil:
		return false, "", ledgerFailure("send", err)
	case !ok:
		return false, "send rejected", nil
	}
	return true, "", nil
}
