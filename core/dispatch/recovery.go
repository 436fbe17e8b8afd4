package dispatch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
)

// Recovery operations move assets stuck in dispatcher custody. They are
// owner only and run in their own ledger transaction.

// RecoverNative sends amount of native value held by the dispatcher to to.
// A nil amount recovers the whole balance.
func (d *Dispatcher) RecoverNative(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var sent *uint256.Int
	err := d.recoverAssets(ctx, OpRecoverNative, caller, func(ctx context.Context, tx ledger.Tx, snap Snapshot) error {
		native := tx.Native()
		amt, err := amountOrBalance(amount, func() (*uint256.Int, error) { return native.BalanceOf(ctx, snap.Address) })
		if err != nil {
			return err
		}
		ok, err := native.Send(ctx, to, amt, snap.NativeGasStipend)
		if err != nil && !ledger.IsReverted(err) {
			return ledgerFailure("send", err)
		}
		if err != nil || !ok {
			return fmt.Errorf("%w: %s rejected %s", ErrRecoveryFailed, to.Hex(), model.FormatAmount(amt))
		}
		sent = amt
		return nil
	})
	return sent, err
}

// RecoverTokens transfers amount of token held by the dispatcher to to. A
// nil amount recovers the whole balance.
func (d *Dispatcher) RecoverTokens(ctx context.Context, caller, token, to common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var sent *uint256.Int
	err := d.recoverAssets(ctx, OpRecoverTokens, caller, func(ctx context.Context, tx ledger.Tx, snap Snapshot) error {
		ft := tx.Fungible(token)
		amt, err := amountOrBalance(amount, func() (*uint256.Int, error) { return ft.BalanceOf(ctx, snap.Address) })
		if err != nil {
			return err
		}
		ok, err := ft.Transfer(ctx, to, amt)
		if err != nil && !ledger.IsReverted(err) {
			return ledgerFailure("transfer", err)
		}
		if err != nil || !ok {
			return fmt.Errorf("%w: token %s transfer of %s failed: %v", ErrRecoveryFailed, token.Hex(), model.FormatAmount(amt), err)
		}
		sent = amt
		return nil
	})
	return sent, err
}

// RecoverNFT transfers a non-fungible token held by the dispatcher to to.
func (d *Dispatcher) RecoverNFT(ctx context.Context, caller, token, to common.Address, id *uint256.Int) error {
	return d.recoverAssets(ctx, OpRecoverNFT, caller, func(ctx context.Context, tx ledger.Tx, snap Snapshot) error {
		if id == nil {
			return fmt.Errorf("%w: nil token id", ErrRecoveryFailed)
		}
		err := tx.NonFungible(token).SafeTransferFrom(ctx, snap.Address, to, id)
		if ledger.IsReverted(err) {
			return fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
		}
		if err != nil {
			return ledgerFailure("safeTransferFrom", err)
		}
		return nil
	})
}

func (d *Dispatcher) recoverAssets(ctx context.Context, op string, caller common.Address, fn func(context.Context, ledger.Tx, Snapshot) error) (err error) {
	c := d.collaborators()
	defer func() { d.recordAdmin(c, op, caller, "", err) }()
	if !d.guard.acquire() {
		guardRejections.Inc()
		return fmt.Errorf("%w: %s", ErrReentrantCall, op)
	}
	defer d.guard.release()
	if !c.access.IsOwner(caller) {
		return fmt.Errorf("%w: %s by %s", ErrUnauthorized, op, caller.Hex())
	}
	ctx = context.WithoutCancel(ctx)
	snap := d.state.Snapshot()
	tx, err := d.ledger.Begin(ctx, ledger.Call{From: caller, To: snap.Address})
	if err != nil {
		return ledgerFailure("begin", err)
	}
	if err := fn(ctx, tx, snap); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			d.logger.Errorf("rollback %s: %v", op, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return ledgerFailure("commit", err)
	}
	return nil
}

func amountOrBalance(amount *uint256.Int, balance func() (*uint256.Int, error)) (*uint256.Int, error) {
	if amount != nil {
		return amount.Clone(), nil
	}
	bal, err := balance()
	if err != nil {
		return nil, ledgerFailure("balanceOf", err)
	}
	return bal, nil
}
