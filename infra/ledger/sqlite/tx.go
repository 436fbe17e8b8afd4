package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
)

type tx struct {
	l    *Ledger
	call ledger.Call
	q    *sql.Tx
	done bool
}

func (t *tx) Fungible(token common.Address) ledger.FungibleToken {
	return &fungible{tx: t, token: token}
}

func (t *tx) NonFungible(token common.Address) ledger.NonFungibleToken {
	return &nonFungible{tx: t, token: token}
}

func (t *tx) Native() ledger.NativeTransfer { return &native{tx: t} }

func (t *tx) Commit() error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	defer t.l.txMu.Unlock()
	return t.q.Commit()
}

func (t *tx) Rollback() error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	defer t.l.txMu.Unlock()
	return t.q.Rollback()
}

func (t *tx) check() error {
	if t.done {
		return ledger.ErrTxDone
	}
	return nil
}

func reverted(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ledger.ErrReverted, fmt.Sprintf(format, args...))
}

type fungible struct {
	tx    *tx
	token common.Address
}

func (f *fungible) TransferFrom(ctx context.Context, owner, recipient common.Address, amount *uint256.Int) (bool, error) {
	if err := f.tx.check(); err != nil {
		return false, err
	}
	if recipient == (common.Address{}) {
		return false, reverted("transfer to the zero address")
	}
	spender := f.tx.call.To
	allowance, err := allowanceOf(ctx, f.tx.q, f.token, owner, spender)
	if err != nil {
		return false, err
	}
	if allowance.Lt(amount) {
		return false, reverted("insufficient allowance")
	}
	ok, err := moveToken(ctx, f.tx.q, f.token, owner, recipient, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, reverted("transfer amount exceeds balance")
	}
	return true, setAllowance(ctx, f.tx.q, f.token, owner, spender, new(uint256.Int).Sub(allowance, amount))
}

func (f *fungible) Transfer(ctx context.Context, recipient common.Address, amount *uint256.Int) (bool, error) {
	if err := f.tx.check(); err != nil {
		return false, err
	}
	if recipient == (common.Address{}) {
		return false, reverted("transfer to the zero address")
	}
	ok, err := moveToken(ctx, f.tx.q, f.token, f.tx.call.To, recipient, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, reverted("transfer amount exceeds balance")
	}
	return true, nil
}

func (f *fungible) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	if err := f.tx.check(); err != nil {
		return nil, err
	}
	return tokenOf(ctx, f.tx.q, f.token, account)
}

type nonFungible struct {
	tx    *tx
	token common.Address
}

func (n *nonFungible) OwnerOf(ctx context.Context, id *uint256.Int) (common.Address, error) {
	if err := n.tx.check(); err != nil {
		return common.Address{}, err
	}
	o, err := ownerOf(ctx, n.tx.q, n.token, id)
	if errors.Is(err, errNotFound) {
		return common.Address{}, reverted("token %s does not exist", model.FormatAmount(id))
	}
	return o, err
}

func (n *nonFungible) SafeTransferFrom(ctx context.Context, owner, recipient common.Address, id *uint256.Int) error {
	if err := n.tx.check(); err != nil {
		return err
	}
	cur, err := ownerOf(ctx, n.tx.q, n.token, id)
	if errors.Is(err, errNotFound) {
		return reverted("token %s does not exist", model.FormatAmount(id))
	}
	if err != nil {
		return err
	}
	if cur != owner {
		return reverted("%s is not the owner of %s", owner.Hex(), model.FormatAmount(id))
	}
	if recipient == (common.Address{}) {
		return reverted("transfer to the zero address")
	}
	approved := owner == n.tx.call.To
	if !approved {
		if approved, err = isOperator(ctx, n.tx.q, n.token, owner, n.tx.call.To); err != nil {
			return err
		}
	}
	if !approved {
		return reverted("dispatcher not approved for %s", owner.Hex())
	}
	policy, err := receiverOf(ctx, n.tx.q, recipient)
	if err != nil {
		return err
	}
	if policy.Reject {
		return reverted("%s does not accept tokens", recipient.Hex())
	}
	return setOwner(ctx, n.tx.q, n.token, id, recipient)
}

type native struct{ tx *tx }

func (n *native) Send(ctx context.Context, recipient common.Address, amount *uint256.Int, budget uint64) (bool, error) {
	if err := n.tx.check(); err != nil {
		return false, err
	}
	policy, err := receiverOf(ctx, n.tx.q, recipient)
	if err != nil {
		return false, err
	}
	if policy.Reject || policy.Gas > budget {
		return false, nil
	}
	return moveNative(ctx, n.tx.q, n.tx.call.To, recipient, amount)
}

func (n *native) BalanceOf(ctx context.Context, account common.Address) (*uint256.Int, error) {
	if err := n.tx.check(); err != nil {
		return nil, err
	}
	return nativeOf(ctx, n.tx.q, account)
}
