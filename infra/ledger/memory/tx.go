package memory

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
)

type tx struct {
	l    *Ledger
	call ledger.Call
	st   *state
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
	t.l.mu.Lock()
	t.l.state = t.st
	t.l.mu.Unlock()
	t.l.txMu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	t.st = nil
	t.l.txMu.Unlock()
	return nil
}

func (t *tx) check() error {
	if t.done {
		return ledger.ErrTxDone
	}
	return nil
}

// deliver runs the receive hook of to, if any.
func (t *tx) deliver(ctx context.Context, to common.Address, amountOrID *uint256.Int) error {
	r := t.l.receiver(to)
	if r.hook == nil {
		return nil
	}
	return r.hook(ctx, t.call.To, amountOrID)
}

type fungible struct {
	tx    *tx
	token common.Address
}

func (f *fungible) fail(format string, args ...any) (bool, error) {
	if f.tx.l.style(f.token) == StyleReturnFalse {
		return false, nil
	}
	return false, fmt.Errorf("%w: "+format, append([]any{ledger.ErrReverted}, args...)...)
}

func (f *fungible) TransferFrom(_ context.Context, owner, recipient common.Address, amount *uint256.Int) (bool, error) {
	if err := f.tx.check(); err != nil {
		return false, err
	}
	st := f.tx.st
	spender := f.tx.call.To
	switch {
	case recipient == (common.Address{}):
		return f.fail("transfer to the zero address")
	case f.tx.l.isBlocked(f.token, recipient):
		return f.fail("recipient %s blocked", recipient.Hex())
	}
	allowance := st.allowance(f.token, owner, spender)
	if allowance.Lt(amount) {
		return f.fail("insufficient allowance")
	}
	if !st.moveToken(f.token, owner, recipient, amount) {
		return f.fail("transfer amount exceeds balance")
	}
	st.setAllowance(f.token, owner, spender, new(uint256.Int).Sub(allowance, amount))
	return true, nil
}

func (f *fungible) Transfer(_ context.Context, recipient common.Address, amount *uint256.Int) (bool, error) {
	if err := f.tx.check(); err != nil {
		return false, err
	}
	if recipient == (common.Address{}) || f.tx.l.isBlocked(f.token, recipient) {
		return f.fail("recipient %s rejected", recipient.Hex())
	}
	if !f.tx.st.moveToken(f.token, f.tx.call.To, recipient, amount) {
		return f.fail("transfer amount exceeds balance")
	}
	return true, nil
}

func (f *fungible) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	if err := f.tx.check(); err != nil {
		return nil, err
	}
	return f.tx.st.tokenOf(f.token, account).Clone(), nil
}

type nonFungible struct {
	tx    *tx
	token common.Address
}

func (n *nonFungible) OwnerOf(_ context.Context, id *uint256.Int) (common.Address, error) {
	if err := n.tx.check(); err != nil {
		return common.Address{}, err
	}
	o, ok := n.tx.st.nfts[n.token][*id]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %s does not exist", ledger.ErrReverted, id.ToBig())
	}
	return o, nil
}

func (n *nonFungible) SafeTransferFrom(ctx context.Context, owner, recipient common.Address, id *uint256.Int) error {
	if err := n.tx.check(); err != nil {
		return err
	}
	st := n.tx.st
	cur, ok := st.nfts[n.token][*id]
	switch {
	case !ok:
		return fmt.Errorf("%w: token %s does not exist", ledger.ErrReverted, id.ToBig())
	case cur != owner:
		return fmt.Errorf("%w: %s is not the owner of %s", ledger.ErrReverted, owner.Hex(), id.ToBig())
	case recipient == (common.Address{}):
		return fmt.Errorf("%w: transfer to the zero address", ledger.ErrReverted)
	case owner != n.tx.call.To && !st.operators[n.token][owner][n.tx.call.To]:
		return fmt.Errorf("%w: dispatcher not approved for %s", ledger.ErrReverted, owner.Hex())
	case n.tx.l.isBlocked(n.token, recipient):
		return fmt.Errorf("%w: recipient %s blocked", ledger.ErrReverted, recipient.Hex())
	}
	if n.tx.l.receiver(recipient).policy.Reject {
		return fmt.Errorf("%w: %s does not accept tokens", ledger.ErrReverted, recipient.Hex())
	}
	st.setOwner(n.token, id, recipient)
	if err := n.tx.deliver(ctx, recipient, id); err != nil {
		st.setOwner(n.token, id, owner)
		return fmt.Errorf("%w: receiver hook: %v", ledger.ErrReverted, err)
	}
	return nil
}

type native struct{ tx *tx }

func (n *native) Send(ctx context.Context, recipient common.Address, amount *uint256.Int, budget uint64) (bool, error) {
	if err := n.tx.check(); err != nil {
		return false, err
	}
	r := n.tx.l.receiver(recipient)
	if r.policy.Reject || r.policy.Gas > budget {
		return false, nil
	}
	from := n.tx.call.To
	if !n.tx.st.moveNative(from, recipient, amount) {
		return false, nil
	}
	if err := n.tx.deliver(ctx, recipient, amount); err != nil {
		n.tx.st.moveNative(recipient, from, amount)
		return false, nil
	}
	return true, nil
}

func (n *native) BalanceOf(_ context.Context, account common.Address) (*uint256.Int, error) {
	if err := n.tx.check(); err != nil {
		return nil, err
	}
	return n.tx.st.nativeOf(account).Clone(), nil
}
