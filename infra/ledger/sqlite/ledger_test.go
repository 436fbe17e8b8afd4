package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/ledger"
)

var (
	dispatcher = common.HexToAddress("0xd15")
	alice      = common.HexToAddress("0xa11ce")
	bob        = common.HexToAddress("0xb0b")
	token      = common.HexToAddress("0x70c3")
	nft        = common.HexToAddress("0x0af7")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func open(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	err = l.Seed(context.Background(), dispatcher, []ledger.Account{{
		Address:    alice,
		Native:     u(100),
		Tokens:     map[common.Address]*uint256.Int{token: u(50)},
		Allowances: map[common.Address]*uint256.Int{token: u(30)},
		NFTs:       map[common.Address][]*uint256.Int{nft: {u(7)}},
		Operators:  []common.Address{nft},
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return l
}

func balance(t *testing.T, l *Ledger, a common.Address) uint64 {
	t.Helper()
	v, err := l.NativeBalance(context.Background(), a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v.Uint64()
}

func TestCommitPersists(t *testing.T) {
	l := open(t)
	ctx := context.Background()
	tx, err := l.Begin(ctx, ledger.Call{From: alice, To: dispatcher, Value: u(30)})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ok, err := tx.Native().Send(ctx, bob, u(25), 2300)
	if err != nil || !ok {
		t.Fatalf("send: ok=%v err=%v", ok, err)
	}
	if ok, err := tx.Fungible(token).TransferFrom(ctx, alice, bob, u(10)); err != nil || !ok {
		t.Fatalf("transferFrom: ok=%v err=%v", ok, err)
	}
	if err := tx.NonFungible(nft).SafeTransferFrom(ctx, alice, bob, u(7)); err != nil {
		t.Fatalf("safeTransferFrom: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if got := balance(t, l, alice); got != 70 {
		t.Fatalf("alice native = %d, want 70", got)
	}
	if got := balance(t, l, bob); got != 25 {
		t.Fatalf("bob native = %d, want 25", got)
	}
	if got := balance(t, l, dispatcher); got != 5 {
		t.Fatalf("dispatcher native = %d, want 5", got)
	}
	tb, _ := l.TokenBalance(ctx, token, bob)
	if tb.Uint64() != 10 {
		t.Fatalf("bob tokens = %d, want 10", tb.Uint64())
	}
	owner, err := l.Owner(ctx, nft, u(7))
	if err != nil || owner != bob {
		t.Fatalf("owner = %s err=%v", owner.Hex(), err)
	}
}

func TestRollbackDiscards(t *testing.T) {
	l := open(t)
	ctx := context.Background()
	tx, err := l.Begin(ctx, ledger.Call{From: alice, To: dispatcher, Value: u(30)})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Native().Send(ctx, bob, u(30), 2300); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := l.Begin(ctx, ledger.Call{From: alice, To: dispatcher}); !errors.Is(err, ledger.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := balance(t, l, alice); got != 100 {
		t.Fatalf("alice native = %d, want 100", got)
	}
	if got := balance(t, l, bob); got != 0 {
		t.Fatalf("bob native = %d, want 0", got)
	}
}

func TestBeginInsufficientFunds(t *testing.T) {
	l := open(t)
	_, err := l.Begin(context.Background(), ledger.Call{From: bob, To: dispatcher, Value: u(1)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReceiverPolicyAndReverts(t *testing.T) {
	l := open(t)
	ctx := context.Background()
	if err := l.SetReceiver(ctx, bob, ledger.ReceiverPolicy{Gas: 9000}); err != nil {
		t.Fatalf("set receiver: %v", err)
	}
	tx, err := l.Begin(ctx, ledger.Call{From: alice, To: dispatcher, Value: u(10)})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	ok, err := tx.Native().Send(ctx, bob, u(10), 2300)
	if err != nil || ok {
		t.Fatalf("expected failed send, ok=%v err=%v", ok, err)
	}
	_, err = tx.Fungible(token).TransferFrom(ctx, alice, bob, u(31))
	if !ledger.IsReverted(err) {
		t.Fatalf("expected revert, got %v", err)
	}
	_, err = tx.NonFungible(nft).OwnerOf(ctx, u(8))
	if !ledger.IsReverted(err) {
		t.Fatalf("expected revert, got %v", err)
	}
}
