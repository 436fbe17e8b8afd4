package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kilianp07/multisend/core/fee"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		code Code
		name string
	}{
		{fmt.Errorf("%w: 3 > 2", ErrBatchTooLarge), CodeBatchTooLarge, "BatchTooLarge"},
		{ErrEmptyBatch, CodeEmptyBatch, "EmptyBatch"},
		{fmt.Errorf("wrap: %w", fee.ErrArithmetic), CodeArithmetic, "ArithmeticError"},
		{&RevertedError{}, CodeTransfersReverted, "TransfersReverted"},
		{ledgerFailure("begin", errors.New("boom")), CodeLedgerFailure, "LedgerFailure"},
		{errors.New("other"), CodeUnknown, ""},
		{nil, CodeUnknown, ""},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Errorf("CodeOf(%v) = %d, want %d", tc.err, got, tc.code)
		}
		if got := KindName(tc.err); got != tc.name {
			t.Errorf("KindName(%v) = %q, want %q", tc.err, got, tc.name)
		}
	}
}

func TestCodesUnique(t *testing.T) {
	seen := map[Code]bool{}
	for _, k := range kinds {
		if seen[k.code] {
			t.Fatalf("duplicate code %d", k.code)
		}
		seen[k.code] = true
	}
}

func TestRevertedErrorMessage(t *testing.T) {
	err := &RevertedError{Recipient: recB, AmountOrID: u(20), Reason: "send rejected"}
	want := "transfers reverted: recipient " + recB.Hex() + " amount 20: send rejected"
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
	if !errors.Is(fmt.Errorf("outer: %w", err), ErrTransfersReverted) {
		t.Fatalf("wrapped reverted error does not match sentinel")
	}
}
