// Package fee computes the usage fee charged for a batch and the change
// returned to the caller. All arithmetic is checked: overflow and underflow
// are reported as ErrArithmetic instead of wrapping.
package fee

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrArithmetic reports an overflow or underflow in fee computation.
var ErrArithmetic = errors.New("arithmetic error")

// Schedule is the fee configuration. Nil fields are treated as zero.
type Schedule struct {
	RatePerRecipient *uint256.Int
	MinimumFee       *uint256.Int
}

// Clone returns a deep copy so snapshots are not affected by later updates.
func (s Schedule) Clone() Schedule {
	return Schedule{RatePerRecipient: orZero(s.RatePerRecipient).Clone(), MinimumFee: orZero(s.MinimumFee).Clone()}
}

// RequiredFee returns max(MinimumFee, batchSize*RatePerRecipient).
func (s Schedule) RequiredFee(batchSize int) (*uint256.Int, error) {
	if batchSize < 0 {
		return nil, fmt.Errorf("%w: negative batch size %d", ErrArithmetic, batchSize)
	}
	fee, overflow := new(uint256.Int).MulOverflow(orZero(s.RatePerRecipient), uint256.NewInt(uint64(batchSize)))
	if overflow {
		return nil, fmt.Errorf("%w: fee for %d recipients overflows", ErrArithmetic, batchSize)
	}
	if min := orZero(s.MinimumFee); fee.Lt(min) {
		fee.Set(min)
	}
	return fee, nil
}

// Settle computes the fee owed for successCount successful transfers and
// the change returned out of valueSent once distributed has been paid out.
// It fails when distributed plus the fee exceeds valueSent.
func (s Schedule) Settle(successCount int, valueSent, distributed *uint256.Int) (fee, change *uint256.Int, err error) {
	fee, err = s.RequiredFee(successCount)
	if err != nil {
		return nil, nil, err
	}
	sent := orZero(valueSent)
	owed, overflow := new(uint256.Int).AddOverflow(orZero(distributed), fee)
	if overflow || owed.Gt(sent) {
		return nil, nil, fmt.Errorf("%w: distributed %s plus fee %s exceeds value sent %s",
			ErrArithmetic, orZero(distributed).ToBig(), fee.ToBig(), sent.ToBig())
	}
	change = new(uint256.Int)
	if sent.Gt(fee) {
		change.Sub(sent, owed)
	}
	return fee, change, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
