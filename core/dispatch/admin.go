package dispatch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/core/model"
)

// Admin operation names, used in notifications and metrics.
const (
	OpSetFeeAddress        = "set_fee_address"
	OpSetRatePerAddress    = "set_rate_per_address"
	OpSetMinimumRatePerTx  = "set_minimum_rate_per_tx"
	OpSetMaxTransfersPerTx = "set_max_transfers_per_tx"
	OpPause                = "pause"
	OpUnpause              = "unpause"
	OpTransferOwnership    = "transfer_ownership"
	OpRecoverNative        = "recover_native"
	OpRecoverTokens        = "recover_tokens"
	OpRecoverNFT           = "recover_nft"
)

// SetFeeAddress changes the account that collects fees.
func (d *Dispatcher) SetFeeAddress(ctx context.Context, caller, addr common.Address) error {
	return d.admin(ctx, OpSetFeeAddress, caller, addr.Hex(), func(s *Snapshot) error {
		s.FeeAddress = addr
		return nil
	})
}

// SetRatePerAddress changes the per-recipient fee rate.
func (d *Dispatcher) SetRatePerAddress(ctx context.Context, caller common.Address, rate *uint256.Int) error {
	return d.admin(ctx, OpSetRatePerAddress, caller, model.FormatAmount(rate), func(s *Snapshot) error {
		if rate == nil {
			return fmt.Errorf("%w: nil rate", ErrInvalidConfig)
		}
		s.Schedule.RatePerRecipient = rate.Clone()
		return nil
	})
}

// SetMinimumRatePerTx changes the minimum fee per call.
func (d *Dispatcher) SetMinimumRatePerTx(ctx context.Context, caller common.Address, min *uint256.Int) error {
	return d.admin(ctx, OpSetMinimumRatePerTx, caller, model.FormatAmount(min), func(s *Snapshot) error {
		if min == nil {
			return fmt.Errorf("%w: nil minimum", ErrInvalidConfig)
		}
		s.Schedule.MinimumFee = min.Clone()
		return nil
	})
}

// SetMaxTransfersPerTx changes the batch size cap.
func (d *Dispatcher) SetMaxTransfersPerTx(ctx context.Context, caller common.Address, max int) error {
	return d.admin(ctx, OpSetMaxTransfersPerTx, caller, strconv.Itoa(max), func(s *Snapshot) error {
		s.MaxTransfersPerTx = max
		return nil
	})
}

// Pause suspends dispatching. Admin operations keep working.
func (d *Dispatcher) Pause(ctx context.Context, caller common.Address) error {
	return d.admin(ctx, OpPause, caller, "true", func(s *Snapshot) error {
		s.Paused = true
		return nil
	})
}

// Unpause resumes dispatching.
func (d *Dispatcher) Unpause(ctx context.Context, caller common.Address) error {
	return d.admin(ctx, OpUnpause, caller, "false", func(s *Snapshot) error {
		s.Paused = false
		return nil
	})
}

// TransferOwnership hands administration to owner.
func (d *Dispatcher) TransferOwnership(ctx context.Context, caller, owner common.Address) error {
	return d.admin(ctx, OpTransferOwnership, caller, owner.Hex(), func(s *Snapshot) error {
		s.Owner = owner
		return nil
	})
}

// admin runs one owner-only state change while holding the execution guard.
func (d *Dispatcher) admin(_ context.Context, op string, caller common.Address, value string, apply func(*Snapshot) error) (err error) {
	c := d.collaborators()
	defer func() { d.recordAdmin(c, op, caller, value, err) }()
	if !d.guard.acquire() {
		guardRejections.Inc()
		return fmt.Errorf("%w: %s", ErrReentrantCall, op)
	}
	defer d.guard.release()
	if !c.access.IsOwner(caller) {
		return fmt.Errorf("%w: %s by %s", ErrUnauthorized, op, caller.Hex())
	}
	return d.state.update(apply)
}

func (d *Dispatcher) recordAdmin(c collaborators, op string, caller common.Address, value string, err error) {
	result := "accepted"
	if err != nil {
		result = "rejected"
		d.logger.Warnf("admin %s by %s rejected: %v", op, caller.Hex(), err)
	} else {
		d.logger.Infof("admin %s by %s: %s", op, caller.Hex(), value)
	}
	adminOps.WithLabelValues(op, result).Inc()
	now := d.now()
	if ar, ok := c.metrics.(metrics.AdminRecorder); ok {
		if merr := ar.RecordAdminOperation(metrics.AdminEvent{
			Operation: op,
			Caller:    caller.Hex(),
			Accepted:  err == nil,
			Time:      now,
		}); merr != nil {
			d.logger.Errorf("admin metrics error: %v", merr)
		}
	}
	if err == nil && c.bus != nil {
		c.bus.Publish(events.ConfigChanged{Operation: op, Caller: caller, Value: value, Time: now})
	}
}
