package dispatch

import (
	"fmt"

	"github.com/kilianp07/multisend/core/model"
)

// admit checks req against the configuration snapshot without touching any
// state. Checks run in a fixed order so that callers always see the same
// kind for the same request.
func admit(req model.BatchRequest, snap Snapshot) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, req.Kind)
	}
	n := len(req.Recipients)
	if n > snap.MaxTransfersPerTx {
		return fmt.Errorf("%w: %d recipients, max %d", ErrBatchTooLarge, n, snap.MaxTransfersPerTx)
	}
	if n < 1 {
		return ErrEmptyBatch
	}
	if len(req.AmountsOrIDs) != n {
		return fmt.Errorf("%w: %d recipients, %d amounts", ErrLengthMismatch, n, len(req.AmountsOrIDs))
	}
	required, err := snap.Schedule.RequiredFee(n)
	if err != nil {
		return err
	}
	if req.Attached().Lt(required) {
		return fmt.Errorf("%w: attached %s, required %s", ErrInsufficientFee,
			model.FormatAmount(req.Attached()), model.FormatAmount(required))
	}
	return nil
}
