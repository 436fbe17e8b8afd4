package batches

import (
	"errors"
	"net/http"

	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/model"
)

// Result is the JSON form of a committed batch. Amounts are decimal strings.
type Result struct {
	ID              string    `json:"id"`
	Caller          string    `json:"caller"`
	Kind            string    `json:"kind"`
	Token           string    `json:"token"`
	TotalSuccesses  int       `json:"total_successes"`
	TotalValueMoved string    `json:"total_value_moved"`
	Fee             string    `json:"fee"`
	Change          string    `json:"change"`
	Outcomes        []Outcome `json:"outcomes"`
}

// Outcome is the JSON form of one recipient's transfer.
type Outcome struct {
	Recipient  string `json:"recipient"`
	AmountOrID string `json:"amount_or_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// Error is returned with every non-2xx response produced by the dispatcher.
type Error struct {
	Code  int    `json:"code"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

// Quote answers GET /api/fees.
type Quote struct {
	Size int    `json:"size"`
	Fee  string `json:"fee"`
}

// NewResult converts a dispatcher result to its JSON form.
func NewResult(r *model.BatchResult) Result {
	out := Result{
		ID:              r.ID,
		Caller:          r.Caller.Hex(),
		Kind:            r.Kind.String(),
		Token:           r.Token.Hex(),
		TotalSuccesses:  r.TotalSuccesses,
		TotalValueMoved: model.FormatAmount(r.TotalValueMoved),
		Fee:             model.FormatAmount(r.Fee),
		Change:          model.FormatAmount(r.Change),
		Outcomes:        make([]Outcome, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		out.Outcomes[i] = Outcome{
			Recipient:  o.Recipient.Hex(),
			AmountOrID: model.FormatAmount(o.AmountOrID),
			Status:     o.Status.String(),
			Reason:     o.Reason,
		}
	}
	return out
}

// StatusFor maps a dispatcher error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrMalformedBatch),
		errors.Is(err, dispatch.ErrBatchTooLarge),
		errors.Is(err, dispatch.ErrEmptyBatch),
		errors.Is(err, dispatch.ErrLengthMismatch),
		errors.Is(err, dispatch.ErrInsufficientFee),
		errors.Is(err, dispatch.ErrUnknownKind),
		errors.Is(err, dispatch.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNotOwner), errors.Is(err, dispatch.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, dispatch.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrContractPaused):
		return http.StatusLocked
	case errors.Is(err, dispatch.ErrTransfersReverted),
		errors.Is(err, dispatch.ErrAllTransfersFailed),
		errors.Is(err, dispatch.ErrRecoveryFailed),
		errors.Is(err, dispatch.ErrArithmetic),
		errors.Is(err, dispatch.ErrSettlementFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewError converts a dispatcher error to its JSON form.
func NewError(err error) Error {
	return Error{Code: int(dispatch.CodeOf(err)), Kind: dispatch.KindName(err), Error: err.Error()}
}
