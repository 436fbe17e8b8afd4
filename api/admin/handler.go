// Package admin exposes the dispatcher's owner operations over HTTP. The
// caller address is taken from the request body; authenticating it is the
// deployment's concern (bearer token, network policy).
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/api/batches"
	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/model"
)

// Config is the JSON form of the dispatcher configuration.
type Config struct {
	Address           string `json:"address"`
	Owner             string `json:"owner"`
	FeeAddress        string `json:"fee_address"`
	RatePerAddress    string `json:"rate_per_address"`
	MinimumRatePerTx  string `json:"minimum_rate_per_tx"`
	MaxTransfersPerTx int    `json:"max_transfers_per_tx"`
	NativeGasStipend  uint64 `json:"native_gas_stipend"`
	Paused            bool   `json:"paused"`
	Phase             string `json:"phase"`
}

// Request is the body of every admin operation. Fields not used by an
// operation are ignored.
type Request struct {
	Caller  string `json:"caller"`
	Address string `json:"address,omitempty"`
	Token   string `json:"token,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Handler serves /api/admin.
type Handler struct {
	d     *dispatch.Dispatcher
	seq   *dispatch.Sequencer
	token string
}

// NewHandler returns an admin handler. Operations are queued on seq when it
// is non-nil so they do not collide with in-flight batches.
func NewHandler(d *dispatch.Dispatcher, seq *dispatch.Sequencer, token string) *Handler {
	return &Handler{d: d, seq: seq, token: token}
}

// Register adds the admin routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/config", h.auth(h.config))
	mux.HandleFunc("POST /api/admin/{op}", h.auth(h.operate))
}

func (h *Handler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	s := h.d.Snapshot()
	writeJSON(w, http.StatusOK, Config{
		Address:           s.Address.Hex(),
		Owner:             s.Owner.Hex(),
		FeeAddress:        s.FeeAddress.Hex(),
		RatePerAddress:    model.FormatAmount(s.Schedule.RatePerRecipient),
		MinimumRatePerTx:  model.FormatAmount(s.Schedule.MinimumFee),
		MaxTransfersPerTx: s.MaxTransfersPerTx,
		NativeGasStipend:  s.NativeGasStipend,
		Paused:            s.Paused,
		Phase:             h.d.Phase().String(),
	})
}

type operation func(ctx context.Context, caller common.Address, req Request) (any, error)

func (h *Handler) operations() map[string]operation {
	return map[string]operation{
		dispatch.OpSetFeeAddress: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			addr, err := parseAddress("address", req.Address)
			if err != nil {
				return nil, err
			}
			return nil, h.d.SetFeeAddress(ctx, caller, addr)
		},
		dispatch.OpSetRatePerAddress: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			v, err := parseAmount("value", req.Value)
			if err != nil {
				return nil, err
			}
			return nil, h.d.SetRatePerAddress(ctx, caller, v)
		},
		dispatch.OpSetMinimumRatePerTx: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			v, err := parseAmount("value", req.Value)
			if err != nil {
				return nil, err
			}
			return nil, h.d.SetMinimumRatePerTx(ctx, caller, v)
		},
		dispatch.OpSetMaxTransfersPerTx: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			v, err := parseAmount("value", req.Value)
			if err != nil {
				return nil, err
			}
			if !v.IsUint64() || v.Uint64() > uint64(^uint(0)>>1) {
				return nil, fmt.Errorf("%w: value out of range", dispatch.ErrInvalidConfig)
			}
			return nil, h.d.SetMaxTransfersPerTx(ctx, caller, int(v.Uint64()))
		},
		dispatch.OpPause: func(ctx context.Context, caller common.Address, _ Request) (any, error) {
			return nil, h.d.Pause(ctx, caller)
		},
		dispatch.OpUnpause: func(ctx context.Context, caller common.Address, _ Request) (any, error) {
			return nil, h.d.Unpause(ctx, caller)
		},
		dispatch.OpTransferOwnership: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			addr, err := parseAddress("address", req.Address)
			if err != nil {
				return nil, err
			}
			return nil, h.d.TransferOwnership(ctx, caller, addr)
		},
		dispatch.OpRecoverNative: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			to, err := parseAddress("address", req.Address)
			if err != nil {
				return nil, err
			}
			amount, err := optionalAmount(req.Amount)
			if err != nil {
				return nil, err
			}
			sent, err := h.d.RecoverNative(ctx, caller, to, amount)
			if err != nil {
				return nil, err
			}
			return map[string]string{"amount": model.FormatAmount(sent)}, nil
		},
		dispatch.OpRecoverTokens: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			to, err := parseAddress("address", req.Address)
			if err != nil {
				return nil, err
			}
			token, err := parseAddress("token", req.Token)
			if err != nil {
				return nil, err
			}
			amount, err := optionalAmount(req.Amount)
			if err != nil {
				return nil, err
			}
			sent, err := h.d.RecoverTokens(ctx, caller, token, to, amount)
			if err != nil {
				return nil, err
			}
			return map[string]string{"amount": model.FormatAmount(sent)}, nil
		},
		dispatch.OpRecoverNFT: func(ctx context.Context, caller common.Address, req Request) (any, error) {
			to, err := parseAddress("address", req.Address)
			if err != nil {
				return nil, err
			}
			token, err := parseAddress("token", req.Token)
			if err != nil {
				return nil, err
			}
			id, err := parseAmount("amount", req.Amount)
			if err != nil {
				return nil, err
			}
			return nil, h.d.RecoverNFT(ctx, caller, token, to, id)
		},
	}
}

func (h *Handler) operate(w http.ResponseWriter, r *http.Request) {
	op, ok := h.operations()[r.PathValue("op")]
	if !ok {
		http.Error(w, "unknown operation", http.StatusNotFound)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	var out any
	run := func(ctx context.Context) { out, err = op(ctx, caller, req) }
	if h.seq != nil {
		if serr := h.seq.Do(r.Context(), run); serr != nil {
			err = serr
		}
	} else {
		run(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = map[string]string{"status": "ok"}
	}
	writeJSON(w, http.StatusOK, out)
}

func parseAddress(field, s string) (common.Address, error) {
	a, err := model.ParseAddress(s)
	if err != nil {
		return a, fmt.Errorf("%w: %s: %v", dispatch.ErrInvalidConfig, field, err)
	}
	return a, nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s is required", dispatch.ErrInvalidConfig, field)
	}
	v, err := model.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dispatch.ErrInvalidConfig, field, err)
	}
	return v, nil
}

func optionalAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount("amount", s)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, batches.StatusFor(err), batches.Error{
		Code:  int(dispatch.CodeOf(err)),
		Kind:  dispatch.KindName(err),
		Error: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
