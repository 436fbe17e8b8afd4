package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrMalformedBatch is returned when a textual batch cannot be decoded.
var ErrMalformedBatch = errors.New("malformed batch")

// BatchDocument is the textual form of a batch shared by batch files and the
// HTTP API. Amounts and Value are decimal or 0x-prefixed strings.
type BatchDocument struct {
	Caller       string   `json:"caller" yaml:"caller"`
	Kind         string   `json:"kind" yaml:"kind"`
	Token        string   `json:"token,omitempty" yaml:"token"`
	Recipients   []string `json:"recipients" yaml:"recipients"`
	Amounts      []string `json:"amounts" yaml:"amounts"`
	RevertOnFail bool     `json:"revert_on_fail" yaml:"revert_on_fail"`
	Value        string   `json:"value,omitempty" yaml:"value"`
}

// Request decodes the document. An unrecognised kind is carried through as
// an invalid Kind so the dispatcher reports it like any other admission
// failure.
func (d BatchDocument) Request() (common.Address, BatchRequest, error) {
	caller, err := ParseAddress(d.Caller)
	if err != nil {
		return common.Address{}, BatchRequest{}, fmt.Errorf("%w: caller: %v", ErrMalformedBatch, err)
	}
	req := BatchRequest{Kind: Kind(-1), RevertOnFail: d.RevertOnFail}
	if k, ok := ParseKind(d.Kind); ok {
		req.Kind = k
	}
	if req.Kind != KindNative && d.Token != "" {
		if req.Token, err = ParseAddress(d.Token); err != nil {
			return common.Address{}, BatchRequest{}, fmt.Errorf("%w: token: %v", ErrMalformedBatch, err)
		}
	}
	req.Recipients = make([]common.Address, len(d.Recipients))
	for i, s := range d.Recipients {
		if req.Recipients[i], err = ParseAddress(s); err != nil {
			return common.Address{}, BatchRequest{}, fmt.Errorf("%w: recipient %d: %v", ErrMalformedBatch, i, err)
		}
	}
	req.AmountsOrIDs = make([]*uint256.Int, len(d.Amounts))
	for i, s := range d.Amounts {
		if req.AmountsOrIDs[i], err = ParseAmount(s); err != nil {
			return common.Address{}, BatchRequest{}, fmt.Errorf("%w: amount %d: %v", ErrMalformedBatch, i, err)
		}
	}
	if req.AttachedValue, err = ParseAmount(d.Value); err != nil {
		return common.Address{}, BatchRequest{}, fmt.Errorf("%w: value: %v", ErrMalformedBatch, err)
	}
	return caller, req, nil
}
