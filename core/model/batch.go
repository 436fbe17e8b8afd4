package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind identifies the type of value moved by a batch.
type Kind int

const (
	KindFungible Kind = iota
	KindNonFungible
	KindNative
)

// NativeMarker stands in for the token address of native-value batches in
// notifications and logs.
var NativeMarker = common.HexToAddress("0x000000000000000000000000000000000000bEEF")

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFungible:
		return "fungible"
	case KindNonFungible:
		return "non_fungible"
	case KindNative:
		return "native"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindFungible && k <= KindNative
}

// ParseKind converts the textual representation back to a Kind. A few common
// aliases (erc20, erc721, eth) are accepted as well.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "fungible", "erc20", "token":
		return KindFungible, true
	case "non_fungible", "nft", "erc721":
		return KindNonFungible, true
	case "native", "eth", "ether":
		return KindNative, true
	default:
		return 0, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return &UnknownKindError{Value: string(b)}
	}
	*k = v
	return nil
}

// UnknownKindError is returned when decoding an unsupported kind name.
type UnknownKindError struct{ Value string }

func (e *UnknownKindError) Error() string { return "unknown batch kind " + e.Value }

// BatchRequest describes one payout to many recipients.
type BatchRequest struct {
	Kind Kind
	// Token is the fungible or non-fungible token contract. Ignored for
	// native batches.
	Token common.Address
	// Recipients and AmountsOrIDs are aligned 1:1. For non-fungible batches
	// the entries of AmountsOrIDs are token identifiers.
	Recipients   []common.Address
	AmountsOrIDs []*uint256.Int
	// RevertOnFail aborts the whole batch on the first failed transfer.
	RevertOnFail  bool
	AttachedValue *uint256.Int
}

// TokenOrMarker returns the token address, or NativeMarker for native batches.
func (r BatchRequest) TokenOrMarker() common.Address {
	if r.Kind == KindNative {
		return NativeMarker
	}
	return r.Token
}

// AmountAt returns the amount or identifier for recipient i, treating a nil
// entry as zero.
func (r BatchRequest) AmountAt(i int) *uint256.Int {
	if i < len(r.AmountsOrIDs) && r.AmountsOrIDs[i] != nil {
		return r.AmountsOrIDs[i]
	}
	return new(uint256.Int)
}

// Attached returns the attached value, treating nil as zero.
func (r BatchRequest) Attached() *uint256.Int {
	if r.AttachedValue == nil {
		return new(uint256.Int)
	}
	return r.AttachedValue
}

// OutcomeStatus classifies a single transfer attempt.
type OutcomeStatus int

const (
	OutcomeSucceeded OutcomeStatus = iota
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	if s == OutcomeSucceeded {
		return "succeeded"
	}
	return "failed"
}

// TransferOutcome is the result of one recipient's transfer. Values are
// created once per recipient and never mutated afterwards.
type TransferOutcome struct {
	Status     OutcomeStatus
	Recipient  common.Address
	AmountOrID *uint256.Int
	// Reason explains a failure; empty on success.
	Reason string
}

// Succeeded builds a successful outcome.
func Succeeded(recipient common.Address, amount *uint256.Int) TransferOutcome {
	return TransferOutcome{Status: OutcomeSucceeded, Recipient: recipient, AmountOrID: amount.Clone()}
}

// Failed builds a failed outcome.
func Failed(recipient common.Address, amountOrID *uint256.Int, reason string) TransferOutcome {
	return TransferOutcome{Status: OutcomeFailed, Recipient: recipient, AmountOrID: amountOrID.Clone(), Reason: reason}
}

// OK reports whether the transfer succeeded.
func (o TransferOutcome) OK() bool { return o.Status == OutcomeSucceeded }

// BatchResult summarises a committed batch. Outcomes are in request order.
type BatchResult struct {
	ID              string
	Caller          common.Address
	Kind            Kind
	Token           common.Address
	TotalSuccesses  int
	TotalValueMoved *uint256.Int
	Fee             *uint256.Int
	Change          *uint256.Int
	Outcomes        []TransferOutcome
}
