package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/model"
)

// Topic names, also used as MQTT topic suffixes and websocket event types.
const (
	TopicTransferMultiSent = "transfer_multi_sent"
	TopicTransferFailed    = "transfer_failed"
	TopicTransfersReverted = "transfers_reverted"
	TopicConfigChanged     = "config_changed"
)

// Event is implemented by every dispatcher notification.
type Event interface {
	Topic() string
	Envelope() Envelope
}

// TransferMultiSent is published once per committed batch.
type TransferMultiSent struct {
	BatchID   string
	Caller    common.Address
	Token     common.Address
	Kind      model.Kind
	Total     *uint256.Int
	Successes int
	Time      time.Time
}

func (TransferMultiSent) Topic() string { return TopicTransferMultiSent }

func (e TransferMultiSent) Envelope() Envelope {
	return Envelope{
		Type:      e.Topic(),
		BatchID:   e.BatchID,
		Caller:    e.Caller.Hex(),
		Kind:      e.Kind.String(),
		Token:     e.Token.Hex(),
		Total:     model.FormatAmount(e.Total),
		Successes: e.Successes,
		Time:      e.Time,
	}
}

// TransferFailed is published for each failed recipient of a committed
// best-effort batch.
type TransferFailed struct {
	BatchID    string
	Caller     common.Address
	Token      common.Address
	Kind       model.Kind
	Recipient  common.Address
	AmountOrID *uint256.Int
	Reason     string
	Time       time.Time
}

func (TransferFailed) Topic() string { return TopicTransferFailed }

func (e TransferFailed) Envelope() Envelope {
	return Envelope{
		Type:       e.Topic(),
		BatchID:    e.BatchID,
		Caller:     e.Caller.Hex(),
		Kind:       e.Kind.String(),
		Token:      e.Token.Hex(),
		Recipient:  e.Recipient.Hex(),
		AmountOrID: model.FormatAmount(e.AmountOrID),
		Reason:     e.Reason,
		Time:       e.Time,
	}
}

// TransfersReverted is published when a revert-on-fail batch aborts.
type TransfersReverted struct {
	BatchID    string
	Caller     common.Address
	Token      common.Address
	Kind       model.Kind
	Recipient  common.Address
	AmountOrID *uint256.Int
	Time       time.Time
}

func (TransfersReverted) Topic() string { return TopicTransfersReverted }

func (e TransfersReverted) Envelope() Envelope {
	return Envelope{
		Type:       e.Topic(),
		BatchID:    e.BatchID,
		Caller:     e.Caller.Hex(),
		Kind:       e.Kind.String(),
		Token:      e.Token.Hex(),
		Recipient:  e.Recipient.Hex(),
		AmountOrID: model.FormatAmount(e.AmountOrID),
		Time:       e.Time,
	}
}

// ConfigChanged is published after a successful admin operation.
type ConfigChanged struct {
	Operation string
	Caller    common.Address
	Value     string
	Time      time.Time
}

func (ConfigChanged) Topic() string { return TopicConfigChanged }

func (e ConfigChanged) Envelope() Envelope {
	return Envelope{
		Type:      e.Topic(),
		Caller:    e.Caller.Hex(),
		Operation: e.Operation,
		Value:     e.Value,
		Time:      e.Time,
	}
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type       string    `json:"type"`
	BatchID    string    `json:"batch_id,omitempty"`
	Caller     string    `json:"caller,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Token      string    `json:"token,omitempty"`
	Recipient  string    `json:"recipient,omitempty"`
	AmountOrID string    `json:"amount_or_id,omitempty"`
	Total      string    `json:"total,omitempty"`
	Successes  int       `json:"successes,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Value      string    `json:"value,omitempty"`
	Time       time.Time `json:"time"`
}
