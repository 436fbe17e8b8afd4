package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/model"
)

func TestEnvelopeJSON(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := TransferFailed{
		BatchID:    "b1",
		Caller:     common.HexToAddress("0x01"),
		Token:      model.NativeMarker,
		Kind:       model.KindNative,
		Recipient:  common.HexToAddress("0x02"),
		AmountOrID: uint256.NewInt(20),
		Reason:     "send rejected",
		Time:       ts,
	}
	b, err := json.Marshal(ev.Envelope())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != TopicTransferFailed {
		t.Fatalf("type = %v", got["type"])
	}
	if got["amount_or_id"] != "20" || got["kind"] != "native" {
		t.Fatalf("unexpected payload %s", b)
	}
	if _, ok := got["total"]; ok {
		t.Fatalf("total should be omitted: %s", b)
	}
}

func TestTopics(t *testing.T) {
	evs := []Event{TransferMultiSent{}, TransferFailed{}, TransfersReverted{}, ConfigChanged{}}
	seen := map[string]bool{}
	for _, e := range evs {
		if e.Topic() != e.Envelope().Type {
			t.Fatalf("envelope type mismatch for %T", e)
		}
		seen[e.Topic()] = true
	}
	if len(seen) != 4 {
		t.Fatalf("topics not unique: %v", seen)
	}
}
