package dispatch

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/infra/ledger/memory"
	"github.com/kilianp07/multisend/infra/logger"
	"github.com/kilianp07/multisend/internal/eventbus"
)

var (
	dispatcherAddr = common.HexToAddress("0x00000000000000000000000000000000000d15")
	ownerAddr      = common.HexToAddress("0x000000000000000000000000000000000000e0")
	feeAddr        = common.HexToAddress("0x000000000000000000000000000000000000fee")
	caller         = common.HexToAddress("0x0000000000000000000000000000000000ca11")
	other          = common.HexToAddress("0x000000000000000000000000000000000000bad")
	recA           = common.HexToAddress("0x00000000000000000000000000000000000a01")
	recB           = common.HexToAddress("0x00000000000000000000000000000000000b02")
	recC           = common.HexToAddress("0x00000000000000000000000000000000000c03")
	tokenAddr      = common.HexToAddress("0x0000000000000000000000000000000000070c")
	nftAddr        = common.HexToAddress("0x000000000000000000000000000000000000af7")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func amounts(vs ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = u(v)
	}
	return out
}

type fixture struct {
	d   *Dispatcher
	l   *memory.Ledger
	bus *eventbus.Bus
	sub <-chan eventbus.Event
}

func newFixture(t *testing.T, rate, min uint64) *fixture {
	t.Helper()
	l := memory.New()
	err := l.Seed(context.Background(), dispatcherAddr, []ledger.Account{
		{
			Address:    caller,
			Native:     u(1000),
			Tokens:     map[common.Address]*uint256.Int{tokenAddr: u(1000)},
			Allowances: map[common.Address]*uint256.Int{tokenAddr: u(1000)},
			NFTs:       map[common.Address][]*uint256.Int{nftAddr: amounts(1, 2, 3)},
			Operators:  []common.Address{nftAddr},
		},
		{
			Address: other,
			Native:  u(1000),
			NFTs:    map[common.Address][]*uint256.Int{nftAddr: amounts(5)},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	d, err := NewDispatcher(Config{
		Address:          dispatcherAddr.Hex(),
		Owner:            ownerAddr.Hex(),
		FeeAddress:       feeAddr.Hex(),
		RatePerAddress:   strconv.FormatUint(rate, 10),
		MinimumRatePerTx: strconv.FormatUint(min, 10),
	}, l, logger.NopLogger{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	bus := eventbus.New()
	t.Cleanup(bus.Close)
	d.SetEventBus(bus)
	return &fixture{d: d, l: l, bus: bus, sub: bus.Subscribe()}
}

// drain returns the events published so far.
func (f *fixture) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-f.sub:
			out = append(out, ev.(events.Event))
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

func (f *fixture) native(a common.Address) uint64 { return f.l.NativeBalance(a).Uint64() }

func nativeReq(revert bool, attached uint64, recipients []common.Address, vs ...uint64) model.BatchRequest {
	return model.BatchRequest{
		Kind:          model.KindNative,
		Recipients:    recipients,
		AmountsOrIDs:  amounts(vs...),
		RevertOnFail:  revert,
		AttachedValue: u(attached),
	}
}

func topics(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Topic()
	}
	return out
}
