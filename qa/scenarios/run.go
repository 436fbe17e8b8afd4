package scenarios

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/multisend/core/dispatch"
	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/infra/ledger/memory"
	"github.com/kilianp07/multisend/infra/logger"
	"github.com/kilianp07/multisend/infra/metrics"
	"github.com/kilianp07/multisend/infra/mqtt"
	"github.com/kilianp07/multisend/internal/eventbus"
)

// forwardingBus hands every event to the forwarder synchronously so that
// publish counts are deterministic.
type forwardingBus struct {
	t   testing.TB
	fwd *mqtt.Forwarder
}

func (b forwardingBus) Publish(e eventbus.Event) {
	if ev, ok := e.(events.Event); ok {
		if err := b.fwd.Forward(ev); err != nil {
			b.t.Errorf("forward %s: %v", ev.Topic(), err)
		}
	}
}

func (forwardingBus) Subscribe() <-chan eventbus.Event {
	ch := make(chan eventbus.Event)
	close(ch)
	return ch
}
func (forwardingBus) Unsubscribe(<-chan eventbus.Event) {}
func (forwardingBus) Close()                            {}

func RunScenario(t *testing.T, sc *Scenario) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	pub := mqtt.NewMockPublisher()

	led := seed(t, sc)
	d, err := dispatch.NewDispatcher(sc.Dispatcher.Config(), led, logger.NopLogger{})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	d.SetMetrics(sink)
	d.SetEventBus(forwardingBus{t: t, fwd: mqtt.NewForwarder(pub, "multisend")})

	for i, step := range sc.Steps {
		name := step.Name
		if name == "" {
			name = sc.Name
		}
		caller, req, err := step.Batch.Request()
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, name, err)
		}
		res, err := d.Dispatch(ctx, caller, req)
		checkStep(t, i, name, step.Expect, res, err)
	}

	for _, b := range sc.Expected.Balances {
		got := balance(t, led, b)
		if got != b.Amount {
			t.Errorf("scenario %s: balance of %s in %q = %s, want %s", sc.Name, b.Account, b.Token, got, b.Amount)
		}
	}
	for _, o := range sc.Expected.Owners {
		token, id := mustAddress(t, o.Token), mustAmount(t, o.ID)
		got, ok := led.Owner(token, id)
		if !ok || got != mustAddress(t, o.Owner) {
			t.Errorf("scenario %s: owner of %s #%s = %s, want %s", sc.Name, o.Token, o.ID, got.Hex(), o.Owner)
		}
	}
	for status, want := range sc.Expected.Batches {
		if got := batchCount(t, reg, status); got != want {
			t.Errorf("scenario %s: %d %s batches recorded, want %d", sc.Name, got, status, want)
		}
	}
	if got := len(pub.Published()); got != sc.Expected.Published {
		t.Errorf("scenario %s: %d notifications published, want %d", sc.Name, got, sc.Expected.Published)
	}
}

func seed(t *testing.T, sc *Scenario) *memory.Ledger {
	t.Helper()
	lc := sc.Ledger.Config()
	accounts, err := lc.Accounts()
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	policies, err := lc.Policies()
	if err != nil {
		t.Fatalf("receivers: %v", err)
	}
	led := memory.New()
	ctx := context.Background()
	if err := led.Seed(ctx, mustAddress(t, sc.Dispatcher.Address), accounts); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for addr, p := range policies {
		if err := led.SetReceiver(ctx, addr, p); err != nil {
			t.Fatalf("receiver: %v", err)
		}
	}
	for token, recipients := range sc.Ledger.Blocked {
		for _, r := range recipients {
			led.Block(mustAddress(t, token), mustAddress(t, r))
		}
	}
	for _, token := range sc.Ledger.ReturnFalse {
		led.SetFailureStyle(mustAddress(t, token), memory.StyleReturnFalse)
	}
	return led
}

func checkStep(t *testing.T, i int, name string, want StepExpect, res *model.BatchResult, err error) {
	t.Helper()
	if want.Error != "" {
		if got := dispatch.KindName(err); got != want.Error {
			t.Errorf("step %d (%s): error kind %q (%v), want %s", i, name, got, err, want.Error)
		}
		return
	}
	if err != nil {
		t.Errorf("step %d (%s): unexpected error %v", i, name, err)
		return
	}
	if res.TotalSuccesses != want.Successes {
		t.Errorf("step %d (%s): %d successes, want %d", i, name, res.TotalSuccesses, want.Successes)
	}
	if want.Fee != "" && model.FormatAmount(res.Fee) != want.Fee {
		t.Errorf("step %d (%s): fee %s, want %s", i, name, model.FormatAmount(res.Fee), want.Fee)
	}
	if want.Change != "" && model.FormatAmount(res.Change) != want.Change {
		t.Errorf("step %d (%s): change %s, want %s", i, name, model.FormatAmount(res.Change), want.Change)
	}
	failed := map[int]bool{}
	for _, idx := range want.Failed {
		failed[idx] = true
	}
	for idx, o := range res.Outcomes {
		if o.OK() == failed[idx] {
			t.Errorf("step %d (%s): recipient %d status %s", i, name, idx, o.Status)
		}
	}
}

func balance(t *testing.T, led *memory.Ledger, b Balance) string {
	t.Helper()
	account := mustAddress(t, b.Account)
	if b.Token == "" {
		return model.FormatAmount(led.NativeBalance(account))
	}
	return model.FormatAmount(led.TokenBalance(mustAddress(t, b.Token), account))
}

func batchCount(t *testing.T, g prometheus.Gatherer, status string) int {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0
	for _, mf := range families {
		if mf.GetName() != "multisend_batch_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					total += int(m.GetCounter().GetValue())
				}
			}
		}
	}
	return total
}

func mustAddress(t *testing.T, s string) common.Address {
	t.Helper()
	a, err := model.ParseAddress(s)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return a
}

func mustAmount(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := model.ParseAmount(s)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return v
}
