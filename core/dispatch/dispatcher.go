package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/atomic"

	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/logger"
	"github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/internal/eventbus"
)

// Dispatcher moves value from one caller to many recipients per call. Calls
// are non-reentrant: a call made while another is in progress fails with
// ErrReentrantCall instead of waiting.
type Dispatcher struct {
	ledger ledger.Ledger
	state  *State
	guard  guard
	phase  atomic.Int32
	logger logger.Logger

	mu      sync.RWMutex
	metrics metrics.MetricsSink
	bus     eventbus.EventBus
	store   logging.LogStore
	breaker CircuitBreaker
	access  AccessControl

	now   func() time.Time
	newID func() string
}

// NewDispatcher validates cfg and returns a dispatcher operating on l.
func NewDispatcher(cfg Config, l ledger.Ledger, log logger.Logger) (*Dispatcher, error) {
	if l == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewDispatcher")
	}
	cfg.SetDefaults()
	snap, err := cfg.settings()
	if err != nil {
		return nil, err
	}
	st := newState(snap)
	return &Dispatcher{
		ledger:  l,
		state:   st,
		logger:  log,
		metrics: metrics.NopSink{},
		breaker: st,
		access:  st,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// SetMetrics configures the sink batch results are recorded to.
func (d *Dispatcher) SetMetrics(sink metrics.MetricsSink) {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	d.mu.Lock()
	d.metrics = sink
	d.mu.Unlock()
}

// SetEventBus configures the bus notifications are published on.
func (d *Dispatcher) SetEventBus(bus eventbus.EventBus) {
	d.mu.Lock()
	d.bus = bus
	d.mu.Unlock()
}

// SetLogStore configures the store used to persist batch logs.
func (d *Dispatcher) SetLogStore(store logging.LogStore) {
	d.mu.Lock()
	d.store = store
	d.mu.Unlock()
}

// SetBreaker replaces the pause flag of the dispatcher state with an
// external circuit breaker. Nil restores the built-in flag.
func (d *Dispatcher) SetBreaker(b CircuitBreaker) {
	if b == nil {
		b = d.state
	}
	d.mu.Lock()
	d.breaker = b
	d.mu.Unlock()
}

// SetAccessControl replaces the owner check. Nil restores the built-in one.
func (d *Dispatcher) SetAccessControl(a AccessControl) {
	if a == nil {
		a = d.state
	}
	d.mu.Lock()
	d.access = a
	d.mu.Unlock()
}

type collaborators struct {
	metrics metrics.MetricsSink
	bus     eventbus.EventBus
	store   logging.LogStore
	breaker CircuitBreaker
	access  AccessControl
}

func (d *Dispatcher) collaborators() collaborators {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return collaborators{metrics: d.metrics, bus: d.bus, store: d.store, breaker: d.breaker, access: d.access}
}

// Snapshot returns the current configuration.
func (d *Dispatcher) Snapshot() Snapshot { return d.state.Snapshot() }

// Phase returns the lifecycle position of the call in progress.
func (d *Dispatcher) Phase() Phase { return Phase(d.phase.Load()) }

func (d *Dispatcher) setPhase(p Phase) { d.phase.Store(int32(p)) }

// Quote returns the fee a batch of n recipients must attach.
func (d *Dispatcher) Quote(n int) (*uint256.Int, error) {
	return d.state.Snapshot().Schedule.RequiredFee(n)
}

// batchRun carries the per-call context through the phases.
type batchRun struct {
	id     string
	caller common.Address
	req    model.BatchRequest
	snap   Snapshot
	start  time.Time
	events []events.Event
}

// Dispatch moves value from caller to every recipient of req inside one
// ledger transaction. On error nothing is committed and the error wraps
// one of the package's kinds.
func (d *Dispatcher) Dispatch(ctx context.Context, caller common.Address, req model.BatchRequest) (*model.BatchResult, error) {
	run := &batchRun{id: d.newID(), caller: caller, req: req, start: d.now()}
	if !d.guard.acquire() {
		guardRejections.Inc()
		err := fmt.Errorf("%w: batch %s", ErrReentrantCall, run.id)
		d.finish(ctx, run, nil, err)
		return nil, err
	}
	defer func() {
		d.setPhase(PhaseIdle)
		d.guard.release()
	}()
	d.setPhase(PhaseAdmitting)
	// a started batch always runs to completion
	ctx = context.WithoutCancel(ctx)
	res, err := d.dispatch(ctx, run)
	d.setPhase(terminalPhase(err))
	d.finish(ctx, run, res, err)
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, run *batchRun) (*model.BatchResult, error) {
	c := d.collaborators()
	if c.breaker.IsPaused() {
		return nil, ErrContractPaused
	}
	run.snap = d.state.Snapshot()
	if err := admit(run.req, run.snap); err != nil {
		return nil, err
	}
	exec, err := newExecutor(run.req.Kind, run.req.Token, run.snap.NativeGasStipend)
	if err != nil {
		return nil, err
	}
	tx, err := d.ledger.Begin(ctx, ledger.Call{From: run.caller, To: run.snap.Address, Value: run.req.Attached()})
	if err != nil {
		return nil, ledgerFailure("begin", err)
	}
	d.setPhase(PhaseExecuting)
	res, pending, err := d.execute(ctx, tx, run, exec)
	if err == nil {
		d.setPhase(PhaseSettling)
		err = d.settle(ctx, tx, run, res)
	}
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			d.logger.Errorf("rollback batch %s: %v", run.id, rerr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, ledgerFailure("commit", err)
	}
	run.events = append(pending, events.TransferMultiSent{
		BatchID:   run.id,
		Caller:    run.caller,
		Token:     res.Token,
		Kind:      run.req.Kind,
		Total:     res.TotalValueMoved.Clone(),
		Successes: res.TotalSuccesses,
		Time:      d.now(),
	})
	return res, nil
}

// execute attempts every transfer in request order.
func (d *Dispatcher) execute(ctx context.Context, tx ledger.Tx, run *batchRun, exec executor) (*model.BatchResult, []events.Event, error) {
	req := run.req
	res := &model.BatchResult{
		ID:              run.id,
		Caller:          run.caller,
		Kind:            req.Kind,
		Token:           req.TokenOrMarker(),
		TotalValueMoved: new(uint256.Int),
		Outcomes:        make([]model.TransferOutcome, len(req.Recipients)),
	}
	var pending []events.Event
	one := uint256.NewInt(1)
	for i, r := range req.Recipients {
		amt := req.AmountAt(i)
		ok, reason, err := exec.transfer(ctx, tx, run.caller, r, amt)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			if req.RevertOnFail {
				return nil, nil, &RevertedError{Recipient: r, AmountOrID: amt.Clone(), Reason: reason}
			}
			res.Outcomes[i] = model.Failed(r, amt, reason)
			pending = append(pending, events.TransferFailed{
				BatchID:    run.id,
				Caller:     run.caller,
				Token:      res.Token,
				Kind:       req.Kind,
				Recipient:  r,
				AmountOrID: amt.Clone(),
				Reason:     reason,
				Time:       d.now(),
			})
			d.logger.Debugw("transfer failed", map[string]any{"batch_id": run.id, "recipient": r.Hex(), "reason": reason})
			continue
		}
		res.Outcomes[i] = model.Succeeded(r, amt)
		res.TotalSuccesses++
		moved := amt
		if req.Kind == model.KindNonFungible {
			moved = one
		}
		if _, overflow := res.TotalValueMoved.AddOverflow(res.TotalValueMoved, moved); overflow {
			return nil, nil, fmt.Errorf("%w: total value moved overflows", ErrArithmetic)
		}
	}
	if res.TotalSuccesses == 0 {
		return nil, nil, fmt.Errorf("%w: %d recipients", ErrAllTransfersFailed, len(req.Recipients))
	}
	return res, pending, nil
}

// settle collects the fee and returns change to the caller.
func (d *Dispatcher) settle(ctx context.Context, tx ledger.Tx, run *batchRun, res *model.BatchResult) error {
	distributed := new(uint256.Int)
	if run.req.Kind == model.KindNative {
		distributed = res.TotalValueMoved
	}
	feeAmt, change, err := run.snap.Schedule.Settle(res.TotalSuccesses, run.req.Attached(), distributed)
	if err != nil {
		return err
	}
	native := tx.Native()
	if err := d.pay(ctx, native, run.snap.FeeAddress, feeAmt, run.snap.NativeGasStipend, "fee collector"); err != nil {
		return err
	}
	if err := d.pay(ctx, native, run.caller, change, run.snap.NativeGasStipend, "change to caller"); err != nil {
		return err
	}
	res.Fee, res.Change = feeAmt, change
	return nil
}

func (d *Dispatcher) pay(ctx context.Context, native ledger.NativeTransfer, to common.Address, amount *uint256.Int, budget uint64, what string) error {
	if amount.IsZero() {
		return nil
	}
	ok, err := native.Send(ctx, to, amount, budget)
	if err != nil && !ledger.IsReverted(err) {
		return ledgerFailure("send "+what, err)
	}
	if err != nil || !ok {
		return fmt.Errorf("%w: %s %s rejected %s", ErrSettlementFailed, what, to.Hex(), model.FormatAmount(amount))
	}
	return nil
}

func terminalPhase(err error) Phase {
	switch {
	case err == nil:
		return PhaseDone
	case errors.Is(err, ErrTransfersReverted):
		return PhaseReverted
	case errors.Is(err, ErrAllTransfersFailed):
		return PhaseAllFailed
	default:
		return PhaseIdle
	}
}

// statusOf maps a call's error to the status recorded in metrics and logs.
func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusCommitted
	case errors.Is(err, ErrTransfersReverted):
		return metrics.StatusReverted
	case errors.Is(err, ErrAllTransfersFailed):
		return metrics.StatusAllFailed
	default:
		return metrics.StatusRejected
	}
}
