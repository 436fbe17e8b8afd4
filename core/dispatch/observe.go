package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/events"
	"github.com/kilianp07/multisend/core/ledger"
	"github.com/kilianp07/multisend/core/metrics"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/core/monitoring"
)

// finish publishes the buffered notifications of a call and records it to
// metrics, the batch log and monitoring.
func (d *Dispatcher) finish(ctx context.Context, run *batchRun, res *model.BatchResult, err error) {
	c := d.collaborators()
	status := statusOf(err)
	end := d.now()
	kind := run.req.Kind.String()

	var rev *RevertedError
	if errors.As(err, &rev) {
		run.events = []events.Event{events.TransfersReverted{
			BatchID:    run.id,
			Caller:     run.caller,
			Token:      run.req.TokenOrMarker(),
			Kind:       run.req.Kind,
			Recipient:  rev.Recipient,
			AmountOrID: rev.AmountOrID,
			Time:       end,
		}}
	}
	if c.bus != nil {
		for _, ev := range run.events {
			c.bus.Publish(ev)
		}
	}

	batchesTotal.WithLabelValues(kind, status).Inc()
	batchLatency.WithLabelValues(kind).Observe(end.Sub(run.start).Seconds())
	mres := metrics.BatchResult{
		BatchID:    run.id,
		Caller:     run.caller.Hex(),
		Kind:       kind,
		Token:      run.req.TokenOrMarker().Hex(),
		Status:     status,
		Recipients: len(run.req.Recipients),
		ErrorCode:  KindName(err),
		Duration:   end.Sub(run.start),
		Time:       end,
	}
	if res != nil {
		mres.Successes = res.TotalSuccesses
		mres.ValueMoved = model.AmountFloat(res.TotalValueMoved)
		mres.Fee = model.AmountFloat(res.Fee)
		mres.Change = model.AmountFloat(res.Change)
		transfersTotal.WithLabelValues(kind, model.OutcomeSucceeded.String()).Add(float64(res.TotalSuccesses))
		transfersTotal.WithLabelValues(kind, model.OutcomeFailed.String()).Add(float64(mres.Failures()))
	}
	if merr := c.metrics.RecordBatchResult(mres); merr != nil {
		d.logger.Errorf("metrics error: %v", merr)
	}
	if fr, ok := c.metrics.(metrics.TransferFailureRecorder); ok {
		for _, ev := range run.events {
			tf, ok := ev.(events.TransferFailed)
			if !ok {
				continue
			}
			if merr := fr.RecordTransferFailure(metrics.TransferFailureEvent{
				BatchID:    tf.BatchID,
				Kind:       kind,
				Token:      tf.Token.Hex(),
				Recipient:  tf.Recipient.Hex(),
				AmountOrID: model.FormatAmount(tf.AmountOrID),
				Reason:     tf.Reason,
				Time:       tf.Time,
			}); merr != nil {
				d.logger.Errorf("transfer failure metrics error: %v", merr)
			}
		}
	}

	if c.store != nil {
		if serr := c.store.Append(ctx, logRecord(run, res, err, status, end)); serr != nil {
			d.logger.Errorf("batch log error: %v", serr)
		}
	}

	switch {
	case err == nil:
		d.logger.Infof("batch %s committed: %d/%d transfers, fee %s, change %s",
			run.id, res.TotalSuccesses, len(run.req.Recipients), model.FormatAmount(res.Fee), model.FormatAmount(res.Change))
	case errors.Is(err, ErrLedgerFailure):
		d.logger.Errorf("batch %s: %v", run.id, err)
		if !errors.Is(err, ledger.ErrInsufficientFunds) && !errors.Is(err, ledger.ErrBusy) {
			monitoring.CaptureException(err, map[string]string{
				"module":   "dispatcher",
				"batch_id": run.id,
				"kind":     kind,
			})
		}
	default:
		d.logger.Warnf("batch %s %s: %v", run.id, status, err)
	}
}

func logRecord(run *batchRun, res *model.BatchResult, err error, status string, end time.Time) logging.LogRecord {
	rec := logging.LogRecord{
		BatchID:       run.id,
		Timestamp:     end,
		Caller:        run.caller.Hex(),
		Kind:          run.req.Kind.String(),
		Token:         run.req.TokenOrMarker().Hex(),
		Status:        status,
		RevertOnFail:  run.req.RevertOnFail,
		Recipients:    len(run.req.Recipients),
		AttachedValue: model.FormatAmount(run.req.Attached()),
		TotalValue:    "0",
		Fee:           "0",
		Change:        "0",
		DurationMS:    float64(end.Sub(run.start).Microseconds()) / 1000,
	}
	if err != nil {
		rec.ErrorCode = KindName(err)
		rec.Error = err.Error()
	}
	if res == nil {
		return rec
	}
	rec.Successes = res.TotalSuccesses
	rec.TotalValue = model.FormatAmount(res.TotalValueMoved)
	rec.Fee = model.FormatAmount(res.Fee)
	rec.Change = model.FormatAmount(res.Change)
	rec.Outcomes = make([]logging.OutcomeRecord, len(res.Outcomes))
	for i, o := range res.Outcomes {
		rec.Outcomes[i] = logging.OutcomeRecord{
			Recipient:  o.Recipient.Hex(),
			AmountOrID: model.FormatAmount(o.AmountOrID),
			Status:     o.Status.String(),
			Reason:     o.Reason,
		}
	}
	return rec
}
