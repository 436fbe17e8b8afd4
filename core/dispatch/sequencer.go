package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kilianp07/multisend/core/logger"
	"github.com/kilianp07/multisend/core/model"
	"github.com/kilianp07/multisend/core/monitoring"
)

// ErrSequencerStopped is returned by Do once Run has returned.
var ErrSequencerStopped = errors.New("sequencer stopped")

// Sequencer runs submitted jobs one at a time on a single worker goroutine,
// so that concurrent API callers reach the dispatcher in a total order
// instead of colliding on its execution guard.
type Sequencer struct {
	jobs    chan *job
	stopped chan struct{}
	once    sync.Once
	logger  logger.Logger
}

type job struct {
	ctx  context.Context
	fn   func(context.Context)
	done chan struct{}
	err  error
}

// NewSequencer creates a sequencer. Run must be started before Do is used.
func NewSequencer(log logger.Logger) *Sequencer {
	return &Sequencer{
		jobs:    make(chan *job),
		stopped: make(chan struct{}),
		logger:  log,
	}
}

// Run processes jobs until the context is canceled. A job that has been
// accepted always runs to completion.
func (s *Sequencer) Run(ctx context.Context) {
	defer s.once.Do(func() { close(s.stopped) })
	for {
		select {
		case j := <-s.jobs:
			s.run(j)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sequencer) run(j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("sequenced job panicked: %v", r)
			s.logger.Errorf("%v", j.err)
			monitoring.CaptureException(j.err, map[string]string{"module": "sequencer"})
		}
	}()
	j.fn(context.WithoutCancel(j.ctx))
}

// Do queues fn and waits for it to complete. It returns ctx.Err() if the
// context ends before the job is accepted, and an error if fn panics.
func (s *Sequencer) Do(ctx context.Context, fn func(context.Context)) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSequencerStopped
	}
	<-j.done
	return j.err
}

// Submit runs fn on the sequencer and returns its result.
func Submit[T any](ctx context.Context, s *Sequencer, fn func(context.Context) (T, error)) (T, error) {
	var (
		res T
		err error
	)
	if serr := s.Do(ctx, func(ctx context.Context) { res, err = fn(ctx) }); serr != nil {
		var zero T
		return zero, serr
	}
	return res, err
}

// Serialized routes batch submissions through a Sequencer so concurrent
// callers are handled one at a time instead of failing the reentrancy guard.
type Serialized struct {
	*Dispatcher
	Seq *Sequencer
}

// Dispatch queues the batch on the sequencer.
func (s Serialized) Dispatch(ctx context.Context, caller common.Address, req model.BatchRequest) (*model.BatchResult, error) {
	return Submit(ctx, s.Seq, func(ctx context.Context) (*model.BatchResult, error) {
		return s.Dispatcher.Dispatch(ctx, caller, req)
	})
}
