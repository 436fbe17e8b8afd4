package dispatch

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kilianp07/multisend/core/fee"
)

// CircuitBreaker reports whether dispatching is suspended.
type CircuitBreaker interface {
	IsPaused() bool
}

// AccessControl decides who may administer the dispatcher.
type AccessControl interface {
	IsOwner(caller common.Address) bool
}

// Snapshot is an immutable copy of the dispatcher configuration.
type Snapshot struct {
	Address           common.Address
	Owner             common.Address
	FeeAddress        common.Address
	Schedule          fee.Schedule
	MaxTransfersPerTx int
	NativeGasStipend  uint64
	Paused            bool
}

func (s Snapshot) validate() error {
	switch {
	case s.Address == (common.Address{}):
		return fmt.Errorf("%w: zero dispatcher address", ErrInvalidConfig)
	case s.Owner == (common.Address{}):
		return fmt.Errorf("%w: zero owner", ErrInvalidConfig)
	case s.FeeAddress == (common.Address{}):
		return fmt.Errorf("%w: zero fee address", ErrInvalidConfig)
	case s.MaxTransfersPerTx < 1:
		return fmt.Errorf("%w: max transfers per tx must be positive", ErrInvalidConfig)
	}
	return nil
}

// State holds the mutable dispatcher configuration. It implements
// CircuitBreaker and AccessControl from its own fields.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

func newState(s Snapshot) *State {
	s.Schedule = s.Schedule.Clone()
	return &State{snap: s}
}

// Snapshot returns a copy of the current configuration.
func (st *State) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := st.snap
	s.Schedule = s.Schedule.Clone()
	return s
}

func (st *State) IsPaused() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snap.Paused
}

func (st *State) IsOwner(caller common.Address) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return caller == st.snap.Owner
}

// update applies fn to a copy of the state and keeps it only when the
// result is valid.
func (st *State) update(fn func(*Snapshot) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.snap
	next.Schedule = next.Schedule.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.validate(); err != nil {
		return err
	}
	st.snap = next
	return nil
}
