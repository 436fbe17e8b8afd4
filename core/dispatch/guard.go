package dispatch

import "go.uber.org/atomic"

// guard is a non-queuing execution token. acquire fails immediately when
// the token is held.
type guard struct {
	held atomic.Bool
}

func (g *guard) acquire() bool { return g.held.CompareAndSwap(false, true) }

func (g *guard) release() { g.held.Store(false) }

// Phase is the lifecycle position of the current dispatcher call.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAdmitting
	PhaseExecuting
	PhaseSettling
	PhaseDone
	PhaseReverted
	PhaseAllFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAdmitting:
		return "admitting"
	case PhaseExecuting:
		return "executing"
	case PhaseSettling:
		return "settling"
	case PhaseDone:
		return "done"
	case PhaseReverted:
		return "reverted"
	case PhaseAllFailed:
		return "all_failed"
	default:
		return "unknown"
	}
}
