package node

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a node: Idle, Running, Suspended, or
// Shutdown.
type State uint32

const (
	// Idle is the initial state: the node accepts submissions and manual
	// mining but runs no background loop.
	Idle State = iota

	// Running is the state in which the background mining loop is active.
	Running

	// Suspended is initialised, but not mining.
	Suspended

	// Shutdown is the terminal state.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Suspended:
		return "Suspended"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to the waitgroup.
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
