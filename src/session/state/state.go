package state

import (
	"sync"
	"sync/atomic"
)

// State captures the state of an exploration session: Loading, Following,
// Browsing, or Shutdown
type State uint32

const (
	// Loading is the state in which a session waits for the window of a
	// navigation.
	Loading State = iota

	// Following is the state in which the window is at the live edge of the
	// ledger and new units are merged as they are announced.
	Following

	// Browsing is the state in which the window shows older history and tip
	// notices are ignored.
	Browsing

	// Shutdown is the state in which a session stops processing commands and
	// waits for its fetches to return.
	Shutdown
)

// RoutineLimit is the maximum number of goroutines that can be launched
// through Manager.GoFunc
const RoutineLimit = 20

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Following:
		return "Following"
	case Browsing:
		return "Browsing"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with get and set methods. It is also used to limit the
// number of goroutines launched by the session, and to wait for all of them to
// complete.
type Manager struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// GoFunc launches a goroutine for a given function, if there are currently
// less than RoutineLimit running. It returns false when the function was not
// launched.
func (b *Manager) GoFunc(f func()) bool {
	if atomic.AddInt32(&b.wgCount, 1) > RoutineLimit {
		atomic.AddInt32(&b.wgCount, -1)
		return false
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
	return true
}

// Running returns the number of goroutines launched through GoFunc which have
// not returned yet.
func (b *Manager) Running() int {
	return int(atomic.LoadInt32(&b.wgCount))
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (b *Manager) WaitRoutines() {
	b.wg.Wait()
}
