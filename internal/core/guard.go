package core

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded entry point is invoked
// while an outbound value transfer is in flight.
var ErrReentrantCall = errors.New("reentrant call rejected")

// Guard is the mutual-exclusion flag protecting the transfer window.
// Within an operation the only point where control can pass to foreign
// code is the outbound transfer; the engine arms the guard for exactly
// that window, and every mutating entry point checks it before queuing
// on the engine mutex. A transfer callee that calls back into the
// ledger is rejected instead of observing intermediate pool state.
type Guard struct {
	armed atomic.Bool
}

// Check rejects the call if a transfer window is open.
func (g *Guard) Check() error {
	if g.armed.Load() {
		return ErrReentrantCall
	}
	return nil
}

func (g *Guard) arm() {
	g.armed.Store(true)
}

// disarm clears the flag. Deferred on every transfer, so the guard is
// released on all exit paths including failures.
func (g *Guard) disarm() {
	g.armed.Store(false)
}
