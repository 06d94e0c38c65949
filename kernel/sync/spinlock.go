// Package sync provides the locking primitives used by the kernel: a
// spinlock and an exclusive cell that guards kernel state shared between the
// scheduler and the trap handlers.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is invoked between failed acquisition attempts.
	yieldFn = runtime.Gosched
)

// attemptsBeforeYielding is the number of busy-wait rounds before Acquire
// gives up the host thread.
const attemptsBeforeYielding = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(1); !l.TryToAcquire(); attempt++ {
		if attempt%attemptsBeforeYielding == 0 {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
