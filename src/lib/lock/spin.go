// Package lock has the two mutual exclusion primitives shared by all the
// harts: a test-and-set spin mutex and a FIFO ticket mutex.  Both are plain
// words in shared memory and neither allocates, so the zero value is an
// unlocked mutex.
package lock

import (
	"sync/atomic"

	"camaraderie/src/hardware/riscv"
)

// WaitDelay is the number of cycles a waiter backs off between attempts.
const WaitDelay = 500

// SpinMutex is a test-and-set lock.  It makes no fairness promise.
type SpinMutex struct {
	word uint32
}

func (m *SpinMutex) Init() {
	atomic.StoreUint32(&m.word, 0)
	riscv.Fence()
}

// TryLock makes one attempt at taking the lock and reports if it succeeded.
func (m *SpinMutex) TryLock() bool {
	riscv.Fence()
	if atomic.SwapUint32(&m.word, 1) != 0 {
		return false
	}
	riscv.Fence()
	return true
}

func (m *SpinMutex) Lock() {
	for !m.TryLock() {
		riscv.Delay(WaitDelay)
	}
}

func (m *SpinMutex) Unlock() {
	riscv.Fence()
	atomic.StoreUint32(&m.word, 0)
	riscv.Fence()
}

// Destroy returns the mutex to the unlocked state.  Destroying a lock that is
// held by somebody is the caller's bug.
func (m *SpinMutex) Destroy() {
	m.Init()
}

// Locked reports if somebody holds the lock right now.
func (m *SpinMutex) Locked() bool {
	return atomic.LoadUint32(&m.word) != 0
}
