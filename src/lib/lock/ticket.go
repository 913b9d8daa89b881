package lock

import (
	"sync/atomic"

	"camaraderie/src/hardware/riscv"
)

// TicketMutex hands the lock out in the order that Lock was called.
type TicketMutex struct {
	serving uint32
	next    uint32
}

func (m *TicketMutex) Init() {
	atomic.StoreUint32(&m.serving, 0)
	atomic.StoreUint32(&m.next, 0)
	riscv.Fence()
}

func (m *TicketMutex) Lock() {
	riscv.Fence()
	ticket := atomic.AddUint32(&m.next, 1) - 1
	for atomic.LoadUint32(&m.serving) != ticket {
		riscv.Delay(WaitDelay)
	}
	riscv.Fence()
}

// TryLock only takes a ticket when nobody is holding or waiting, so it
// never blocks.
func (m *TicketMutex) TryLock() bool {
	serving := atomic.LoadUint32(&m.serving)
	if !atomic.CompareAndSwapUint32(&m.next, serving, serving+1) {
		return false
	}
	riscv.Fence()
	return true
}

func (m *TicketMutex) Unlock() {
	riscv.Fence()
	atomic.AddUint32(&m.serving, 1)
	riscv.Fence()
}

func (m *TicketMutex) Destroy() {
	m.Init()
}

// Waiting is the number of tickets issued but not yet released, including
// the holder.
func (m *TicketMutex) Waiting() uint32 {
	return atomic.LoadUint32(&m.next) - atomic.LoadUint32(&m.serving)
}
