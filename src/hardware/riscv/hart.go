// Package riscv holds the machine-level definitions of the harness cores and
// the Hart interface through which the runtime reaches the core it is
// running on.
package riscv

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// TrapFrame is what the low level trap entry saves before calling into Go.
type TrapFrame struct {
	GPR    [30]uintptr
	Cause  uintptr
	Status uintptr
	EPC    uintptr
	TVal   uintptr
}

// IsInterrupt is true when the frame was produced by an asynchronous interrupt.
func (f *TrapFrame) IsInterrupt() bool {
	return f.Cause&MCauseInterrupt != 0
}

// TrapVector is called by the trap entry of a hart, with the hart itself.
type TrapVector func(h Hart, f *TrapFrame)

// Hart is one physical core, as seen from code running on it.  None of
// these methods may be called from another core.
type Hart interface {
	// HartID is the raw hardware id (mhartid).
	HartID() uint16

	// Fence is "fence rw,rw": all earlier loads and stores are globally
	// visible before any later one.
	Fence()

	// InvalidateDCache drops every line of this core's data cache.
	InvalidateDCache()
	// InvalidateDCacheRange drops the lines covering [addr, addr+size).
	// It is a no-op when the caches are coherent or absent.
	InvalidateDCacheRange(addr uintptr, size uintptr)

	// WaitForInterrupt is wfi.  It may return without any interrupt
	// pending, so callers re-check MIP.
	WaitForInterrupt()
	// Delay burns roughly the given number of cycles.
	Delay(cycles int)
	// Park stops the core for good.  It does not return.
	Park()

	// The thread pointer register (tp).
	SetThreadPointer(p unsafe.Pointer)
	ThreadPointer() unsafe.Pointer

	ReadCSR(csr CSR) uint64
	WriteCSR(csr CSR, value uint64)

	// SetTrapVector installs the trap entry (mtvec).
	SetTrapVector(v TrapVector)
}

// SoftwareInterruptPending reads MIP.MSIP of the calling core.
func SoftwareInterruptPending(h Hart) bool {
	return h.ReadCSR(MIP)&MIP_MSIP != 0
}

// EnableInterrupts sets the given MIE bits and the global MSTATUS.MIE.
func EnableInterrupts(h Hart, mask uint64) {
	h.WriteCSR(MIE, h.ReadCSR(MIE)|mask)
	h.WriteCSR(MStatus, h.ReadCSR(MStatus)|MStatusMIE)
}

// DisableInterrupts clears the given MIE bits.  The global enable is left
// alone.
func DisableInterrupts(h Hart, mask uint64) {
	h.WriteCSR(MIE, h.ReadCSR(MIE)&^mask)
}

var fenceWord uint32

// Fence is a full barrier usable without a Hart (e.g. by the lock package).
// Go's atomic read-modify-write operations are sequentially consistent, so
// this orders every earlier access before every later one.
func Fence() {
	atomic.AddUint32(&fenceWord, 1)
}

// Fences is the number of Fence calls so far.
func Fences() uint32 {
	return atomic.LoadUint32(&fenceWord)
}

var delayCheck atomic.Pointer[func()]

// SetDelayCheck installs fn to be run at the start of every Delay, which
// lets a platform stop a core that is spinning on a lock.  Nil removes it.
// There is one check per process.
func SetDelayCheck(fn func()) {
	if fn == nil {
		delayCheck.Store(nil)
		return
	}
	delayCheck.Store(&fn)
}

// Delay is the cycle-count busy wait used where no Hart is at hand.  Each
// iteration stands for roughly three cycles (branch, add, jump).
func Delay(cycles int) {
	if fn := delayCheck.Load(); fn != nil {
		(*fn)()
	}
	for n := cycles / 3; n > 0; n-- {
		if n&0x3f == 0 {
			runtime.Gosched()
		}
	}
	runtime.Gosched()
}
