package sim

import (
	"runtime"
	"time"
	"unsafe"

	"camaraderie/src/hardware/clint"
	"camaraderie/src/hardware/riscv"
)

// cacheLine is the line size used to count data cache invalidations.
const cacheLine = 64

// dcacheLines is how many lines a full invalidation drops.
const dcacheLines = 512

// Hart is one simulated core.  Only the goroutine running it may call its
// methods.
type Hart struct {
	m  *Machine
	id uint16
	tp unsafe.Pointer

	vector riscv.TrapVector
	inTrap bool
	pc     uintptr

	mstatus uint64
	mie     uint64
	mepc    uint64
	mcause  uint64
	mtval   uint64
	mtvec   uint64
	event3  uint64
	event4  uint64

	cycleBase   time.Time
	cycleOffset uint64
	instBase    uint64
	instOffset  uint64
	hpm3        uint64
	hpm4        uint64

	wfi *time.Timer
}

func newHart(m *Machine, id uint16) *Hart {
	return &Hart{m: m, id: id}
}

func (h *Hart) reset() {
	h.cycleBase = time.Now()
	h.pc = 0x8000_0000
}

// Machine is the SoC the core belongs to.
func (h *Hart) Machine() *Machine {
	return h.m
}

func (h *Hart) HartID() uint16 {
	return h.id
}

func (h *Hart) Fence() {
	riscv.Fence()
}

func (h *Hart) InvalidateDCache() {
	riscv.Fence()
	if h.event4 == riscv.EventDCacheMiss {
		h.hpm4 += dcacheLines
	}
}

func (h *Hart) InvalidateDCacheRange(addr uintptr, size uintptr) {
	riscv.Fence()
	if h.event4 == riscv.EventDCacheMiss && size > 0 {
		first := addr / cacheLine
		last := (addr + size - 1) / cacheLine
		h.hpm4 += uint64(last - first + 1)
	}
}

// checkHalt ends the goroutine of a core once the machine has halted.
func (h *Hart) checkHalt() {
	if h.m.Halted() {
		runtime.Goexit()
	}
}

func (h *Hart) WaitForInterrupt() {
	h.checkHalt()
	h.takeInterrupts()
	if h.mip()&h.mie != 0 {
		return
	}
	if h.wfi == nil {
		h.wfi = time.NewTimer(h.m.config.WFIPoll)
	} else {
		h.wfi.Reset(h.m.config.WFIPoll)
	}
	select {
	case <-h.m.done:
		h.wfi.Stop()
		runtime.Goexit()
	case <-h.wfi.C:
	}
	h.takeInterrupts()
}

// Delay busy waits for the time the cycles would take.  Short waits yield
// the processor, long ones sleep.
func (h *Hart) Delay(cycles int) {
	h.checkHalt()
	h.takeInterrupts()
	if h.event3 == riscv.EventICacheMiss {
		h.hpm3++
	}
	d := time.Duration(cycles) * h.m.config.CycleTime
	if d >= 100*time.Microsecond {
		time.Sleep(d)
	} else {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
			runtime.Gosched()
		}
		runtime.Gosched()
	}
	h.checkHalt()
}

// Park stops the core until the machine halts.
func (h *Hart) Park() {
	<-h.m.done
	runtime.Goexit()
}

func (h *Hart) SetThreadPointer(p unsafe.Pointer) {
	h.tp = p
}

func (h *Hart) ThreadPointer() unsafe.Pointer {
	return h.tp
}

func (h *Hart) SetTrapVector(v riscv.TrapVector) {
	h.vector = v
}

func (h *Hart) cycles() uint64 {
	return uint64(time.Since(h.cycleBase)/h.m.config.CycleTime) + h.cycleOffset
}

// mip is computed from the devices: MSIP from the CLINT word, MTIP from
// the timer comparison and MEIP from the external line.
func (h *Hart) mip() uint64 {
	var pending uint64
	regs := &h.m.clint
	if int(h.id) < clintTargets && regs.MSIP[h.id].Get() != 0 {
		pending |= riscv.MIP_MSIP
	}
	if int(h.id) < clintTargets && regs.MTime.Get() >= regs.MTimeCmp[h.id].Get() {
		pending |= riscv.MIP_MTIP
	}
	if h.m.externalPending(h.id) {
		pending |= riscv.MIP_MEIP
	}
	return pending
}

func (h *Hart) ReadCSR(csr riscv.CSR) uint64 {
	switch csr {
	case riscv.MStatus:
		return h.mstatus
	case riscv.MIE:
		return h.mie
	case riscv.MIP:
		return h.mip()
	case riscv.MTVec:
		return h.mtvec
	case riscv.MEPC:
		return h.mepc
	case riscv.MCause:
		return h.mcause
	case riscv.MTVal:
		return h.mtval
	case riscv.MHPMEvent3:
		return h.event3
	case riscv.MHPMEvent4:
		return h.event4
	case riscv.MCycle:
		return h.cycles()
	case riscv.MInstret:
		// roughly one instruction every other cycle
		return (h.cycles()-h.instBase)/2 + h.instOffset
	case riscv.MHPMCounter3:
		return h.hpm3
	case riscv.MHPMCounter4:
		return h.hpm4
	case riscv.MHartID:
		return uint64(h.id)
	}
	return 0
}

func (h *Hart) WriteCSR(csr riscv.CSR, value uint64) {
	switch csr {
	case riscv.MStatus:
		h.mstatus = value
	case riscv.MIE:
		h.mie = value
	case riscv.MTVec:
		h.mtvec = value
	case riscv.MEPC:
		h.mepc = value
	case riscv.MCause:
		h.mcause = value
	case riscv.MTVal:
		h.mtval = value
	case riscv.MHPMEvent3:
		h.event3 = value
	case riscv.MHPMEvent4:
		h.event4 = value
	case riscv.MCycle:
		h.cycleBase = time.Now()
		h.cycleOffset = value
	case riscv.MInstret:
		h.instBase = h.cycles()
		h.instOffset = value
	case riscv.MHPMCounter3:
		h.hpm3 = value
	case riscv.MHPMCounter4:
		h.hpm4 = value
	}
}

// PC is the simulated program counter; it only moves when a fault is
// resumed past.
func (h *Hart) PC() uintptr {
	return h.pc
}

// Fault raises a synchronous exception on the core as if the instruction at
// PC had caused it, with tval as the trap value.  It returns once the trap
// vector has resumed, with PC at the resume address.
func (h *Hart) Fault(cause uintptr, tval uintptr) {
	f := &riscv.TrapFrame{Cause: cause, EPC: h.pc, TVal: tval}
	h.trap(f)
}

// takeInterrupts enters the trap vector for the highest priority pending
// interrupt when interrupts are enabled.  Priority is external, software,
// timer.
func (h *Hart) takeInterrupts() {
	if h.inTrap || h.vector == nil || h.mstatus&riscv.MStatusMIE == 0 {
		return
	}
	pending := h.mip() & h.mie
	var cause uintptr
	switch {
	case pending&riscv.MIP_MEIP != 0:
		cause = riscv.MCauseMExternalInterrupt
	case pending&riscv.MIP_MSIP != 0:
		cause = riscv.MCauseMSoftwareInterrupt
	case pending&riscv.MIP_MTIP != 0:
		cause = riscv.MCauseMTimerInterrupt
	default:
		return
	}
	h.trap(&riscv.TrapFrame{Cause: cause, EPC: h.pc})
}

// trap is the hardware side of trap entry and mret.
func (h *Hart) trap(f *riscv.TrapFrame) {
	if h.vector == nil {
		h.m.Exit(1)
	}
	saved := h.mstatus
	f.Status = uintptr(saved)
	h.mcause = uint64(f.Cause)
	h.mepc = uint64(f.EPC)
	h.mtval = uint64(f.TVal)
	h.mstatus &^= riscv.MStatusMIE
	if saved&riscv.MStatusMIE != 0 {
		h.mstatus |= riscv.MStatusMPIE
	}
	h.inTrap = true
	h.vector(h, f)
	h.inTrap = false
	h.mstatus = saved
	h.pc = f.EPC
}

const clintTargets = clint.MaxTargets
