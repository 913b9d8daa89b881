package joy

import (
	"sync/atomic"

	"camaraderie/src/hardware/riscv"
	"camaraderie/src/lib/trust"
)

// TrapHandler services one interrupt or exception on the hart it was
// registered for.
type TrapHandler func(h riscv.Hart, f *riscv.TrapFrame)

type trapSlot int

const (
	slotIPI trapSlot = iota
	slotTimer
	slotExternal
	slotLoadFault
	slotStoreFault
	slotFault
	numTrapSlots
)

var slotNames = [numTrapSlots]string{"IPI", "TIMER", "EXTERNAL", "LOAD FAULT", "STORE FAULT", "FAULT"}

type trapTable struct {
	slots [MaxHartID][numTrapSlots]atomic.Pointer[TrapHandler]
	fatal [numTrapSlots]*TrapHandler
}

func newTrapTable(rt *Runtime) *trapTable {
	t := &trapTable{}
	for s := slotIPI; s < numTrapSlots; s++ {
		var fn TrapHandler
		if s <= slotExternal {
			fn = rt.spurious
		} else {
			fn = rt.unhandled
		}
		t.fatal[s] = &fn
		for hid := range t.slots {
			t.slots[hid][s].Store(t.fatal[s])
		}
	}
	return t
}

func (t *trapTable) set(hid uint16, s trapSlot, fn TrapHandler) {
	if int(hid) >= MaxHartID {
		trust.Warnf("ignoring %s handler for hart %d", slotNames[s], hid)
		return
	}
	p := t.fatal[s]
	if fn != nil {
		p = &fn
	}
	t.slots[hid][s].Store(p)
	riscv.Fence()
}

// get returns the handler in a slot and whether somebody registered it.
func (t *trapTable) get(hid uint16, s trapSlot) (TrapHandler, bool) {
	if int(hid) >= MaxHartID {
		return *t.fatal[s], false
	}
	p := t.slots[hid][s].Load()
	return *p, p != t.fatal[s]
}

// RegisterIPIHandler sets the software interrupt handler of hart hid.  As
// with the other Register functions, a nil fn puts back the fatal default.
func (rt *Runtime) RegisterIPIHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotIPI, fn)
}

func (rt *Runtime) RegisterTimerHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotTimer, fn)
}

func (rt *Runtime) RegisterExternalHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotExternal, fn)
}

func (rt *Runtime) RegisterLoadFaultHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotLoadFault, fn)
}

func (rt *Runtime) RegisterStoreFaultHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotStoreFault, fn)
}

// RegisterFaultHandler covers the instruction faults: misaligned, access
// fault and illegal instruction.
func (rt *Runtime) RegisterFaultHandler(hid uint16, fn TrapHandler) {
	rt.traps.set(hid, slotFault, fn)
}

// Dispatch is the trap vector of every hart.  Interrupts go to their
// handler and resume where they were; exceptions resume after the faulting
// instruction.  Anything without a handler stops the machine.
func (rt *Runtime) Dispatch(h riscv.Hart, f *riscv.TrapFrame) {
	hid := h.HartID()
	if f.IsInterrupt() {
		var slot trapSlot
		switch f.Cause {
		case riscv.MCauseMSoftwareInterrupt:
			slot = slotIPI
		case riscv.MCauseMTimerInterrupt:
			slot = slotTimer
		case riscv.MCauseMExternalInterrupt:
			slot = slotExternal
		default:
			rt.spurious(h, f)
			return
		}
		handler, _ := rt.traps.get(hid, slot)
		handler(h, f)
		return
	}

	var slot trapSlot
	switch f.Cause {
	case riscv.MCauseInstrAddrMisaligned, riscv.MCauseInstrAccessFault, riscv.MCauseInstrIllegal:
		slot = slotFault
	case riscv.MCauseLoadAddrMisaligned, riscv.MCauseLoadAccessFault:
		slot = slotLoadFault
	case riscv.MCauseStoreAddrMisaligned, riscv.MCauseStoreAccessFault:
		slot = slotStoreFault
	default:
		rt.unhandled(h, f)
		return
	}
	handler, registered := rt.traps.get(hid, slot)
	handler(h, f)
	if registered {
		f.EPC += riscv.InstructionBytes
	}
}

func (rt *Runtime) spurious(h riscv.Hart, f *riscv.TrapFrame) {
	trust.Errorf("PANIC ! SPURIOUS INTERRUPT on hart %d: %s (mcause=%#x)",
		h.HartID(), riscv.CauseString(f.Cause), f.Cause)
	rt.exit(1)
}

func (rt *Runtime) unhandled(h riscv.Hart, f *riscv.TrapFrame) {
	trust.Errorf("PANIC ! UNHANDLED EXCEPTION on hart %d: %s", h.HartID(), riscv.CauseString(f.Cause))
	trust.Errorf("  mcause  = %#016x", f.Cause)
	trust.Errorf("  mstatus = %#016x", f.Status)
	trust.Errorf("  mepc    = %#016x", f.EPC)
	trust.Errorf("  mtval   = %#016x", f.TVal)
	rt.exit(1)
}
