package joy

import (
	"sync/atomic"
	"unsafe"

	"camaraderie/src/hardware/riscv"
	"camaraderie/src/lib/trust"
)

// Start is the entry point of every hart.  The boot hart sets up the
// directory and runs main; the others wait to be given work, forever.
// Start does not return on real hardware.
func (rt *Runtime) Start(h riscv.Hart) {
	rt.board.InitHart(h)
	h.SetTrapVector(rt.Dispatch)
	if h.HartID() == rt.config.BootHart {
		rt.primary(h)
		return
	}
	rt.secondary(h)
}

func (rt *Runtime) primary(h riscv.Hart) {
	hid := h.HartID()
	rt.clearTables()
	for _, fn := range rt.initializers {
		fn()
	}
	if err := rt.board.Init(rt); err != nil {
		trust.Errorf("board init failed: %v", err)
		rt.exit(1)
		return
	}
	if sid := rt.LogicalID(hid); sid != 0 {
		trust.Errorf("%v: hart %d has logical id %d", MakeError(ErrorNotBootCPU, sid), hid, sid)
		rt.exit(1)
		return
	}

	driver := rt.board.Driver()
	for sid := 0; sid < rt.config.NCPUs; sid++ {
		d := &rt.cpus[sid]
		d.sid = uint16(sid)
		d.hid = rt.sid2hid[sid]
		d.clint = driver
		d.entry = nil
		d.args = nil
		d.thread = nil
		d.setIPIKind(IPINone)
		d.setState(CPUIdle)
	}
	self := &rt.cpus[0]
	self.entry = func(h riscv.Hart, _ interface{}) int { return rt.main(h) }
	self.setState(CPURunning)
	h.Fence()
	h.SetThreadPointer(unsafe.Pointer(self))
	self.thread = &Thread{id: 0, pin: 0, desc: self}
	atomic.StoreUint32(&rt.booted, 1)

	ResetCounters(h)
	trust.Infof("boot hart %d running main with %d cpus", hid, rt.config.NCPUs)
	status := rt.main(h)
	for _, fn := range rt.endOfMain {
		fn(status)
	}
	rt.exit(status)
}

func (rt *Runtime) secondary(h riscv.Hart) {
	hid := h.HartID()
	for {
		for !riscv.SoftwareInterruptPending(h) {
			h.WaitForInterrupt()
		}
		h.InvalidateDCache()

		sid := rt.LogicalID(hid)
		d, err := rt.Lookup(int(sid))
		if err != nil {
			trust.Errorf("hart %d woke up but has no logical id", hid)
			h.Park()
			return
		}
		if !d.Driver(h).RecvIPI(int(hid)) {
			rt.fault(h, d, "cpu %d woke up without a pending ipi", sid)
			return
		}
		if kind := d.IPIKind(); kind != IPICreate {
			rt.fault(h, d, "cpu %d woke up for %s, expected CREATE", sid, kind)
			return
		}
		gen := d.generation()
		h.SetThreadPointer(unsafe.Pointer(d))
		h.Fence()
		d.setState(CPUAwake)
		for d.State() != CPURunning {
			h.Delay(rt.config.PollDelay)
		}

		ResetCounters(h)
		entry, args := d.Work(h)
		if entry == nil {
			rt.fault(h, d, "cpu %d was created without an entry", sid)
			return
		}
		if rc := entry(h, args); rc != ThreadSuccess {
			rt.fault(h, d, "cpu %d: thread returned %d", sid, rc)
			return
		}
		rt.retire(h, d, gen)
	}
}

// retire puts the cpu back in the idle pool.  A kill request that raced
// with the end of the entry leaves a software interrupt behind; it is
// consumed here so the next wakeup is not mistaken for a create.
func (rt *Runtime) retire(h riscv.Hart, d *Descriptor, gen uint32) {
	if !d.swapIPIKind(gen, IPICreate, IPINone) {
		for !d.clint.IPIPending(int(d.hid)) {
			h.Delay(rt.config.PollDelay)
		}
		d.clint.ClearIPI(int(d.hid))
		d.setIPIKind(IPINone)
	}
	h.Fence()
	d.setState(CPUIdle)
}

// fault is the end of a hart that broke the protocol or whose work failed.
func (rt *Runtime) fault(h riscv.Hart, d *Descriptor, format string, params ...interface{}) {
	trust.Errorf(format, params...)
	h.Fence()
	d.setState(CPUError)
	h.Park()
}
