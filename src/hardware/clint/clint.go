// Package clint drives the core-local interruptor: one software interrupt
// (MSIP) word and one timer compare register per hart plus the shared
// free-running MTIME counter.
package clint

import (
	"unsafe"

	"camaraderie/src/hardware/volatile"
	"camaraderie/src/lib/trust"
)

// MaxTargets is the largest number of harts a CLINT can address.
const MaxTargets = 4095

const (
	MSIPOffset     = 0x0000
	MTimeCmpOffset = 0x4000
	MTimeOffset    = 0xbff8
)

// RegisterMap is the CLINT register file, SiFive/ACLINT layout.
type RegisterMap struct {
	MSIP     [MaxTargets]volatile.Register32 //0x0000
	_        uint32                          //0x3ffc
	MTimeCmp [MaxTargets]volatile.Register64 //0x4000
	MTime    volatile.Register64             //0xbff8
}

// Map lays a RegisterMap over the device at base.
func Map(base uintptr) *RegisterMap {
	return (*RegisterMap)(unsafe.Pointer(base))
}

// Barrier is the store barrier issued after every register write.
type Barrier interface {
	Fence()
}

// Driver is the state kept for one CLINT.
type Driver struct {
	regs        *RegisterMap
	ncores      int
	barrier     Barrier
	timerPeriod [MaxTargets]uint64
}

// NewDriver returns a driver for regs that is not yet initialized.
func NewDriver(regs *RegisterMap, barrier Barrier) *Driver {
	return &Driver{regs: regs, barrier: barrier}
}

// Init resets the time counter, pushes every timer compare register to its
// maximum value (which disables it) and clears any pending software interrupt.
func (d *Driver) Init(ncores int) {
	if ncores > MaxTargets {
		trust.Warnf("clint: %d cores requested, clamping to %d", ncores, MaxTargets)
		ncores = MaxTargets
	}
	d.ncores = ncores
	d.SetMTime(0)
	for i := 0; i < ncores; i++ {
		d.SetMTimeCmp(i, ^uint64(0))
		d.ClearIPI(i)
		d.timerPeriod[i] = 0
	}
}

// Cores is the number of harts given to Init.
func (d *Driver) Cores() int {
	return d.ncores
}

// Registers exposes the register file, mostly for device models.
func (d *Driver) Registers() *RegisterMap {
	return d.regs
}

func (d *Driver) valid(core int) bool {
	if core < 0 || core >= d.ncores {
		trust.Debugf("clint: access to core %d ignored (%d cores)", core, d.ncores)
		return false
	}
	return true
}

func (d *Driver) write32(r *volatile.Register32, v uint32) {
	r.Set(v)
	d.barrier.Fence()
}

func (d *Driver) write64(r *volatile.Register64, v uint64) {
	r.Set(v)
	d.barrier.Fence()
}

// SendIPI raises the software interrupt of core.
func (d *Driver) SendIPI(core int) {
	if !d.valid(core) {
		return
	}
	d.write32(&d.regs.MSIP[core], 1)
}

// RecvIPI acknowledges the software interrupt of core.  It returns whether
// one was pending before the call.
func (d *Driver) RecvIPI(core int) bool {
	if !d.valid(core) {
		return false
	}
	active := d.regs.MSIP[core].Get()
	if active != 0 {
		d.write32(&d.regs.MSIP[core], 0)
	}
	return active != 0
}

// ClearIPI drops the software interrupt of core, pending or not.
func (d *Driver) ClearIPI(core int) {
	if !d.valid(core) {
		return
	}
	d.write32(&d.regs.MSIP[core], 0)
}

// IPIPending reads the MSIP word without touching it.
func (d *Driver) IPIPending(core int) bool {
	if !d.valid(core) {
		return false
	}
	return d.regs.MSIP[core].Get() != 0
}

func (d *Driver) SetMTimeCmp(core int, value uint64) {
	if !d.valid(core) {
		return
	}
	d.write64(&d.regs.MTimeCmp[core], value)
}

func (d *Driver) MTimeCmp(core int) uint64 {
	if !d.valid(core) {
		return 0
	}
	return d.regs.MTimeCmp[core].Get()
}

func (d *Driver) SetMTime(value uint64) {
	d.write64(&d.regs.MTime, value)
}

func (d *Driver) MTime() uint64 {
	return d.regs.MTime.Get()
}

// SetTimerPeriod records period for core and arms its compare register
// period ticks from now.
func (d *Driver) SetTimerPeriod(core int, period uint64) {
	if !d.valid(core) {
		return
	}
	d.timerPeriod[core] = period
	d.SetMTimeCmp(core, d.MTime()+period)
}

func (d *Driver) TimerPeriod(core int) uint64 {
	if !d.valid(core) {
		return 0
	}
	return d.timerPeriod[core]
}

// Rearm moves the compare register of core one period past the current
// time.  A core without a period gets its timer disabled.
func (d *Driver) Rearm(core int) {
	if !d.valid(core) {
		return
	}
	p := d.timerPeriod[core]
	if p == 0 {
		d.SetMTimeCmp(core, ^uint64(0))
		return
	}
	d.SetMTimeCmp(core, d.MTime()+p)
}

// DisableTimer pushes the compare register of core out of reach.
func (d *Driver) DisableTimer(core int) {
	if !d.valid(core) {
		return
	}
	d.timerPeriod[core] = 0
	d.SetMTimeCmp(core, ^uint64(0))
}
