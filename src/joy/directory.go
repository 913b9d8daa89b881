package joy

import (
	"sync/atomic"
	"unsafe"

	"camaraderie/src/hardware/clint"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/lib/upbeat"
)

type CPUState uint32

const (
	CPUIdle    CPUState = 0
	CPUAwake   CPUState = 1
	CPURunning CPUState = 2
	CPUError   CPUState = 3
)

func (s CPUState) String() string {
	switch s {
	case CPUIdle:
		return "IDLE"
	case CPUAwake:
		return "AWAKE"
	case CPURunning:
		return "RUNNING"
	case CPUError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// IPIKind says what an incoming software interrupt asks of a hart.
type IPIKind uint32

const (
	IPINone   IPIKind = 0
	IPICreate IPIKind = 1
	IPIKill   IPIKind = 2
)

func (k IPIKind) String() string {
	switch k {
	case IPINone:
		return "NONE"
	case IPICreate:
		return "CREATE"
	case IPIKill:
		return "KILL"
	}
	return "UNKNOWN"
}

// EntryFunc is the work a hart runs for a thread.  Anything other than
// ThreadSuccess puts the hart in the error state for good.
type EntryFunc func(h riscv.Hart, args interface{}) int

const ThreadSuccess = 0

// Descriptor is the shared record through which one hart is told what to
// do.  state and ipiKind are only touched atomically; the other fields are
// written by one side before a fence and a signal and read by the other side
// after a refresh.
type Descriptor struct {
	sid uint16
	hid uint16

	thread *Thread
	entry  EntryFunc
	args   interface{}
	clint  *clint.Driver

	state   uint32
	ipiKind uint32
}

// Refresh drops the descriptor from the calling hart's data cache so the
// next reads come from memory.
func (d *Descriptor) Refresh(h riscv.Hart) {
	h.InvalidateDCacheRange(uintptr(unsafe.Pointer(d)), unsafe.Sizeof(*d))
}

func (d *Descriptor) LogicalID() uint16 {
	return d.sid
}

func (d *Descriptor) PhysicalID() uint16 {
	return d.hid
}

func (d *Descriptor) State() CPUState {
	return CPUState(atomic.LoadUint32(&d.state))
}

func (d *Descriptor) setState(s CPUState) {
	atomic.StoreUint32(&d.state, uint32(s))
}

// The ipiKind word carries the kind in its low byte and, above it, the
// generation of the reservation that set it.  Create starts a new
// generation so a late Destroy of an older thread cannot touch it.
const (
	ipiKindMask = 0xff
	ipiGenShift = 8
	ipiGenMask  = 0x00ff_ffff
)

func ipiWord(gen uint32, k IPIKind) uint32 {
	return (gen&ipiGenMask)<<ipiGenShift | uint32(k)
}

func (d *Descriptor) IPIKind() IPIKind {
	return IPIKind(atomic.LoadUint32(&d.ipiKind) & ipiKindMask)
}

func (d *Descriptor) generation() uint32 {
	return atomic.LoadUint32(&d.ipiKind) >> ipiGenShift
}

// reserve moves the descriptor from NONE to CREATE under a new generation,
// which it returns.  It fails if somebody else holds the descriptor.
func (d *Descriptor) reserve() (uint32, bool) {
	old := atomic.LoadUint32(&d.ipiKind)
	if IPIKind(old&ipiKindMask) != IPINone {
		return 0, false
	}
	gen := ((old >> ipiGenShift) + 1) & ipiGenMask
	if !atomic.CompareAndSwapUint32(&d.ipiKind, old, ipiWord(gen, IPICreate)) {
		return 0, false
	}
	return gen, true
}

func (d *Descriptor) swapIPIKind(gen uint32, from, to IPIKind) bool {
	return atomic.CompareAndSwapUint32(&d.ipiKind, ipiWord(gen, from), ipiWord(gen, to))
}

// setIPIKind is only for the owner of the descriptor; the generation is kept.
func (d *Descriptor) setIPIKind(k IPIKind) {
	atomic.StoreUint32(&d.ipiKind, ipiWord(d.generation(), k))
}

// Work is the entry and argument the hart was last given.
func (d *Descriptor) Work(h riscv.Hart) (EntryFunc, interface{}) {
	d.Refresh(h)
	return d.entry, d.args
}

func (d *Descriptor) Thread(h riscv.Hart) *Thread {
	d.Refresh(h)
	return d.thread
}

func (d *Descriptor) Driver(h riscv.Hart) *clint.Driver {
	d.Refresh(h)
	return d.clint
}

// CPUCount is the number of harts in the directory.
func (rt *Runtime) CPUCount() int {
	return rt.config.NCPUs
}

// Lookup returns the descriptor of a logical cpu.
func (rt *Runtime) Lookup(sid int) (*Descriptor, error) {
	if sid < 0 || sid >= rt.config.NCPUs {
		return nil, MakeError(ErrorOutOfRange, NoID)
	}
	return &rt.cpus[sid], nil
}

// FindIdle returns the first idle descriptor that nobody has reserved yet,
// or nil.
func (rt *Runtime) FindIdle() *Descriptor {
	for i := 0; i < rt.config.NCPUs; i++ {
		d := &rt.cpus[i]
		if d.State() == CPUIdle && d.IPIKind() == IPINone {
			return d
		}
	}
	return nil
}

// LogicalID translates a raw hart id, NoID if it is not mapped.
func (rt *Runtime) LogicalID(hid uint16) uint16 {
	if int(hid) >= MaxHartID {
		return NoID
	}
	return rt.hid2sid[hid]
}

// PhysicalID translates a logical id, NoID if it is out of range.
func (rt *Runtime) PhysicalID(sid uint16) uint16 {
	if int(sid) >= rt.config.NCPUs {
		return NoID
	}
	return rt.sid2hid[sid]
}

// MapHart records that raw hart hid is logical cpu sid.  Each side may only
// be mapped once.  Boards call this from Init.
func (rt *Runtime) MapHart(hid uint16, sid uint16) error {
	if int(hid) >= MaxHartID || int(sid) >= rt.config.NCPUs {
		return MakeError(ErrorOutOfRange, sid)
	}
	if rt.mapped.On(upbeat.BitIndex(hid)) || rt.sid2hid[sid] != NoID {
		return MakeError(ErrorBadMapping, sid)
	}
	rt.mapped.Set(upbeat.BitIndex(hid))
	rt.hid2sid[hid] = sid
	rt.sid2hid[sid] = hid
	return nil
}

// MappedHarts is the number of raw hart ids that have been mapped.
func (rt *Runtime) MappedHarts() int {
	return rt.mapped.Count()
}

func (rt *Runtime) clearTables() {
	for i := range rt.hid2sid {
		rt.hid2sid[i] = NoID
	}
	for i := range rt.sid2hid {
		rt.sid2hid[i] = NoID
	}
	rt.mapped.ClearAll()
	for i := range rt.cpus {
		rt.cpus[i] = Descriptor{sid: uint16(i), hid: NoID}
	}
}
