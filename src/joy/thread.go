package joy

import (
	"sync/atomic"

	"camaraderie/src/hardware/riscv"
	"camaraderie/src/lib/trust"
)

// NoPin means any idle cpu will do.
const NoPin = -1

// Thread is the caller's handle on work running on another hart.  There are
// never more threads than harts; a thread is the hart while it runs.
type Thread struct {
	id     uint16
	pin    int
	desc   *Descriptor
	gen    uint32
	result int64
}

// NewThread makes a thread that runs on whichever cpu is idle.
func NewThread() *Thread {
	return &Thread{id: NoID, pin: NoPin}
}

// PinnedThread makes a thread that can only run on logical cpu sid.
func PinnedThread(sid int) *Thread {
	return &Thread{id: NoID, pin: sid}
}

// ID is the logical id of the cpu the thread was created on, NoID before
// that.
func (t *Thread) ID() uint16 {
	return t.id
}

func (t *Thread) Pin() int {
	return t.pin
}

// SetResult is called by the worker to leave a value for whoever joins.
func (t *Thread) SetResult(v int64) {
	atomic.StoreInt64(&t.result, v)
}

func (t *Thread) Result() int64 {
	return atomic.LoadInt64(&t.result)
}

// Create starts entry(args) on the cpu t is pinned to, or on any idle cpu.
// It returns once the target has acknowledged and been told to run.
func (rt *Runtime) Create(h riscv.Hart, t *Thread, entry EntryFunc, args interface{}) error {
	var d *Descriptor
	if t.pin != NoPin {
		var err error
		d, err = rt.Lookup(t.pin)
		if err != nil {
			return MakeError(ErrorNoCPUAvailable, NoID)
		}
	} else {
		d = rt.FindIdle()
		if d == nil {
			return MakeError(ErrorNoCPUAvailable, NoID)
		}
	}
	d.Refresh(h)
	if d.State() != CPUIdle {
		return MakeError(ErrorCPUBusy, d.sid)
	}
	// a second creator racing for the same cpu loses here
	gen, ok := d.reserve()
	if !ok {
		return MakeError(ErrorCPUBusy, d.sid)
	}
	d.entry = entry
	d.args = args
	d.thread = t
	h.Fence()
	d.clint.SendIPI(int(d.hid))

	for i := 0; ; i++ {
		switch d.State() {
		case CPUAwake:
			t.id = d.sid
			t.desc = d
			t.gen = gen
			t.SetResult(0)
			h.Fence()
			d.setState(CPURunning)
			trust.Debugf("thread created on cpu %d (hart %d)", d.sid, d.hid)
			return nil
		case CPUError:
			return MakeError(ErrorCPUFaulted, d.sid)
		}
		if i >= rt.config.PollBudget {
			trust.Warnf("cpu %d did not wake after %d polls", d.sid, i)
			return MakeError(ErrorTimeout, d.sid)
		}
		h.Delay(rt.config.PollDelay)
		d.Refresh(h)
	}
}

// Join waits for the thread's cpu to go back to idle.  A cpu that has
// already been given to a newer thread means t is over.
func (rt *Runtime) Join(h riscv.Hart, t *Thread) error {
	d := t.desc
	if d == nil {
		return MakeError(ErrorNoContext, NoID)
	}
	for i := 0; ; i++ {
		d.Refresh(h)
		if d.generation() != t.gen {
			return nil
		}
		switch d.State() {
		case CPUIdle:
			return nil
		case CPUError:
			return MakeError(ErrorCPUFaulted, d.sid)
		}
		if i >= rt.config.PollBudget {
			return MakeError(ErrorTimeout, d.sid)
		}
		h.Delay(rt.config.PollDelay)
	}
}

// Destroy asks the thread's cpu to stop and waits for it.  Workers see the
// request through KillRequested; there is no way to stop one that does not
// look.
func (rt *Runtime) Destroy(h riscv.Hart, t *Thread) error {
	d := t.desc
	if d == nil {
		return MakeError(ErrorNoContext, NoID)
	}
	d.Refresh(h)
	switch d.State() {
	case CPUIdle:
		return nil
	case CPUError:
		return MakeError(ErrorCPUFaulted, d.sid)
	}
	// only the reservation that created t can be killed; if the switch
	// fails the worker has already retired and Join just sees idle, or the
	// cpu belongs to a newer thread
	if d.swapIPIKind(t.gen, IPICreate, IPIKill) {
		h.Fence()
		d.clint.SendIPI(int(d.hid))
	} else if d.generation() != t.gen {
		return nil
	}
	return rt.Join(h, t)
}

// current is the descriptor the calling hart is running for.
func (rt *Runtime) current(h riscv.Hart) *Descriptor {
	p := h.ThreadPointer()
	if p == nil {
		return nil
	}
	d := (*Descriptor)(p)
	d.Refresh(h)
	return d
}

// ThreadID is the logical id of the calling hart's thread.
func (rt *Runtime) ThreadID(h riscv.Hart) (uint16, error) {
	t, err := rt.CurrentThread(h)
	if err != nil {
		return NoID, err
	}
	return t.id, nil
}

// CurrentThread is the thread record the calling hart is running.
func (rt *Runtime) CurrentThread(h riscv.Hart) (*Thread, error) {
	d := rt.current(h)
	if d == nil || d.thread == nil {
		return nil, MakeError(ErrorNoContext, NoID)
	}
	return d.thread, nil
}

// KillRequested is polled by long running workers; true means Destroy has
// been called on their thread.
func (rt *Runtime) KillRequested(h riscv.Hart) bool {
	d := rt.current(h)
	if d == nil {
		return false
	}
	return d.IPIKind() == IPIKill
}
