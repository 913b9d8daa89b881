package joy_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"camaraderie/src/bsp/simulator"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/hardware/sim"
	"camaraderie/src/joy"
	"camaraderie/src/lib/tohost"
)

type machineOptions struct {
	hartIDs    []uint16
	stalled    []uint16
	boot       uint16
	pollBudget int
}

// runMachine boots a simulated machine with len(hartIDs) (default 4) harts
// and runs main on the boot hart.  It returns the exit status.
func runMachine(t *testing.T, opts machineOptions, setup func(rt *joy.Runtime), main func(rt *joy.Runtime, h riscv.Hart) int) (int, *sim.Machine) {
	t.Helper()
	sc := sim.DefaultConfig()
	if len(opts.hartIDs) > 0 {
		sc.Harts = len(opts.hartIDs)
		sc.HartIDs = opts.hartIDs
	}
	sc.Stalled = opts.stalled
	sc.Timeout = 30 * time.Second
	m := sim.NewMachine(sc)

	jc := joy.DefaultConfig()
	jc.NCPUs = sc.Harts
	jc.BootHart = opts.boot
	if opts.pollBudget > 0 {
		jc.PollBudget = opts.pollBudget
	}
	board := simulator.NewBoard(m, opts.boot)
	var rt *joy.Runtime
	rt = joy.New(jc, board, func(h riscv.Hart) int { return main(rt, h) })
	if setup != nil {
		setup(rt)
	}
	status := m.Run(simulator.Start(rt))
	if status == sim.WatchdogStatus {
		t.Fatalf("machine hung")
	}
	return status, m
}

func double(rt *joy.Runtime) joy.EntryFunc {
	return func(h riscv.Hart, args interface{}) int {
		th, err := rt.CurrentThread(h)
		if err != nil {
			return 1
		}
		th.SetResult(int64(args.(int) * 2))
		return joy.ThreadSuccess
	}
}

// waitFor polls cond on the calling hart, failing after a few seconds.
func waitFor(h riscv.Hart, cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		h.Delay(1000)
	}
	return true
}

func TestDoubleOnThreeWorkers(t *testing.T) {
	status, m := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		threads := make([]*joy.Thread, 3)
		for i := range threads {
			threads[i] = joy.PinnedThread(i + 1)
			if err := rt.Create(h, threads[i], double(rt), i+1); err != nil {
				t.Errorf("create on cpu %d: %v", i+1, err)
				return 1
			}
		}
		for i, th := range threads {
			if err := rt.Join(h, th); err != nil {
				t.Errorf("join cpu %d: %v", i+1, err)
				return 1
			}
			if th.Result() != int64(2*(i+1)) {
				t.Errorf("cpu %d: result %d, expected %d", i+1, th.Result(), 2*(i+1))
			}
			d, _ := rt.Lookup(i + 1)
			if d.State() != joy.CPUIdle {
				t.Errorf("cpu %d not idle after join: %v", i+1, d.State())
			}
		}
		return 0
	})
	if status != 0 || !tohost.Passed(m.ToHost().Get()) {
		t.Errorf("status %d, tohost %#x", status, m.ToHost().Get())
	}
}

func TestPinnedCreateOnBusyCPU(t *testing.T) {
	var release uint32
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		hold := func(h riscv.Hart, _ interface{}) int {
			for atomic.LoadUint32(&release) == 0 {
				h.Delay(1000)
			}
			return joy.ThreadSuccess
		}
		first := joy.PinnedThread(2)
		if err := rt.Create(h, first, hold, nil); err != nil {
			t.Errorf("first create: %v", err)
			return 1
		}
		err := rt.Create(h, joy.PinnedThread(2), hold, nil)
		if !errors.Is(err, joy.ErrorCPUBusy) {
			t.Errorf("second create on a running cpu: %v", err)
		}
		atomic.StoreUint32(&release, 1)
		if err := rt.Join(h, first); err != nil {
			t.Errorf("join: %v", err)
			return 1
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestConcurrentCreateOnSameCPU(t *testing.T) {
	var release uint32
	var winner atomic.Pointer[joy.Thread]
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		hold := func(h riscv.Hart, _ interface{}) int {
			for atomic.LoadUint32(&release) == 0 {
				h.Delay(1000)
			}
			return joy.ThreadSuccess
		}
		results := make(chan error, 2)
		race := func(h riscv.Hart) {
			th := joy.PinnedThread(3)
			err := rt.Create(h, th, hold, nil)
			if err == nil {
				winner.Store(th)
			}
			results <- err
		}
		helper := joy.PinnedThread(1)
		err := rt.Create(h, helper, func(h riscv.Hart, _ interface{}) int {
			race(h)
			return joy.ThreadSuccess
		}, nil)
		if err != nil {
			t.Errorf("helper create: %v", err)
			return 1
		}
		race(h)
		ok, busy := 0, 0
		for i := 0; i < 2; i++ {
			switch err := <-results; {
			case err == nil:
				ok++
			case errors.Is(err, joy.ErrorCPUBusy):
				busy++
			default:
				t.Errorf("unexpected create error: %v", err)
			}
		}
		if ok != 1 || busy != 1 {
			t.Errorf("expected one winner and one busy, got %d and %d", ok, busy)
		}
		atomic.StoreUint32(&release, 1)
		if th := winner.Load(); th != nil {
			if err := rt.Join(h, th); err != nil {
				t.Errorf("join winner: %v", err)
			}
		}
		if err := rt.Join(h, helper); err != nil {
			t.Errorf("join helper: %v", err)
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestDestroyIdleThenReuse(t *testing.T) {
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		th := joy.PinnedThread(1)
		if err := rt.Create(h, th, double(rt), 5); err != nil {
			t.Errorf("create: %v", err)
			return 1
		}
		if err := rt.Join(h, th); err != nil {
			t.Errorf("join: %v", err)
			return 1
		}
		if err := rt.Destroy(h, th); err != nil {
			t.Errorf("destroy on idle: %v", err)
		}
		hid := rt.PhysicalID(1)
		if rt.Config().NCPUs != 4 || hid == joy.NoID {
			t.Errorf("bad mapping for cpu 1")
			return 1
		}
		d, _ := rt.Lookup(1)
		if d.Driver(h).IPIPending(int(hid)) {
			t.Errorf("destroy on idle left an ipi pending")
		}
		again := joy.PinnedThread(1)
		if err := rt.Create(h, again, double(rt), 6); err != nil {
			t.Errorf("create after destroy: %v", err)
			return 1
		}
		if err := rt.Join(h, again); err != nil || again.Result() != 12 {
			t.Errorf("second run: %v, result %d", err, again.Result())
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestDestroyRunningWorker(t *testing.T) {
	var spins uint64
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		loop := func(h riscv.Hart, _ interface{}) int {
			for !rt.KillRequested(h) {
				atomic.AddUint64(&spins, 1)
				h.Delay(500)
			}
			return joy.ThreadSuccess
		}
		th := joy.PinnedThread(2)
		if err := rt.Create(h, th, loop, nil); err != nil {
			t.Errorf("create: %v", err)
			return 1
		}
		if !waitFor(h, func() bool { return atomic.LoadUint64(&spins) > 3 }) {
			t.Errorf("worker never ran")
			return 1
		}
		if err := rt.Destroy(h, th); err != nil {
			t.Errorf("destroy: %v", err)
			return 1
		}
		d, _ := rt.Lookup(2)
		if d.State() != joy.CPUIdle || d.IPIKind() != joy.IPINone {
			t.Errorf("after destroy: state %v kind %v", d.State(), d.IPIKind())
		}
		// the kill signal must have been consumed
		next := joy.PinnedThread(2)
		if err := rt.Create(h, next, double(rt), 4); err != nil {
			t.Errorf("create after destroy: %v", err)
			return 1
		}
		if err := rt.Join(h, next); err != nil || next.Result() != 8 {
			t.Errorf("after destroy: %v, result %d", err, next.Result())
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestFailingWorkerFaultsCPU(t *testing.T) {
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		th := joy.PinnedThread(2)
		fail := func(riscv.Hart, interface{}) int { return 17 }
		if err := rt.Create(h, th, fail, nil); err != nil {
			t.Errorf("create: %v", err)
			return 1
		}
		err := rt.Join(h, th)
		if !errors.Is(err, joy.ErrorCPUFaulted) {
			t.Errorf("join of a failed worker: %v", err)
		}
		var je joy.JoyError
		if errors.As(err, &je) && je.CPU() != 2 {
			t.Errorf("error names cpu %d", je.CPU())
		}
		if err := rt.Create(h, joy.PinnedThread(2), double(rt), 1); err == nil {
			t.Errorf("create on a faulted cpu succeeded")
		}
		if err := rt.Destroy(h, th); !errors.Is(err, joy.ErrorCPUFaulted) {
			t.Errorf("destroy on a faulted cpu: %v", err)
		}
		// the rest of the machine still works
		other := joy.NewThread()
		if err := rt.Create(h, other, double(rt), 10); err != nil {
			t.Errorf("create elsewhere: %v", err)
			return 1
		}
		if other.ID() == 2 {
			t.Errorf("faulted cpu handed out again")
		}
		if err := rt.Join(h, other); err != nil || other.Result() != 20 {
			t.Errorf("join elsewhere: %v %d", err, other.Result())
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestCreateTimesOutOnStalledHart(t *testing.T) {
	opts := machineOptions{stalled: []uint16{3}, pollBudget: 50}
	status, _ := runMachine(t, opts, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		err := rt.Create(h, joy.PinnedThread(3), double(rt), 1)
		if !errors.Is(err, joy.ErrorTimeout) {
			t.Errorf("expected timeout, got %v", err)
		}
		d, _ := rt.Lookup(3)
		if d.State() == joy.CPUError {
			t.Errorf("timeout faulted the cpu")
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestUnexpectedWakeupFaults(t *testing.T) {
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		d, _ := rt.Lookup(1)
		d.Driver(h).SendIPI(int(d.PhysicalID()))
		if !waitFor(h, func() bool { return d.State() == joy.CPUError }) {
			t.Errorf("cpu 1 did not fault, state %v", d.State())
			return 1
		}
		if err := rt.Create(h, joy.PinnedThread(1), double(rt), 1); !errors.Is(err, joy.ErrorCPUBusy) {
			t.Errorf("create on the faulted cpu: %v", err)
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestThreadIDsWithPermutedHarts(t *testing.T) {
	opts := machineOptions{hartIDs: []uint16{5, 2, 9, 0}, boot: 9}
	status, _ := runMachine(t, opts, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		if id, err := rt.ThreadID(h); err != nil || id != 0 {
			t.Errorf("boot hart thread id %d, %v", id, err)
		}
		if rt.LogicalID(9) != 0 {
			t.Errorf("boot hart is not logical 0")
		}
		type seen struct {
			sid uint16
			hid uint16
		}
		report := make(chan seen, 3)
		probe := func(h riscv.Hart, _ interface{}) int {
			id, err := rt.ThreadID(h)
			if err != nil {
				return 1
			}
			report <- seen{id, h.HartID()}
			return joy.ThreadSuccess
		}
		var threads []*joy.Thread
		for sid := 1; sid < 4; sid++ {
			th := joy.PinnedThread(sid)
			if err := rt.Create(h, th, probe, nil); err != nil {
				t.Errorf("create on %d: %v", sid, err)
				return 1
			}
			threads = append(threads, th)
		}
		for _, th := range threads {
			if err := rt.Join(h, th); err != nil {
				t.Errorf("join: %v", err)
			}
		}
		for i := 0; i < 3; i++ {
			s := <-report
			if rt.PhysicalID(s.sid) != s.hid || rt.LogicalID(s.hid) != s.sid {
				t.Errorf("cpu %d ran on hart %d", s.sid, s.hid)
			}
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestHooksAndFailingMain(t *testing.T) {
	var inits, ended int32 = 0, -1
	setup := func(rt *joy.Runtime) {
		rt.OnInit(func() { atomic.AddInt32(&inits, 1) })
		rt.OnEndOfMain(func(status int) { atomic.StoreInt32(&ended, int32(status)) })
	}
	status, m := runMachine(t, machineOptions{}, setup, func(rt *joy.Runtime, h riscv.Hart) int {
		if !rt.Booted() {
			t.Errorf("main runs before the directory is published")
		}
		return 3
	})
	if status != 3 || m.ToHost().Get() != tohost.VerifFailure {
		t.Errorf("status %d, tohost %#x", status, m.ToHost().Get())
	}
	if atomic.LoadInt32(&inits) != 1 || atomic.LoadInt32(&ended) != 3 {
		t.Errorf("hooks: inits=%d ended=%d", inits, ended)
	}
}

func TestTimerInterruptOnBootHart(t *testing.T) {
	var ticks uint32
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		hid := h.HartID()
		d, _ := rt.Lookup(0)
		drv := d.Driver(h)
		rt.RegisterTimerHandler(hid, func(h riscv.Hart, _ *riscv.TrapFrame) {
			atomic.AddUint32(&ticks, 1)
			drv.Rearm(int(hid))
		})
		drv.SetTimerPeriod(int(hid), 3)
		riscv.EnableInterrupts(h, riscv.MIE_MTIE)
		ok := waitFor(h, func() bool { return atomic.LoadUint32(&ticks) >= 3 })
		riscv.DisableInterrupts(h, riscv.MIE_MTIE)
		drv.DisableTimer(int(hid))
		if !ok {
			t.Errorf("timer fired %d times", ticks)
			return 1
		}
		return 0
	})
	if status != 0 {
		t.Errorf("status %d", status)
	}
}

func TestFaultHandlerThroughSimulator(t *testing.T) {
	status, _ := runMachine(t, machineOptions{}, nil, func(rt *joy.Runtime, h riscv.Hart) int {
		var addr uintptr
		rt.RegisterLoadFaultHandler(h.HartID(), func(_ riscv.Hart, f *riscv.TrapFrame) {
			addr = f.TVal
		})
		sh := h.(*sim.Hart)
		pc := sh.PC()
		sh.Fault(riscv.MCauseLoadAddrMisaligned, 0x8003)
		if addr != 0x8003 || sh.PC() != pc+riscv.InstructionBytes {
			t.Errorf("load fault: tval %#x, pc %#x -> %#x", addr, pc, sh.PC())
		}
		// nothing registered for stores: the machine stops here
		sh.Fault(riscv.MCauseStoreAccessFault, 0x10)
		t.Errorf("unhandled fault returned")
		return 0
	})
	if status == 0 {
		t.Errorf("unhandled fault did not fail the run")
	}
}
