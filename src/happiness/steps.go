package happiness

import (
	"errors"
	"fmt"
	"sync/atomic"

	"camaraderie/src/hardware/riscv"
	"camaraderie/src/joy"
	"camaraderie/src/lib/trust"
)

func (p *Program) double(h riscv.Hart) error {
	work := func(h riscv.Hart, args interface{}) int {
		t, err := p.rt.CurrentThread(h)
		if err != nil {
			return 1
		}
		v := int64(args.(int)) * 2
		t.SetResult(v)
		p.sample(h, v)
		return joy.ThreadSuccess
	}
	threads, err := p.each(h, work, func(sid int) interface{} { return sid })
	if err != nil {
		return err
	}
	for _, t := range threads {
		if want := int64(t.ID()) * 2; t.Result() != want {
			return fmt.Errorf("cpu %d computed %d, expected %d", t.ID(), t.Result(), want)
		}
	}
	return nil
}

// mutexes has every worker bump one counter under the spin mutex and
// another under the ticket mutex, with no thread pinned.
func (p *Program) mutexes(h riscv.Hart) error {
	p.spinTotal = 0
	p.ticketTotal = 0
	work := func(h riscv.Hart, _ interface{}) int {
		for i := 0; i < p.opts.Rounds; i++ {
			p.spin.Lock()
			p.spinTotal++
			p.spin.Unlock()

			p.ticket.Lock()
			p.ticketTotal++
			p.ticket.Unlock()
		}
		return joy.ThreadSuccess
	}
	if p.rt.CPUCount() < 2 {
		return nil
	}
	var threads []*joy.Thread
	for i := 1; i < p.rt.CPUCount(); i++ {
		t := joy.NewThread()
		err := p.rt.Create(h, t, work, nil)
		if errors.Is(err, joy.ErrorNoCPUAvailable) {
			break
		}
		if err != nil {
			return err
		}
		threads = append(threads, t)
	}
	if len(threads) == 0 {
		return fmt.Errorf("no cpu took a mutex worker")
	}
	for _, t := range threads {
		if err := p.rt.Join(h, t); err != nil {
			return err
		}
	}
	want := len(threads) * p.opts.Rounds
	p.spin.Lock()
	p.ticket.Lock()
	spin, ticket := p.spinTotal, p.ticketTotal
	p.ticket.Unlock()
	p.spin.Unlock()
	if spin != want || ticket != want {
		return fmt.Errorf("counted spin=%d ticket=%d, expected %d", spin, ticket, want)
	}
	return nil
}

// destroy stops a worker that would otherwise run forever.
func (p *Program) destroy(h riscv.Hart) error {
	if p.rt.CPUCount() < 2 {
		return nil
	}
	var started uint32
	forever := func(h riscv.Hart, _ interface{}) int {
		atomic.StoreUint32(&started, 1)
		for !p.rt.KillRequested(h) {
			h.Delay(p.rt.Config().PollDelay)
		}
		return joy.ThreadSuccess
	}
	t := joy.PinnedThread(p.rt.CPUCount() - 1)
	if err := p.rt.Create(h, t, forever, nil); err != nil {
		return err
	}
	for atomic.LoadUint32(&started) == 0 {
		h.Delay(p.rt.Config().PollDelay)
	}
	return p.rt.Destroy(h, t)
}

// fault takes a misaligned load on a worker, on machines that can fake
// one, and checks the handler resumed past it.
func (p *Program) fault(h riscv.Hart) error {
	type faulter interface {
		Fault(cause uintptr, tval uintptr)
		PC() uintptr
	}
	if p.rt.CPUCount() < 2 {
		return nil
	}
	var handled uint32
	work := func(h riscv.Hart, _ interface{}) int {
		f, ok := h.(faulter)
		if !ok {
			return joy.ThreadSuccess
		}
		p.rt.RegisterLoadFaultHandler(h.HartID(), func(h riscv.Hart, frame *riscv.TrapFrame) {
			trust.Debugf("hart %d: %s at %#x", h.HartID(), riscv.CauseString(frame.Cause), frame.TVal)
			atomic.AddUint32(&handled, 1)
		})
		pc := f.PC()
		f.Fault(riscv.MCauseLoadAddrMisaligned, 0x8000_1001)
		p.rt.RegisterLoadFaultHandler(h.HartID(), nil)
		if f.PC() != pc+riscv.InstructionBytes {
			return 1
		}
		return joy.ThreadSuccess
	}
	t := joy.PinnedThread(1)
	if err := p.rt.Create(h, t, work, nil); err != nil {
		return err
	}
	if err := p.rt.Join(h, t); err != nil {
		return err
	}
	if n := atomic.LoadUint32(&handled); n > 1 {
		return fmt.Errorf("load fault handler ran %d times", n)
	}
	return nil
}

// timer runs a periodic timer on the calling hart until enough ticks came.
func (p *Program) timer(h riscv.Hart) error {
	hid := h.HartID()
	self, err := p.rt.Lookup(0)
	if err != nil {
		return err
	}
	clint := self.Driver(h)
	p.rt.RegisterTimerHandler(hid, func(h riscv.Hart, _ *riscv.TrapFrame) {
		atomic.AddUint32(&p.ticks, 1)
		clint.Rearm(int(hid))
	})
	clint.SetTimerPeriod(int(hid), 2)
	riscv.EnableInterrupts(h, riscv.MIE_MTIE)
	for atomic.LoadUint32(&p.ticks) < uint32(p.opts.TimerTicks) {
		h.Delay(p.rt.Config().PollDelay)
	}
	riscv.DisableInterrupts(h, riscv.MIE_MTIE)
	clint.DisableTimer(int(hid))
	p.rt.RegisterTimerHandler(hid, nil)
	trust.Infof("timer: %d ticks, mtime=%d", atomic.LoadUint32(&p.ticks), clint.MTime())
	return nil
}

// echo reads one line from the console and writes it back.
func (p *Program) echo(h riscv.Hart) error {
	console := p.rt.Console()
	console.Logf("type a line and press enter:")
	var line []byte
	for {
		b, err := console.ReadByte()
		if err != nil {
			h.Delay(p.rt.Config().PollDelay)
			continue
		}
		if b == '\r' || b == '\n' {
			break
		}
		line = append(line, b)
		console.Write([]byte{b})
	}
	console.Logf("\nyou said: %s", line)
	if p.report != nil {
		p.report.Echoed = string(line)
	}
	return nil
}
