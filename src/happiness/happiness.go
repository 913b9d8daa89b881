// Package happiness is the demonstration program of the runtime: it fans
// work out to every secondary hart, exercises both kinds of mutex and the
// trap tables, and reports what each hart measured.
package happiness

import (
	"sync/atomic"

	"camaraderie/src/gen"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/joy"
	"camaraderie/src/lib/lock"
	"camaraderie/src/lib/trust"
)

// Options select the optional parts of the program.
type Options struct {
	// Rounds is how many times each worker takes each mutex.
	Rounds int
	// Timer runs a periodic timer interrupt on the boot hart.
	Timer bool
	// TimerTicks is how many timer interrupts to wait for.
	TimerTicks int
	// Echo reads a line from the console and writes it back.
	Echo bool
}

func DefaultOptions() Options {
	return Options{Rounds: 100, TimerTicks: 5}
}

// Report is filled in by the program for whoever launched it.
type Report struct {
	Messages []gen.Message
	Main     joy.Counters
	Ticks    uint32
	Echoed   string
}

// Program is the user main plus the state shared by its workers.
type Program struct {
	rt     *joy.Runtime
	opts   Options
	report *Report

	fifo *gen.MessageFifo

	spin        lock.SpinMutex
	ticket      lock.TicketMutex
	spinTotal   int
	ticketTotal int
	ticks       uint32
}

type step struct {
	name string
	fn   func(h riscv.Hart) error
}

// New returns the program for rt.  The report is written by the boot hart
// and may be read once the machine has stopped.
func New(rt *joy.Runtime, opts Options, report *Report) *Program {
	if opts.Rounds <= 0 {
		opts.Rounds = DefaultOptions().Rounds
	}
	if opts.TimerTicks <= 0 {
		opts.TimerTicks = DefaultOptions().TimerTicks
	}
	return &Program{
		rt:     rt,
		opts:   opts,
		report: report,
		fifo:   gen.NewMessageFifo(4 * joy.MaxCPUs),
	}
}

// Main is the joy.MainFunc of the program.
func (p *Program) Main(h riscv.Hart) int {
	trust.Infof("# %16s : %d", "Harts", p.rt.CPUCount())
	trust.Infof("# %16s : %d", "Boot hart", h.HartID())
	p.spin.Init()
	p.ticket.Init()

	steps := []step{
		{"double", p.double},
		{"mutex", p.mutexes},
		{"destroy", p.destroy},
		{"fault", p.fault},
	}
	if p.opts.Timer {
		steps = append(steps, step{"timer", p.timer})
	}
	if p.opts.Echo {
		steps = append(steps, step{"echo", p.echo})
	}
	for _, s := range steps {
		if err := s.fn(h); err != nil {
			trust.Errorf("%s: %v", s.name, err)
			return 1
		}
		trust.Infof("%s: ok", s.name)
	}

	if p.report != nil {
		p.report.Messages = p.fifo.Drain()
		p.report.Main = joy.ReadCounters(h)
		p.report.Ticks = atomic.LoadUint32(&p.ticks)
	}
	return 0
}

// sample records what the calling worker measured.
func (p *Program) sample(h riscv.Hart, value int64) {
	c := joy.ReadCounters(h)
	sid, _ := p.rt.ThreadID(h)
	if !p.fifo.Push(gen.Message{
		CPU:          sid,
		Hart:         h.HartID(),
		Value:        value,
		Cycles:       c.Cycles,
		Instructions: c.Instructions,
		ICacheMisses: c.ICacheMisses,
		DCacheMisses: c.DCacheMisses,
	}) {
		trust.Warnf("report fifo full, dropping cpu %d", sid)
	}
}

// each runs entry on every secondary cpu, pinned, and joins them all.
func (p *Program) each(h riscv.Hart, entry joy.EntryFunc, args func(sid int) interface{}) ([]*joy.Thread, error) {
	var threads []*joy.Thread
	for sid := 1; sid < p.rt.CPUCount(); sid++ {
		t := joy.PinnedThread(sid)
		if err := p.rt.Create(h, t, entry, args(sid)); err != nil {
			return threads, err
		}
		threads = append(threads, t)
	}
	for _, t := range threads {
		if err := p.rt.Join(h, t); err != nil {
			return threads, err
		}
	}
	return threads, nil
}
