// Package sim is a software model of the harness SoC: a handful of harts,
// each one a goroutine, sharing a CLINT, a tohost word and a console.  It is
// good enough to run the runtime and its tests on a host machine.
package sim

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"camaraderie/src/hardware/clint"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/hardware/volatile"
	"camaraderie/src/lib/trust"
)

// NoStatus is what Run returns when no hart ever asked to halt.
const NoStatus = -1

// WatchdogStatus is the status used when Config.Timeout expires.
const WatchdogStatus = 0x57

type Config struct {
	// Harts is the number of cores.
	Harts int
	// HartIDs are the raw ids of the cores, in order.  Empty means 0..Harts-1.
	HartIDs []uint16
	// Stalled lists raw ids of cores that never start executing.
	Stalled []uint16
	// CycleTime is how long one cycle of Delay takes.
	CycleTime time.Duration
	// WFIPoll is the longest a wfi sleeps before it returns anyway.
	WFIPoll time.Duration
	// MTimeTick is the period of the MTIME counter.
	MTimeTick time.Duration
	// Timeout halts the machine with WatchdogStatus when it runs too long.
	// Zero means no limit.
	Timeout time.Duration
	// Output receives the console characters.  Nil discards them.
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{
		Harts:     4,
		CycleTime: 10 * time.Nanosecond,
		WFIPoll:   20 * time.Microsecond,
		MTimeTick: 10 * time.Microsecond,
	}
}

// Machine is one simulated SoC.  It can be run once.
type Machine struct {
	config Config
	harts  []*Hart
	byID   map[uint16]*Hart

	clint  clint.RegisterMap
	toHost volatile.Register64

	external []uint32

	halted uint32
	status int64
	done   chan struct{}
	once   sync.Once

	outLock sync.Mutex
	input   chan byte
}

// NewMachine builds the machine described by config, filling unset fields
// from DefaultConfig.
func NewMachine(config Config) *Machine {
	def := DefaultConfig()
	if config.Harts <= 0 {
		config.Harts = def.Harts
	}
	if config.CycleTime <= 0 {
		config.CycleTime = def.CycleTime
	}
	if config.WFIPoll <= 0 {
		config.WFIPoll = def.WFIPoll
	}
	if config.MTimeTick <= 0 {
		config.MTimeTick = def.MTimeTick
	}
	if len(config.HartIDs) != config.Harts {
		if len(config.HartIDs) != 0 {
			trust.Warnf("sim: %d hart ids given for %d harts, using 0..%d",
				len(config.HartIDs), config.Harts, config.Harts-1)
		}
		config.HartIDs = make([]uint16, config.Harts)
		for i := range config.HartIDs {
			config.HartIDs[i] = uint16(i)
		}
	}
	m := &Machine{
		config: config,
		byID:   make(map[uint16]*Hart),
		status: NoStatus,
		done:   make(chan struct{}),
		input:  make(chan byte, 256),
	}
	maxID := 0
	for _, id := range config.HartIDs {
		if int(id) > maxID {
			maxID = int(id)
		}
	}
	m.external = make([]uint32, maxID+1)
	for _, id := range config.HartIDs {
		h := newHart(m, id)
		m.harts = append(m.harts, h)
		m.byID[id] = h
	}
	return m
}

func (m *Machine) Config() Config {
	return m.config
}

// HartIDs are the raw ids of the cores in the order they were built.
func (m *Machine) HartIDs() []uint16 {
	return append([]uint16(nil), m.config.HartIDs...)
}

// MaxHartID is the largest raw id on the machine.
func (m *Machine) MaxHartID() uint16 {
	return uint16(len(m.external) - 1)
}

func (m *Machine) Hart(id uint16) *Hart {
	return m.byID[id]
}

// CLINT is the register file of the interruptor.
func (m *Machine) CLINT() *clint.RegisterMap {
	return &m.clint
}

// ToHost is the verification word.
func (m *Machine) ToHost() *volatile.Register64 {
	return &m.toHost
}

func (m *Machine) stalled(id uint16) bool {
	for _, s := range m.config.Stalled {
		if s == id {
			return true
		}
	}
	return false
}

// Run starts every core that is not stalled at start and waits until all of
// them have stopped.  It returns the status given to Halt.
// Only one machine may run at a time: cores spinning on a lock are stopped
// through riscv.SetDelayCheck, which is process wide.
func (m *Machine) Run(start func(h *Hart)) int {
	riscv.SetDelayCheck(m.stopIfHalted)
	defer riscv.SetDelayCheck(nil)
	var wg sync.WaitGroup
	for _, h := range m.harts {
		if m.stalled(h.id) {
			trust.Debugf("sim: hart %d is stalled", h.id)
			continue
		}
		wg.Add(1)
		go func(h *Hart) {
			defer wg.Done()
			h.reset()
			start(h)
		}(h)
	}
	go m.tick()
	if m.config.Timeout > 0 {
		go m.watchdog(m.config.Timeout)
	}
	wg.Wait()
	m.once.Do(func() { close(m.done) })
	return m.Status()
}

// stopIfHalted ends the calling core once the machine has halted.
func (m *Machine) stopIfHalted() {
	if m.Halted() {
		runtime.Goexit()
	}
}

func (m *Machine) tick() {
	t := time.NewTicker(m.config.MTimeTick)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.clint.MTime.Add(1)
		}
	}
}

func (m *Machine) watchdog(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-m.done:
	case <-t.C:
		trust.Errorf("sim: watchdog expired after %v", d)
		m.Halt(WatchdogStatus)
	}
}

// Halt stops the machine.  The first status wins.  Cores notice at their
// next delay, wfi or park.
func (m *Machine) Halt(status int) {
	m.once.Do(func() {
		atomic.StoreInt64(&m.status, int64(status))
		atomic.StoreUint32(&m.halted, 1)
		close(m.done)
	})
}

// Exit is Halt for code running on a core: the calling goroutine stops too.
func (m *Machine) Exit(status int) {
	m.Halt(status)
	runtime.Goexit()
}

func (m *Machine) Halted() bool {
	return atomic.LoadUint32(&m.halted) != 0
}

// Status is the halt status, NoStatus while running.
func (m *Machine) Status() int {
	return int(atomic.LoadInt64(&m.status))
}

// RaiseExternal asserts the external interrupt line of core id.
func (m *Machine) RaiseExternal(id uint16) {
	if int(id) < len(m.external) {
		atomic.StoreUint32(&m.external[id], 1)
	}
}

// ClearExternal drops the external interrupt line of core id.
func (m *Machine) ClearExternal(id uint16) {
	if int(id) < len(m.external) {
		atomic.StoreUint32(&m.external[id], 0)
	}
}

func (m *Machine) externalPending(id uint16) bool {
	return atomic.LoadUint32(&m.external[id]) != 0
}

// Putchar writes one console character.
func (m *Machine) Putchar(c byte) {
	if m.config.Output == nil {
		return
	}
	m.outLock.Lock()
	m.config.Output.Write([]byte{c})
	m.outLock.Unlock()
}

// Getchar returns the next console input character if there is one.
func (m *Machine) Getchar() (byte, bool) {
	select {
	case c := <-m.input:
		return c, true
	default:
		return 0, false
	}
}

// Feed queues console input.  Characters that do not fit are dropped.
func (m *Machine) Feed(p []byte) int {
	n := 0
	for _, c := range p {
		select {
		case m.input <- c:
			n++
		default:
			return n
		}
	}
	return n
}
