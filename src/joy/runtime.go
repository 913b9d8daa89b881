package joy

import (
	"sync/atomic"

	"camaraderie/src/hardware/clint"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/lib/upbeat"
)

// BoardSupport is what the runtime needs from the platform it runs on.
type BoardSupport interface {
	// Init runs once on the boot hart before any other hart is signalled.
	// It installs the console, selects the performance events, fills the
	// id tables with MapHart and initializes the CLINT.
	Init(rt *Runtime) error
	// InitHart is run by every hart, first thing after reset.
	InitHart(h riscv.Hart)
	// Driver is the CLINT endpoint that every descriptor signals through.
	Driver() *clint.Driver
	// Exit records the result in the verification word and stops the
	// machine.
	Exit(status int)
}

// MainFunc is the user program run by the boot hart as logical cpu 0.  Its
// return value is the exit status.
type MainFunc func(h riscv.Hart) int

// Runtime is the one aggregate of shared state: the descriptor arena, the id
// tables and the trap tables.  It is set up by the boot hart and lives for
// the whole program.
type Runtime struct {
	config Config
	board  BoardSupport
	main   MainFunc

	cpus    [MaxCPUs]Descriptor
	hid2sid [MaxHartID]uint16
	sid2hid [MaxCPUs]uint16
	mapped  *upbeat.BitSet

	traps *trapTable

	initializers []func()
	endOfMain    []func(status int)

	console Console
	booted  uint32
}

// New makes a runtime that is ready for every hart to call Start.  An
// unusable config is replaced by DefaultConfig.
func New(config Config, board BoardSupport, main MainFunc) *Runtime {
	if !config.valid() {
		config = DefaultConfig()
	}
	rt := &Runtime{
		config: config,
		board:  board,
		main:   main,
		mapped: upbeat.NewBitSet(MaxHartID, nil),
	}
	rt.traps = newTrapTable(rt)
	rt.clearTables()
	return rt
}

func (rt *Runtime) Config() Config {
	return rt.config
}

// OnInit adds a function run by the boot hart before the board is
// initialized.  Register before Start.
func (rt *Runtime) OnInit(fn func()) {
	rt.initializers = append(rt.initializers, fn)
}

// OnEndOfMain adds a function run with main's status after main returns
// and before the exit.  Register before Start.
func (rt *Runtime) OnEndOfMain(fn func(status int)) {
	rt.endOfMain = append(rt.endOfMain, fn)
}

// Booted reports if the boot hart has finished publishing the directory.
func (rt *Runtime) Booted() bool {
	return atomic.LoadUint32(&rt.booted) != 0
}

func (rt *Runtime) exit(status int) {
	rt.board.Exit(status)
}
