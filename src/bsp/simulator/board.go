// Package simulator is the board support for the simulated SoC in
// hardware/sim.
package simulator

import (
	"camaraderie/src/hardware/clint"
	"camaraderie/src/hardware/riscv"
	"camaraderie/src/hardware/sim"
	"camaraderie/src/joy"
	"camaraderie/src/lib/tohost"
	"camaraderie/src/lib/trust"
)

type fence struct{}

func (fence) Fence() {
	riscv.Fence()
}

// Board ties a joy runtime to one sim.Machine.
type Board struct {
	machine *sim.Machine
	driver  *clint.Driver
	exit    *tohost.Device
	boot    uint16

	// Quiet leaves the logger where it is instead of sending it to the
	// console.
	Quiet bool
}

// NewBoard makes the board for m.  boot is the raw id of the hart that will
// be logical cpu 0.
func NewBoard(m *sim.Machine, boot uint16) *Board {
	return &Board{
		machine: m,
		driver:  clint.NewDriver(m.CLINT(), fence{}),
		exit:    tohost.NewDevice(m.ToHost(), m.Exit),
		boot:    boot,
	}
}

// Machine is the SoC behind the board.
func (b *Board) Machine() *sim.Machine {
	return b.machine
}

// Init is run by the boot hart.  The boot hart becomes logical cpu 0 and
// the others follow in machine order.
func (b *Board) Init(rt *joy.Runtime) error {
	rt.SetConsole(b.machine.Putchar, b.machine.Getchar)
	if !b.Quiet {
		trust.SetOutput(rt.Console())
	}
	trust.SetExitHook(b.exit.Exit)

	if b.machine.Hart(b.boot) == nil {
		trust.Errorf("simulator: boot hart %d does not exist", b.boot)
		return joy.MakeError(joy.ErrorNotBootCPU, joy.NoID)
	}

	ids := b.machine.HartIDs()
	if len(ids) < rt.CPUCount() {
		trust.Errorf("simulator: machine has %d harts, runtime wants %d", len(ids), rt.CPUCount())
		return joy.MakeError(joy.ErrorBadMapping, joy.NoID)
	}
	if len(ids) > rt.CPUCount() {
		trust.Warnf("simulator: machine has %d harts, runtime takes %d", len(ids), rt.CPUCount())
	}
	if err := rt.MapHart(b.boot, 0); err != nil {
		return err
	}
	sid := uint16(1)
	for _, hid := range ids {
		if hid == b.boot || int(sid) >= rt.CPUCount() {
			continue
		}
		if err := rt.MapHart(hid, sid); err != nil {
			return err
		}
		sid++
	}

	b.driver.Init(int(b.machine.MaxHartID()) + 1)
	trust.Debugf("simulator: %d harts mapped, clint covers %d", rt.MappedHarts(), b.driver.Cores())
	return nil
}

// InitHart selects the performance events of each hart at reset.
func (b *Board) InitHart(h riscv.Hart) {
	joy.SelectEvents(h)
}

func (b *Board) Driver() *clint.Driver {
	return b.driver
}

// Exit writes tohost and halts the machine.  Called from a hart it does not
// return.
func (b *Board) Exit(status int) {
	b.exit.Exit(status)
}

// Start is the reset vector of every simulated hart.
func Start(rt *joy.Runtime) func(h *sim.Hart) {
	return func(h *sim.Hart) {
		rt.Start(h)
	}
}
