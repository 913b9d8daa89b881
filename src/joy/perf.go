package joy

import (
	"camaraderie/src/hardware/riscv"
)

// Counters is one sample of the performance monitors of a hart.
type Counters struct {
	Cycles       uint64
	Instructions uint64
	ICacheMisses uint64
	DCacheMisses uint64
}

// SelectEvents points mhpmcounter3 at instruction cache misses and
// mhpmcounter4 at data cache misses.
func SelectEvents(h riscv.Hart) {
	h.WriteCSR(riscv.MHPMEvent3, riscv.EventICacheMiss)
	h.WriteCSR(riscv.MHPMEvent4, riscv.EventDCacheMiss)
}

// ResetCounters zeroes the counters of the calling hart; it is done before
// main and before every thread entry.
func ResetCounters(h riscv.Hart) {
	h.WriteCSR(riscv.MCycle, 0)
	h.WriteCSR(riscv.MInstret, 0)
	h.WriteCSR(riscv.MHPMCounter3, 0)
	h.WriteCSR(riscv.MHPMCounter4, 0)
}

func ReadCounters(h riscv.Hart) Counters {
	return Counters{
		Cycles:       h.ReadCSR(riscv.MCycle),
		Instructions: h.ReadCSR(riscv.MInstret),
		ICacheMisses: h.ReadCSR(riscv.MHPMCounter3),
		DCacheMisses: h.ReadCSR(riscv.MHPMCounter4),
	}
}

// IPC is instructions per cycle, zero before the first cycle.
func (c Counters) IPC() float64 {
	if c.Cycles == 0 {
		return 0
	}
	return float64(c.Instructions) / float64(c.Cycles)
}
