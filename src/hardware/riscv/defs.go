package riscv

// Interrupt is the topmost bit of mcause: set for interrupts, clear for
// synchronous exceptions.  The width follows XLEN.
const MCauseInterrupt = ^(^uintptr(0) >> 1)

// Interrupt causes (mcause with the interrupt bit set).
const (
	MCauseUSoftwareInterrupt = MCauseInterrupt | 0
	MCauseSSoftwareInterrupt = MCauseInterrupt | 1
	MCauseMSoftwareInterrupt = MCauseInterrupt | 3
	MCauseUTimerInterrupt    = MCauseInterrupt | 4
	MCauseSTimerInterrupt    = MCauseInterrupt | 5
	MCauseMTimerInterrupt    = MCauseInterrupt | 7
	MCauseUExternalInterrupt = MCauseInterrupt | 8
	MCauseSExternalInterrupt = MCauseInterrupt | 9
	MCauseMExternalInterrupt = MCauseInterrupt | 11
)

// Exception causes.
const (
	MCauseInstrAddrMisaligned uintptr = 0
	MCauseInstrAccessFault    uintptr = 1
	MCauseInstrIllegal        uintptr = 2
	MCauseBreakpoint          uintptr = 3
	MCauseLoadAddrMisaligned  uintptr = 4
	MCauseLoadAccessFault     uintptr = 5
	MCauseStoreAddrMisaligned uintptr = 6
	MCauseStoreAccessFault    uintptr = 7
	MCauseEnvCallFromU        uintptr = 8
	MCauseEnvCallFromS        uintptr = 9
	MCauseEnvCallFromM        uintptr = 11
	MCauseInstrPageFault      uintptr = 12
	MCauseLoadPageFault       uintptr = 13
	MCauseStorePageFault      uintptr = 15
)

// MSTATUS bits.
const (
	MStatusMIE  = 1 << 3
	MStatusMPIE = 1 << 7
)

// MIP and MIE share bit positions.
const (
	MIP_MSIP = 1 << 3
	MIP_MTIP = 1 << 7
	MIP_MEIP = 1 << 11

	MIE_MSIE = MIP_MSIP
	MIE_MTIE = MIP_MTIP
	MIE_MEIE = MIP_MEIP
)

// CSR is the 12bit address of a control and status register.
type CSR uint16

const (
	MStatus      CSR = 0x300
	MIE          CSR = 0x304
	MTVec        CSR = 0x305
	MEPC         CSR = 0x341
	MCause       CSR = 0x342
	MTVal        CSR = 0x343
	MIP          CSR = 0x344
	MHPMEvent3   CSR = 0x323
	MHPMEvent4   CSR = 0x324
	MCycle       CSR = 0xb00
	MInstret     CSR = 0xb02
	MHPMCounter3 CSR = 0xb03
	MHPMCounter4 CSR = 0xb04
	MHartID      CSR = 0xf14
)

// Event selectors for the hardware performance monitors of the harness cores.
const (
	EventICacheMiss = 1
	EventDCacheMiss = 2
)

// InstructionBytes is how far the saved pc moves to skip a faulting
// instruction.  Compressed instructions are not distinguished.
const InstructionBytes = 4

// CauseString returns a short human readable name for an mcause value.
func CauseString(cause uintptr) string {
	switch cause {
	case MCauseMSoftwareInterrupt:
		return "machine software interrupt"
	case MCauseMTimerInterrupt:
		return "machine timer interrupt"
	case MCauseMExternalInterrupt:
		return "machine external interrupt"
	case MCauseSSoftwareInterrupt, MCauseUSoftwareInterrupt:
		return "software interrupt (lower privilege)"
	case MCauseSTimerInterrupt, MCauseUTimerInterrupt:
		return "timer interrupt (lower privilege)"
	case MCauseSExternalInterrupt, MCauseUExternalInterrupt:
		return "external interrupt (lower privilege)"
	case MCauseInstrAddrMisaligned:
		return "instruction address misaligned"
	case MCauseInstrAccessFault:
		return "instruction access fault"
	case MCauseInstrIllegal:
		return "illegal instruction"
	case MCauseBreakpoint:
		return "breakpoint"
	case MCauseLoadAddrMisaligned:
		return "load address misaligned"
	case MCauseLoadAccessFault:
		return "load access fault"
	case MCauseStoreAddrMisaligned:
		return "store address misaligned"
	case MCauseStoreAccessFault:
		return "store access fault"
	case MCauseEnvCallFromU, MCauseEnvCallFromS, MCauseEnvCallFromM:
		return "environment call"
	case MCauseInstrPageFault, MCauseLoadPageFault, MCauseStorePageFault:
		return "page fault"
	}
	if cause&MCauseInterrupt != 0 {
		return "unknown interrupt"
	}
	return "unknown exception"
}
