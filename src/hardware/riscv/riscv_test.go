package riscv

import "testing"

func TestCauseString(t *testing.T) {
	cases := map[uintptr]string{
		MCauseMSoftwareInterrupt:  "machine software interrupt",
		MCauseMTimerInterrupt:     "machine timer interrupt",
		MCauseLoadAddrMisaligned:  "load address misaligned",
		MCauseStoreAccessFault:    "store access fault",
		MCauseInterrupt | 42:      "unknown interrupt",
		uintptr(42):               "unknown exception",
	}
	for cause, want := range cases {
		if got := CauseString(cause); got != want {
			t.Errorf("cause %#x: got %q, expected %q", cause, got, want)
		}
	}
}

func TestIsInterrupt(t *testing.T) {
	if !(&TrapFrame{Cause: MCauseMExternalInterrupt}).IsInterrupt() {
		t.Errorf("external interrupt not seen as an interrupt")
	}
	if (&TrapFrame{Cause: MCauseInstrIllegal}).IsInterrupt() {
		t.Errorf("illegal instruction seen as an interrupt")
	}
}
