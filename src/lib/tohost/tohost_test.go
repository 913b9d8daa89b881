package tohost

import (
	"testing"

	"camaraderie/src/hardware/volatile"
)

func TestExitWritesWord(t *testing.T) {
	var word volatile.Register64
	halted := -1
	dev := NewDevice(&word, func(status int) { halted = status })

	if Passed(dev.Word()) {
		t.Errorf("fresh word must not read as a pass")
	}
	dev.Exit(0)
	if !Passed(word.Get()) || halted != 0 {
		t.Errorf("exit(0): word=%#x halted=%d", word.Get(), halted)
	}
	dev.Exit(7)
	if dev.Word() != VerifFailure || halted != 7 {
		t.Errorf("exit(7): word=%#x halted=%d", dev.Word(), halted)
	}
}

func TestExitWithoutHalt(t *testing.T) {
	var word volatile.Register64
	NewDevice(&word, nil).Exit(1)
	if word.Get() != VerifFailure {
		t.Errorf("expected failure word, got %#x", word.Get())
	}
}
