// Package tohost is the verification exit of the test harness.  The program
// reports its result by writing a single word that the host side watches;
// after that the machine is stopped and nothing else runs.
package tohost

import (
	"camaraderie/src/hardware/volatile"
)

const (
	VerifSuccess = 0x1
	VerifFailure = 0xbad0bad1
)

// Device is one tohost word plus the routine that stops the machine once it
// has been written.
type Device struct {
	word *volatile.Register64
	halt func(status int)
}

// NewDevice wraps the result word.  A nil halt leaves the machine running
// after Exit, which is what unit tests want.
func NewDevice(word *volatile.Register64, halt func(status int)) *Device {
	return &Device{word: word, halt: halt}
}

// Exit writes VerifSuccess when status is zero, VerifFailure otherwise, and
// stops the machine.  On real hardware it does not return.
func (d *Device) Exit(status int) {
	if status == 0 {
		d.word.Set(VerifSuccess)
	} else {
		d.word.Set(VerifFailure)
	}
	if d.halt != nil {
		d.halt(status)
	}
}

// Word is the last value written.
func (d *Device) Word() uint64 {
	return d.word.Get()
}

// Passed interprets a tohost word.
func Passed(word uint64) bool {
	return word == VerifSuccess
}
