// Package volatile provides single-word register types for memory-mapped
// peripherals.  Every access is exactly one aligned load or store of the
// register's width, so a RegisterMap struct built from these types can be
// laid over device memory (or over ordinary memory in a simulation).
package volatile

import "sync/atomic"

// Register32 is a 32bit memory-mapped register.
type Register32 struct {
	Reg uint32
}

// Get returns the value in the register.
func (r *Register32) Get() uint32 {
	return atomic.LoadUint32(&r.Reg)
}

// Set stores value in the register.
func (r *Register32) Set(value uint32) {
	atomic.StoreUint32(&r.Reg, value)
}

// SetBits reads the register, sets the bits in mask and writes it back.
// This is not an atomic read-modify-write from the point of view of
// another bus master.
func (r *Register32) SetBits(mask uint32) {
	r.Set(r.Get() | mask)
}

// ClearBits reads the register, clears the bits in mask and writes it back.
func (r *Register32) ClearBits(mask uint32) {
	r.Set(r.Get() &^ mask)
}

// HasBits is true if any of the bits in mask are set.
func (r *Register32) HasBits(mask uint32) bool {
	return r.Get()&mask != 0
}

// ReplaceBits replaces the field selected by mask (after shifting it by pos)
// with value.
func (r *Register32) ReplaceBits(value uint32, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// Register64 is a 64bit memory-mapped register.  It must be 8 byte aligned.
type Register64 struct {
	Reg uint64
}

func (r *Register64) Get() uint64 {
	return atomic.LoadUint64(&r.Reg)
}

func (r *Register64) Set(value uint64) {
	atomic.StoreUint64(&r.Reg, value)
}

// Add is only meaningful for device models that own the register (like a
// free running counter); drivers should use Get/Set.
func (r *Register64) Add(delta uint64) uint64 {
	return atomic.AddUint64(&r.Reg, delta)
}

func (r *Register64) SetBits(mask uint64) {
	r.Set(r.Get() | mask)
}

func (r *Register64) ClearBits(mask uint64) {
	r.Set(r.Get() &^ mask)
}

func (r *Register64) HasBits(mask uint64) bool {
	return r.Get()&mask != 0
}
