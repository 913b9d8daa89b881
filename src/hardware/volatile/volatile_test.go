package volatile

import "testing"

func TestRegister32Bits(t *testing.T) {
	var r Register32
	r.Set(0xf0)
	r.SetBits(0x0f)
	if r.Get() != 0xff {
		t.Errorf("expected 0xff after SetBits, got %x", r.Get())
	}
	r.ClearBits(0x11)
	if r.Get() != 0xee {
		t.Errorf("expected 0xee after ClearBits, got %x", r.Get())
	}
	if !r.HasBits(0x02) || r.HasBits(0x01) {
		t.Errorf("HasBits wrong for %x", r.Get())
	}
	r.ReplaceBits(0x3, 0x3, 4)
	if r.Get() != 0xfe {
		t.Errorf("expected 0xfe after ReplaceBits, got %x", r.Get())
	}
}

func TestRegister64Add(t *testing.T) {
	var r Register64
	r.Set(^uint64(0) - 1)
	if r.Add(1) != ^uint64(0) {
		t.Errorf("Add did not return the new value")
	}
	r.ClearBits(0xff)
	if r.HasBits(0xff) {
		t.Errorf("ClearBits failed: %x", r.Get())
	}
}
