package upbeat

import (
	"math/bits"

	"camaraderie/src/lib/trust"
)

type BitSet struct {
	size uint32
	data []uint64
}

type BitIndex uint32

//bitsets have to be multiples of 64.  the storage provided must have at
//least size/64 words; pass nil to have it allocated.
func NewBitSet(size uint32, storage []uint64) *BitSet {
	mask := ^(uint32(0x3f))
	if size&mask != size || size == 0 {
		trust.Errorf("your bitset size is not a multiple of 64: %d", size)
		return nil
	}
	words := int(size >> 6)
	if storage == nil {
		storage = make([]uint64, words)
	}
	if len(storage) < words {
		trust.Errorf("bitset storage too small: %d words for %d bits", len(storage), size)
		return nil
	}
	result := &BitSet{
		data: storage[:words],
		size: size,
	}
	result.ClearAll()
	return result
}

func (b *BitSet) Size() uint32 {
	return b.size
}

func (b *BitSet) On(bit BitIndex) bool {
	if uint32(bit) >= b.size {
		return false
	}
	mask := uint64(1) << (bit % 64) //which bit in the word
	return b.data[bit>>6]&mask != 0
}

func (b *BitSet) Set(bit BitIndex) {
	if uint32(bit) >= b.size {
		return
	}
	b.data[bit>>6] |= uint64(1) << (bit % 64)
}

func (b *BitSet) Clear(bit BitIndex) {
	if uint32(bit) >= b.size {
		return
	}
	b.data[bit>>6] &^= uint64(1) << (bit % 64)
}

func (b *BitSet) ClearAll() {
	for i := range b.data {
		b.data[i] = 0
	}
}

// Count is the number of bits that are on.
func (b *BitSet) Count() int {
	n := 0
	for _, w := range b.data {
		n += bits.OnesCount64(w)
	}
	return n
}
