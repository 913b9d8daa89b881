package gen

//go:generate genny -in=fifo.go -out=message_fifo.go gen "Generic=Message"

import (
	"camaraderie/src/lib/lock"
)

// GenericFifo is a bounded first in, first out queue that any hart can
// push to and pop from.  The storage is allocated once, up front.
type GenericFifo struct {
	mu    lock.TicketMutex
	items []Generic
	head  int
	count int
}

// NewGenericFifo returns an empty fifo that holds at most capacity
// elements.
func NewGenericFifo(capacity int) *GenericFifo {
	if capacity <= 0 {
		capacity = 1
	}
	return &GenericFifo{items: make([]Generic, capacity)}
}

// Push appends v.  It returns false, leaving the fifo alone, when the fifo
// is full.
func (f *GenericFifo) Push(v Generic) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == len(f.items) {
		return false
	}
	f.items[(f.head+f.count)%len(f.items)] = v
	f.count++
	return true
}

// Pop removes the oldest element.  The second result is false if the
// fifo was empty.
func (f *GenericFifo) Pop() (Generic, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero Generic
	if f.count == 0 {
		return zero, false
	}
	v := f.items[f.head]
	f.items[f.head] = zero
	f.head = (f.head + 1) % len(f.items)
	f.count--
	return v, true
}

// Drain pops everything, oldest first.
func (f *GenericFifo) Drain() []Generic {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]Generic, 0, f.count)
	var zero Generic
	for f.count > 0 {
		result = append(result, f.items[f.head])
		f.items[f.head] = zero
		f.head = (f.head + 1) % len(f.items)
		f.count--
	}
	return result
}

func (f *GenericFifo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *GenericFifo) Cap() int {
	return len(f.items)
}
