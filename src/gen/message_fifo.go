// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package gen

import (
	"camaraderie/src/lib/lock"
)

// MessageFifo is a bounded first in, first out queue that any hart can
// push to and pop from.  The storage is allocated once, up front.
type MessageFifo struct {
	mu    lock.TicketMutex
	items []Message
	head  int
	count int
}

// NewMessageFifo returns an empty fifo that holds at most capacity
// elements.
func NewMessageFifo(capacity int) *MessageFifo {
	if capacity <= 0 {
		capacity = 1
	}
	return &MessageFifo{items: make([]Message, capacity)}
}

// Push appends v.  It returns false, leaving the fifo alone, when the fifo
// is full.
func (f *MessageFifo) Push(v Message) bool {
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
func (f *MessageFifo) Pop() (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero Message
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
func (f *MessageFifo) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]Message, 0, f.count)
	var zero Message
	for f.count > 0 {
		result = append(result, f.items[f.head])
		f.items[f.head] = zero
		f.head = (f.head + 1) % len(f.items)
		f.count--
	}
	return result
}

func (f *MessageFifo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *MessageFifo) Cap() int {
	return len(f.items)
}
