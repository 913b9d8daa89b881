package lock

import (
	"sync"
	"testing"
	"time"

	"camaraderie/src/hardware/riscv"
)

type locker interface {
	Lock()
	Unlock()
	TryLock() bool
}

func hammer(t *testing.T, l locker) {
	t.Helper()
	const workers = 8
	const rounds = 200
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				l.Lock()
				v := counter
				counter = v + 1
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	if counter != workers*rounds {
		t.Errorf("lost updates: counter is %d, expected %d", counter, workers*rounds)
	}
}

func TestSpinMutualExclusion(t *testing.T) {
	var m SpinMutex
	m.Init()
	hammer(t, &m)
	if m.Locked() {
		t.Errorf("lock still held after all workers finished")
	}
}

func TestTicketMutualExclusion(t *testing.T) {
	var m TicketMutex
	m.Init()
	hammer(t, &m)
	if m.Waiting() != 0 {
		t.Errorf("expected no outstanding tickets, got %d", m.Waiting())
	}
}

func TestTryLock(t *testing.T) {
	for name, l := range map[string]locker{"spin": &SpinMutex{}, "ticket": &TicketMutex{}} {
		if !l.TryLock() {
			t.Fatalf("%s: trylock on a free mutex failed", name)
		}
		if l.TryLock() {
			t.Errorf("%s: trylock succeeded on a held mutex", name)
		}
		l.Unlock()
		if !l.TryLock() {
			t.Errorf("%s: trylock failed after unlock", name)
		}
		l.Unlock()
	}
}

func TestTicketTryLockDoesNotQueue(t *testing.T) {
	var m TicketMutex
	m.Lock()
	if m.TryLock() {
		t.Fatalf("trylock should fail while held")
	}
	if m.Waiting() != 1 {
		t.Errorf("failed trylock took a ticket: waiting=%d", m.Waiting())
	}
	m.Unlock()
}

func TestTicketFIFO(t *testing.T) {
	var m TicketMutex
	m.Lock()
	order := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			m.Lock()
			order <- i
			m.Unlock()
		}(i)
		// wait until goroutine i holds its ticket before starting the next
		deadline := time.Now().Add(5 * time.Second)
		for m.Waiting() != uint32(i+2) {
			if time.Now().After(deadline) {
				t.Fatalf("waiter %d never queued", i)
			}
			time.Sleep(time.Millisecond)
		}
	}
	m.Unlock()
	for i := 0; i < 3; i++ {
		if got := <-order; got != i {
			t.Errorf("position %d: got waiter %d", i, got)
		}
	}
}

func TestDestroyReleases(t *testing.T) {
	var s SpinMutex
	s.Lock()
	s.Destroy()
	if !s.TryLock() {
		t.Errorf("spin mutex not free after destroy")
	}
	var k TicketMutex
	k.Lock()
	k.Destroy()
	if !k.TryLock() {
		t.Errorf("ticket mutex not free after destroy")
	}
}

func TestFenceAroundTransitions(t *testing.T) {
	for name, l := range map[string]locker{"spin": &SpinMutex{}, "ticket": &TicketMutex{}} {
		before := riscv.Fences()
		l.Lock()
		if n := riscv.Fences() - before; n != 2 {
			t.Errorf("%s: lock issued %d fences, expected 2", name, n)
		}
		before = riscv.Fences()
		l.Unlock()
		if n := riscv.Fences() - before; n != 2 {
			t.Errorf("%s: unlock issued %d fences, expected 2", name, n)
		}
	}
}
