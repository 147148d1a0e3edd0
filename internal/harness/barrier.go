package harness

import "sync"

// Barrier is a reusable rendezvous point for a fixed cohort. All parties
// must arrive before any proceeds. The same instance can be waited on again
// for the next phase, which the two-phase start/warmup protocol relies on.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	phase   int
}

// NewBarrier creates a barrier for the given number of parties.
func NewBarrier(parties int) *Barrier {
	if parties <= 0 {
		panic("barrier requires at least one party")
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all parties have called Wait for the current phase,
// then releases them together and advances to the next phase.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	phase := b.phase
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.phase++
		b.cond.Broadcast()
		return
	}
	for phase == b.phase {
		b.cond.Wait()
	}
}
