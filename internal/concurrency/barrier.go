// File: internal/concurrency/barrier.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TaskBarrier is the synchronize primitive shared by the participants of one
// dispatched task. A single barrier serves the dispatcher because only one
// task is ever in flight.

package concurrency

import (
	"fmt"
	"sync"

	"github.com/momentics/gcdispatch/api"
)

// TaskBarrier implements api.Barrier on a mutex and condition variable.
// Every round bumps generation so waiters from an earlier round never
// mistake a later broadcast for their own.
type TaskBarrier struct {
	mu           sync.Mutex
	cond         *sync.Cond
	participants int
	arrived      int
	generation   uint64
	released     uint64 // last generation let go by Release
	id           string // id of the round in progress
}

var _ api.Barrier = (*TaskBarrier)(nil)

// NewTaskBarrier creates a barrier for a single participant.
func NewTaskBarrier() *TaskBarrier {
	b := &TaskBarrier{participants: 1}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Reset sizes the barrier for the next task. Nobody may be waiting on it.
func (b *TaskBarrier) Reset(participants int) {
	if participants < 1 {
		panic(fmt.Sprintf("barrier: participants must be >= 1, got %d", participants))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.arrived != 0 {
		panic(fmt.Sprintf("barrier: reset with %d participants still waiting", b.arrived))
	}
	b.participants = participants
	b.released = b.generation
	b.id = ""
}

// Participants returns the size the barrier was last reset to.
func (b *TaskBarrier) Participants() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants
}

// arrive registers the caller and blocks until the round is full.
// It reports the round's generation and whether the caller arrived last.
// Caller holds b.mu and releases it with defer.
func (b *TaskBarrier) arrive(id string) (gen uint64, last bool) {
	if b.arrived == 0 {
		b.id = id
	} else if b.id != id {
		panic(fmt.Errorf("%w: waiting on %q, arrived at %q", ErrBarrierMismatch, b.id, id))
	}
	gen = b.generation
	b.arrived++
	if b.arrived == b.participants {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return gen + 1, true
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return gen + 1, false
}

// Synchronize blocks until every participant reached id.
func (b *TaskBarrier) Synchronize(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen, _ := b.arrive(id)
	// A plain round needs no Release.
	if b.released < gen {
		b.released = gen
	}
}

// SynchronizeAndReleaseMain lets worker 0 through once everyone arrived; the
// rest wait for Release.
func (b *TaskBarrier) SynchronizeAndReleaseMain(env *api.Env, id string) bool {
	return b.synchronizeAndRelease(id, func(bool) bool { return env.IsMain() })
}

// SynchronizeAndReleaseSingle lets the last participant to arrive through;
// the rest wait for Release.
func (b *TaskBarrier) SynchronizeAndReleaseSingle(id string) bool {
	return b.synchronizeAndRelease(id, func(last bool) bool { return last })
}

func (b *TaskBarrier) synchronizeAndRelease(id string, chosen func(last bool) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen, last := b.arrive(id)
	if chosen(last) {
		return true
	}
	for b.released < gen {
		b.cond.Wait()
	}
	return false
}

// Release lets go the participants held by the latest release-style round.
func (b *TaskBarrier) Release() {
	b.mu.Lock()
	b.released = b.generation
	b.cond.Broadcast()
	b.mu.Unlock()
}
