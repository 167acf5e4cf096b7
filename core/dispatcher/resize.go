// File: core/dispatcher/resize.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Checkpoint/restore resize capability. Dispatch logic is the same whether or
// not it is enabled; Dispatcher.Resizer hands it out only when Options.Resizable
// was set. Callers guarantee the pool is idle, not shutting down, and that no
// system-wide exclusive access is held; these are asserted, not returned.

package dispatcher

import (
	"github.com/momentics/gcdispatch/api"
)

type resizer struct {
	d *Dispatcher
}

var _ api.Resizable = resizer{}

func (r resizer) ExpandThreadPool(targetCount int) error { return r.d.expandThreadPool(targetCount) }
func (r resizer) ContractThreadPool(newThreadCount int)  { r.d.contractThreadPool(newThreadCount) }
func (r resizer) ReinitializeThreadPool(newPoolSize int) error {
	return r.d.reinitializeThreadPool(newPoolSize)
}

// PrepareForCheckpoint releases every thread beyond newThreadCount so the
// checkpoint image carries as few threads as possible.
func (r resizer) PrepareForCheckpoint(newThreadCount int) {
	r.d.contractThreadPool(newThreadCount)
}

// ReinitializeForRestore regrows the pool to threadCount, enlarging the slot
// table first when the restore environment offers more CPUs than it holds.
func (r resizer) ReinitializeForRestore(threadCount int) error {
	if threadCount > r.d.Capacity() {
		if err := r.d.reinitializeThreadPool(threadCount); err != nil {
			return err
		}
	}
	return r.d.expandThreadPool(threadCount)
}

// assertResizableLocked checks the resize preconditions. Caller holds d.mu.
func (d *Dispatcher) assertResizableLocked(op string) {
	switch {
	case d.inShutdown:
		d.fatalLocked(api.ErrDispatcherShutdown, "%s during shutdown", op)
	case !d.started:
		d.fatalLocked(api.ErrNotStarted, "%s before startup", op)
	case d.taskInFlight || d.resizing:
		d.fatalLocked(api.ErrTaskInFlight, "%s while the dispatcher is busy", op)
	case d.exclusive != nil && d.exclusive():
		d.fatalLocked(api.ErrProtocolViolation, "%s while exclusive access is held", op)
	}
}

// expandThreadPool starts threads until targetCount participants exist or
// the table is full. A target beyond the table fills it and then reports
// ErrCapacityExceeded.
func (d *Dispatcher) expandThreadPool(targetCount int) error {
	d.mu.Lock()
	d.assertResizableLocked("expand thread pool")
	// Startup waits on dispatchCond, which releases d.mu; resizing keeps Run out.
	d.resizing = true
	err := d.expandLocked(targetCount)
	d.resizing = false
	d.mu.Unlock()
	return err
}

func (d *Dispatcher) expandLocked(targetCount int) error {
	if targetCount <= d.threadCount {
		return nil
	}
	achievable := min(targetCount, len(d.slots))
	before := d.threadCount
	if err := d.internalStartupThreads(d.threadCount, achievable); err != nil {
		d.log.Printf("[dispatcher] expand %d -> %d stopped at %d: %v", before, targetCount, d.threadCount, err)
		return err
	}
	d.log.Printf("[dispatcher] expanded thread pool %d -> %d", before, d.threadCount)
	if achievable < targetCount {
		return api.NewError(api.ErrCodeResourceExhausted, "expand thread pool").
			Wrap(api.ErrCapacityExceeded).
			WithContext("target", targetCount).
			WithContext("capacity", len(d.slots))
	}
	return nil
}

// contractThreadPool stops the highest slots until newThreadCount remain and
// joins them. This is a partial stop: inShutdown stays false.
func (d *Dispatcher) contractThreadPool(newThreadCount int) {
	d.mu.Lock()
	d.assertResizableLocked("contract thread pool")
	if newThreadCount < 1 {
		d.fatalLocked(api.ErrInvalidArgument, "contract thread pool to %d", newThreadCount)
	}
	if newThreadCount >= d.threadCount {
		d.mu.Unlock()
		return
	}
	d.resizing = true
	before := d.threadCount
	threads := make([]api.Thread, 0, before-newThreadCount)
	for i := before - 1; i >= newThreadCount; i-- {
		d.slots[i].status = StatusDying
		if th := d.slots[i].thread; th != nil {
			threads = append(threads, th)
		}
	}
	d.workerCond.Broadcast()
	d.mu.Unlock()

	for _, th := range threads {
		th.Join()
	}

	d.mu.Lock()
	for i := newThreadCount; i < before; i++ {
		d.slots[i] = workerSlot{}
	}
	d.threadCount = newThreadCount
	d.resizing = false
	d.log.Printf("[dispatcher] contracted thread pool %d -> %d", before, newThreadCount)
	d.mu.Unlock()
}

// reinitializeThreadPool grows the slot table to newPoolSize, keeping every
// existing slot. A size within the current table is already satisfied.
func (d *Dispatcher) reinitializeThreadPool(newPoolSize int) error {
	d.mu.Lock()
	d.assertResizableLocked("reinitialize thread pool")
	err := d.reinitializeLocked(newPoolSize)
	d.mu.Unlock()
	return err
}

func (d *Dispatcher) reinitializeLocked(newPoolSize int) error {
	if newPoolSize < d.threadCount {
		return api.NewError(api.ErrCodeInvalidArgument, "pool size below live thread count").
			Wrap(api.ErrInvalidArgument).
			WithContext("pool_size", newPoolSize).
			WithContext("thread_count", d.threadCount)
	}
	if newPoolSize <= len(d.slots) {
		return nil
	}
	grown := make([]workerSlot, newPoolSize)
	copy(grown, d.slots)
	d.slots = grown
	d.log.Printf("[dispatcher] slot table reinitialized to %d", newPoolSize)
	return nil
}
