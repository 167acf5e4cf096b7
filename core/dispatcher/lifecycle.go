// File: core/dispatcher/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool startup, the worker thread loop and terminal shutdown.

package dispatcher

import (
	"fmt"

	"github.com/momentics/gcdispatch/api"
)

// StartUpThreads creates the configured worker threads. On a thread creation
// failure the threads already started stay in the pool and are counted; the
// caller decides whether to continue with fewer threads or shut down.
func (d *Dispatcher) StartUpThreads() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inShutdown {
		return api.NewError(api.ErrCodeIllegalState, "start up threads").Wrap(api.ErrDispatcherShutdown)
	}
	if d.started {
		return api.NewError(api.ErrCodeIllegalState, "start up threads").Wrap(api.ErrAlreadyStarted)
	}
	d.started = true

	if !d.separateMain {
		// Slot 0 belongs to whichever thread calls Run.
		d.slots[0].status = StatusWaiting
		d.threadCount = 1
	}
	err := d.internalStartupThreads(d.firstWorkerSlot(), d.desiredThreadCount)
	if err != nil {
		d.log.Printf("[dispatcher] startup incomplete: %d of %d threads: %v", d.threadCount, d.desiredThreadCount, err)
		return err
	}
	d.log.Printf("[dispatcher] started %d threads (capacity %d, separate main %t)", d.threadCount, len(d.slots), d.separateMain)
	return nil
}

// internalStartupThreads forks one thread per slot in [from, to) and waits for
// each to report Waiting before forking the next. Caller holds d.mu.
func (d *Dispatcher) internalStartupThreads(from, to int) error {
	for slot := from; slot < to; slot++ {
		d.slots[slot] = workerSlot{status: StatusInactive}
		th, err := d.factory.Start(d.threadAttributes(slot), d.workerEntry(slot))
		if err != nil {
			return api.NewError(api.ErrCodeResourceExhausted, "worker thread creation failed").
				Wrap(fmt.Errorf("%w: %w", api.ErrThreadStartFailed, err)).
				WithContext("slot", slot).
				WithContext("started", d.threadCount)
		}
		d.slots[slot].thread = th
		for d.slots[slot].status == StatusInactive {
			d.dispatchCond.Wait()
		}
		d.threadCount = slot + 1
	}
	return nil
}

func (d *Dispatcher) workerEntry(slot int) func() {
	return func() { d.workerEntryPoint(slot) }
}

// workerEntryPoint is the body of every pooled thread.
func (d *Dispatcher) workerEntryPoint(slot int) {
	d.mu.Lock()
	d.setThreadInitializationComplete(slot)
	for {
		for d.slots[slot].status == StatusWaiting && !d.inShutdown {
			d.workerCond.Wait()
		}
		if d.slots[slot].status != StatusReserved {
			break
		}
		task, env := d.acceptTask(slot)
		d.mu.Unlock()
		d.execute(task, env)
		d.mu.Lock()
		d.completeTask(slot)
	}
	d.slots[slot].status = StatusDying
	if d.inShutdown {
		d.shutdownCount++
	}
	d.dispatchCond.Broadcast()
	d.mu.Unlock()
}

// setThreadInitializationComplete publishes that slot is ready for work.
// Caller holds d.mu.
func (d *Dispatcher) setThreadInitializationComplete(slot int) {
	d.slots[slot].status = StatusWaiting
	d.dispatchCond.Broadcast()
}

// ShutDownThreads stops every worker and waits until all of them exited.
// It is terminal: Run panics afterwards. A second call is a no-op.
func (d *Dispatcher) ShutDownThreads() {
	d.mu.Lock()
	if d.inShutdown {
		d.mu.Unlock()
		return
	}
	if d.taskInFlight {
		d.fatalLocked(api.ErrTaskInFlight, "shutdown requested while a task is in flight")
	}
	if d.resizing {
		d.fatalLocked(api.ErrTaskInFlight, "shutdown requested during a pool resize")
	}
	d.inShutdown = true
	if d.threadCount > 0 && !d.separateMain {
		// The main slot has no thread; it acknowledges on the caller's behalf.
		d.slots[0].status = StatusDying
		d.shutdownCount++
	}
	d.workerCond.Broadcast()
	for d.shutdownCount < d.threadCount {
		d.dispatchCond.Wait()
	}
	threads := make([]api.Thread, 0, d.threadCount)
	for i := 0; i < d.threadCount; i++ {
		if th := d.slots[i].thread; th != nil {
			threads = append(threads, th)
		}
	}
	d.mu.Unlock()

	for _, th := range threads {
		th.Join()
	}

	d.mu.Lock()
	for i := 0; i < d.threadCount; i++ {
		d.slots[i] = workerSlot{}
	}
	d.log.Printf("[dispatcher] shut down %d threads", d.shutdownCount)
	d.mu.Unlock()
}

// Kill shuts the pool down if needed and drops the slot table.
func (d *Dispatcher) Kill() {
	d.ShutDownThreads()
	d.mu.Lock()
	d.slots = nil
	d.mu.Unlock()
}
