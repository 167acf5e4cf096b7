// File: core/dispatcher/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch protocol: reserve, wake, participate, wait for completion.

package dispatcher

import (
	"time"

	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/internal/concurrency"
)

// Run dispatches task to up to threadCount participants (api.AllThreads or
// any value <= 0 means all) and returns once every participant finished.
// Only one task may be in flight; a concurrent Run or a Run after shutdown
// panics.
func (d *Dispatcher) Run(task api.Task, threadCount int) {
	if task == nil {
		d.fatal(api.ErrInvalidArgument, "run: nil task")
	}
	d.mu.Lock()
	switch {
	case d.inShutdown:
		d.fatalLocked(api.ErrDispatcherShutdown, "run after shutdown")
	case !d.started:
		d.fatalLocked(api.ErrNotStarted, "run before startup")
	case d.taskInFlight || d.resizing:
		d.fatalLocked(api.ErrTaskInFlight, "run while another task or resize is in flight")
	}
	d.taskInFlight = true
	available := d.threadCount
	d.mu.Unlock()

	start := time.Now()
	n := d.recomputeActiveThreadCountForTask(task, threadCount, available)
	mainEnv := &api.Env{WorkerID: 0, ThreadCount: n, ThreadID: concurrency.CurrentThreadID(), Barrier: d.barrier}
	setup, hasSetup := task.(api.TaskSetup)
	if hasSetup {
		setup.MainSetup(mainEnv)
	}

	d.prepareThreadsForTask(task, n)
	if !d.separateMain {
		d.mainEntryPoint()
	}
	d.waitForCompletion()
	d.cleanupAfterTask(task, threadCount, n, time.Since(start))

	if hasSetup {
		setup.MainCleanup(mainEnv)
	}
}

// recomputeActiveThreadCountForTask clamps the request to [1, available] and
// lets the task lower it further.
func (d *Dispatcher) recomputeActiveThreadCountForTask(task api.Task, requested, available int) int {
	n := requested
	if n <= 0 || n > available {
		n = available
	}
	if r, ok := task.(api.ThreadCountRecommender); ok {
		if rec := r.RecommendThreadCount(n); rec >= 1 && rec < n {
			n = rec
		}
	}
	return n
}

// prepareThreadsForTask binds task to n Waiting slots in ascending order and
// wakes the pool. Assignment and status are written under d.mu before the
// broadcast, so a woken worker always observes both.
func (d *Dispatcher) prepareThreadsForTask(task api.Task, n int) {
	d.mu.Lock()
	d.barrier.Reset(n)
	d.taskThreadCount = n
	d.activeThreadCount = n
	d.pendingCompletions = n
	d.threadsToReserve = n
	for i := 0; i < d.threadCount && d.threadsToReserve > 0; i++ {
		slot := &d.slots[i]
		if slot.status != StatusWaiting {
			continue
		}
		slot.task = task
		slot.status = StatusReserved
		d.threadsToReserve--
	}
	if d.threadsToReserve != 0 {
		d.fatalLocked(api.ErrProtocolViolation, "reserved %d of %d threads", n-d.threadsToReserve, n)
	}
	if !d.separateMain && d.slots[0].status != StatusReserved {
		d.fatalLocked(api.ErrProtocolViolation, "main slot not reserved, status %s", d.slots[0].status)
	}
	if d.verbose {
		d.log.Printf("[dispatcher] reserved %d of %d threads", n, d.threadCount)
	}
	d.wakeUpThreads(n)
	d.mu.Unlock()
}

// wakeUpThreads notifies the pool; only reserved workers proceed, the rest
// re-check their status and wait again. Caller holds d.mu.
func (d *Dispatcher) wakeUpThreads(count int) {
	if count > 1 || d.separateMain {
		d.workerCond.Broadcast()
	}
}

// mainEntryPoint runs worker 0's share on the requesting thread.
func (d *Dispatcher) mainEntryPoint() {
	d.mu.Lock()
	task, env := d.acceptTask(0)
	d.mu.Unlock()
	task.Run(env)
	d.mu.Lock()
	d.completeTask(0)
	d.mu.Unlock()
}

// acceptTask moves slot from Reserved to Active and hands back the task and a
// fresh environment for this cycle. Caller holds d.mu.
func (d *Dispatcher) acceptTask(slot int) (api.Task, *api.Env) {
	s := &d.slots[slot]
	if s.status != StatusReserved {
		d.fatalLocked(api.ErrProtocolViolation, "slot %d accepting task in status %s", slot, s.status)
	}
	s.status = StatusActive
	env := &api.Env{
		WorkerID:    slot,
		ThreadCount: d.taskThreadCount,
		Barrier:     d.barrier,
	}
	if s.thread != nil {
		env.ThreadID = s.thread.ID()
	} else {
		env.ThreadID = concurrency.CurrentThreadID()
	}
	return s.task, env
}

// completeTask returns slot to Waiting, drops its task reference and wakes
// the requester once the last participant reported. Caller holds d.mu.
func (d *Dispatcher) completeTask(slot int) {
	s := &d.slots[slot]
	if s.status != StatusActive {
		d.fatalLocked(api.ErrProtocolViolation, "slot %d completing task in status %s", slot, s.status)
	}
	s.status = StatusWaiting
	s.task = nil
	d.activeThreadCount--
	d.pendingCompletions--
	if d.pendingCompletions == 0 {
		d.dispatchCond.Broadcast()
	}
}

func (d *Dispatcher) waitForCompletion() {
	d.mu.Lock()
	for d.pendingCompletions > 0 {
		d.dispatchCond.Wait()
	}
	d.mu.Unlock()
}

// cleanupAfterTask checks the post-dispatch invariants and releases the
// single in-flight token.
func (d *Dispatcher) cleanupAfterTask(task api.Task, requested, granted int, elapsed time.Duration) {
	d.mu.Lock()
	if d.threadsToReserve != 0 || d.activeThreadCount != 0 {
		d.fatalLocked(api.ErrProtocolViolation, "residual reservation state: toReserve=%d active=%d",
			d.threadsToReserve, d.activeThreadCount)
	}
	for i := range d.slots {
		if d.slots[i].task != nil {
			d.fatalLocked(api.ErrProtocolViolation, "slot %d still references the completed task", i)
		}
	}
	d.taskInFlight = false
	d.taskThreadCount = 0
	d.seq++
	d.last = DispatchInfo{
		Seq:       d.seq,
		Requested: requested,
		Granted:   granted,
		Duration:  elapsed,
	}
	if coded, ok := task.(api.CodedTask); ok {
		d.last.Code = coded.GCCode()
	}
	d.mu.Unlock()
}
