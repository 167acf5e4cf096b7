// File: core/dispatcher/dispatcher.go
// Package dispatcher hands one collective task at a time to a pool of
// long-lived worker threads and blocks the requester until every participant
// finished.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Synchronization: mu is the worker-pool mutex guarding the slot table and all
// counters. The dispatcher monitor is the pair of condition variables on mu:
// workers wait on workerCond for a reservation or a stop request, the
// requester waits on dispatchCond for startup acknowledgements, completions
// and exits. barrier is the synchronize primitive handed to task participants.

package dispatcher

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/momentics/gcdispatch/affinity"
	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/internal/concurrency"
)

// DispatchInfo describes the most recent completed Run.
type DispatchInfo struct {
	Seq       uint64
	Code      string
	Requested int
	Granted   int
	Duration  time.Duration
}

// Dispatcher owns the worker pool. Create it with New; one per collector.
type Dispatcher struct {
	mu           sync.Mutex
	workerCond   *sync.Cond
	dispatchCond *sync.Cond
	barrier      *concurrency.TaskBarrier

	slots              []workerSlot
	desiredThreadCount int
	threadCount        int
	activeThreadCount  int
	taskThreadCount    int
	threadsToReserve   int
	pendingCompletions int
	shutdownCount      int

	started      bool
	inShutdown   bool
	taskInFlight bool
	resizing     bool

	handler      api.SignalHandler
	handlerArg   any
	stackSize    int
	priority     int
	pinThreads   bool
	separateMain bool
	resizable    bool
	exclusive    func() bool
	factory      api.ThreadFactory
	log          *log.Logger
	verbose      bool

	seq  uint64
	last DispatchInfo
}

var _ api.Dispatcher = (*Dispatcher)(nil)

// New validates opts and builds an idle dispatcher. No thread is started.
func New(opts Options) (*Dispatcher, error) {
	if opts.ThreadCount < 0 || opts.Capacity < 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "negative thread count or capacity").
			Wrap(api.ErrInvalidArgument).
			WithContext("thread_count", opts.ThreadCount).
			WithContext("capacity", opts.Capacity)
	}
	threadCount := opts.ThreadCount
	if threadCount == 0 {
		threadCount = adjustThreadCount(opts.Capacity)
	}
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = threadCount
	}
	if threadCount > capacity {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "thread count exceeds capacity").
			Wrap(api.ErrCapacityExceeded).
			WithContext("thread_count", threadCount).
			WithContext("capacity", capacity)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	factory := opts.Factory
	if factory == nil {
		factory = concurrency.NewOSThreadFactory(0, logger)
	}

	d := &Dispatcher{
		barrier:            concurrency.NewTaskBarrier(),
		slots:              make([]workerSlot, capacity),
		desiredThreadCount: threadCount,
		handler:            opts.SignalHandler,
		handlerArg:         opts.SignalHandlerArg,
		stackSize:          opts.StackSize,
		priority:           opts.Priority,
		pinThreads:         opts.PinThreads,
		separateMain:       opts.SeparateMainThread,
		resizable:          opts.Resizable,
		exclusive:          opts.ExclusiveAccessHeld,
		factory:            factory,
		log:                logger,
		verbose:            opts.Verbose,
	}
	d.workerCond = sync.NewCond(&d.mu)
	d.dispatchCond = sync.NewCond(&d.mu)
	return d, nil
}

// adjustThreadCount picks the default participant count from the CPUs the
// Go scheduler may use, capped by the table size when one was given.
func adjustThreadCount(capacity int) int {
	n := runtime.GOMAXPROCS(0)
	if capacity > 0 && n > capacity {
		n = capacity
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ThreadCount returns the number of live participants, main included.
func (d *Dispatcher) ThreadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threadCount
}

// Capacity returns the current size of the slot table.
func (d *Dispatcher) Capacity() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}

// ActiveThreadCount returns the number of participants still bound to the
// task in flight; 0 when idle.
func (d *Dispatcher) ActiveThreadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeThreadCount
}

// SignalHandler returns the handler installed on every worker and its argument.
func (d *Dispatcher) SignalHandler() (api.SignalHandler, any) {
	return d.handler, d.handlerArg
}

// StackSize returns the stack size requested for every worker thread.
func (d *Dispatcher) StackSize() int {
	return d.stackSize
}

// UseSeparateMainThread reports whether slot 0 has a pooled thread of its own.
func (d *Dispatcher) UseSeparateMainThread() bool {
	return d.separateMain
}

// LastDispatch returns the record of the most recent completed Run.
func (d *Dispatcher) LastDispatch() DispatchInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Snapshot copies the counters and the slot table under the pool mutex.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		Capacity:          len(d.slots),
		ThreadCount:       d.threadCount,
		ActiveThreadCount: d.activeThreadCount,
		ThreadsToReserve:  d.threadsToReserve,
		ShutdownCount:     d.shutdownCount,
		Started:           d.started,
		InShutdown:        d.inShutdown,
		TaskInFlight:      d.taskInFlight,
		Slots:             make([]SlotSnapshot, len(d.slots)),
	}
	for i := range d.slots {
		slot := &d.slots[i]
		s.Slots[i] = SlotSnapshot{
			Index:     i,
			Status:    slot.status,
			HasThread: slot.thread != nil,
			HasTask:   slot.task != nil,
		}
		if slot.thread != nil {
			s.Slots[i].ThreadID = slot.thread.ID()
		}
	}
	return s
}

// Resizer exposes the checkpoint/restore capability when it was enabled.
func (d *Dispatcher) Resizer() (api.Resizable, bool) {
	if !d.resizable {
		return nil, false
	}
	return resizer{d}, true
}

func (d *Dispatcher) threadAttributes(slot int) api.ThreadAttributes {
	cpu := -1
	if d.pinThreads {
		cpu = affinity.CPUFor(slot)
	}
	return api.ThreadAttributes{
		Name:      fmt.Sprintf("gc-worker-%d", slot),
		StackSize: d.stackSize,
		Priority:  d.priority,
		CPU:       cpu,
	}
}

// firstWorkerSlot is the lowest slot backed by a pooled thread.
func (d *Dispatcher) firstWorkerSlot() int {
	if d.separateMain {
		return 0
	}
	return 1
}
