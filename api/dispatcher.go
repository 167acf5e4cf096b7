// Package api
// Author: momentics
//
// Dispatcher contract for handing a collective task to a pool of long-lived
// worker threads, plus the optional resize capability used around
// checkpoint/restore.

package api

// AllThreads requests every live thread of the pool for a task.
const AllThreads = 0

// Dispatcher runs one task at a time on some or all of its worker threads.
type Dispatcher interface {
	// StartUpThreads creates the configured worker threads.
	StartUpThreads() error
	// Run dispatches task to up to threadCount participants and blocks until
	// every participant finished. threadCount <= 0 means all available.
	Run(task Task, threadCount int)
	// ShutDownThreads stops every worker thread. Terminal.
	ShutDownThreads()

	// ThreadCount returns the number of live participants, main included.
	ThreadCount() int
	// Capacity returns the size of the slot table.
	Capacity() int
	// ActiveThreadCount returns the number of participants currently bound to a task.
	ActiveThreadCount() int
	// SignalHandler returns the handler installed on every worker and its argument.
	SignalHandler() (SignalHandler, any)
}

// Resizable is offered by dispatchers built with checkpoint/restore support.
// None of its methods may be called while a task is in flight or after shutdown.
type Resizable interface {
	// ExpandThreadPool starts threads until targetCount participants exist.
	ExpandThreadPool(targetCount int) error
	// ContractThreadPool stops the highest slots until newThreadCount remain.
	ContractThreadPool(newThreadCount int)
	// ReinitializeThreadPool grows the slot table to newPoolSize.
	ReinitializeThreadPool(newPoolSize int) error
	// PrepareForCheckpoint releases threads ahead of a checkpoint.
	PrepareForCheckpoint(newThreadCount int)
	// ReinitializeForRestore regrows the pool for the restore environment.
	ReinitializeForRestore(threadCount int) error
}
