// File: api/thread.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host thread capabilities required by the dispatcher: thread creation, join,
// and a fault handler installed on every created thread.

package api

// Thread is a handle to a started OS thread.
type Thread interface {
	// ID returns the OS thread id once the thread is running, 0 before or when unknown.
	ID() int
	// Join blocks until the thread's entry function has returned.
	Join()
}

// ThreadAttributes are applied to every thread created for the pool.
type ThreadAttributes struct {
	// Name identifies the thread in logs.
	Name string
	// StackSize is the requested OS stack size in bytes; 0 means platform default.
	StackSize int
	// Priority is a nice value applied to the thread; 0 leaves it unchanged.
	Priority int
	// CPU pins the thread to a logical CPU; negative means no pinning.
	CPU int
}

// ThreadFactory creates OS threads running entry. Start returns once the
// thread exists; entry runs asynchronously.
type ThreadFactory interface {
	Start(attrs ThreadAttributes, entry func()) (Thread, error)
}

// Fault describes a failure raised while a worker thread ran its share of a task.
type Fault struct {
	WorkerID int
	ThreadID int
	Value    any
	Stack    []byte
}

// SignalAction tells the worker how to continue after a fault was handled.
type SignalAction int

const (
	// SignalContinueSearch re-raises the fault; the process aborts.
	SignalContinueSearch SignalAction = iota
	// SignalReturn treats the participant's share as finished.
	SignalReturn
)

func (a SignalAction) String() string {
	if a == SignalReturn {
		return "return"
	}
	return "continue-search"
}

// SignalHandler is installed on every worker thread at creation and receives
// the argument registered with it unchanged.
type SignalHandler func(fault *Fault, arg any) SignalAction
