// File: core/dispatcher/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatcher

import (
	"log"

	"github.com/momentics/gcdispatch/api"
)

// Options configures a Dispatcher.
type Options struct {
	// ThreadCount is the number of participants, main included. 0 picks
	// GOMAXPROCS capped by Capacity.
	ThreadCount int
	// Capacity is the slot table size. 0 means ThreadCount.
	Capacity int
	// StackSize is passed to every created thread.
	StackSize int
	// Priority is the nice value applied to every created thread.
	Priority int
	// PinThreads binds slot i to logical CPU i % NumCPU.
	PinThreads bool
	// SeparateMainThread gives slot 0 its own pooled thread instead of
	// running worker 0 on the thread that called Run.
	SeparateMainThread bool
	// Resizable enables the checkpoint/restore resize capability.
	Resizable bool

	SignalHandler    api.SignalHandler
	SignalHandlerArg any

	// Factory creates the worker threads; nil uses locked OS threads.
	Factory api.ThreadFactory
	// ExclusiveAccessHeld, when set, is consulted by resize operations, which
	// must never run while the caller holds system-wide exclusive access.
	ExclusiveAccessHeld func() bool

	Logger  *log.Logger
	Verbose bool
}
