// File: internal/concurrency/osthread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OSThreadFactory runs each entry function on its own OS thread: the goroutine
// locks itself to the thread and never unlocks, so the thread is torn down by
// the runtime when the entry returns.

package concurrency

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"

	"github.com/momentics/gcdispatch/affinity"
	"github.com/momentics/gcdispatch/api"
)

// OSThreadFactory implements api.ThreadFactory on locked goroutines.
type OSThreadFactory struct {
	// Limit caps the number of live threads; 0 means unlimited.
	Limit int
	// Logger receives priority/affinity warnings; nil means log.Default().
	Logger *log.Logger

	live atomic.Int64
}

// NewOSThreadFactory returns a factory with the given live thread limit.
func NewOSThreadFactory(limit int, logger *log.Logger) *OSThreadFactory {
	return &OSThreadFactory{Limit: limit, Logger: logger}
}

// Live returns the number of threads whose entry has not yet returned.
func (f *OSThreadFactory) Live() int {
	return int(f.live.Load())
}

// Start launches entry on a new OS thread and returns once the thread is running.
func (f *OSThreadFactory) Start(attrs api.ThreadAttributes, entry func()) (api.Thread, error) {
	if n := f.live.Add(1); f.Limit > 0 && n > int64(f.Limit) {
		f.live.Add(-1)
		return nil, fmt.Errorf("%s: %w (limit %d)", attrs.Name, ErrThreadLimit, f.Limit)
	}
	t := &osThread{
		attrs:   attrs,
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go t.run(f, entry)
	<-t.started
	return t, nil
}

func (f *OSThreadFactory) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

type osThread struct {
	attrs   api.ThreadAttributes
	tid     atomic.Int64
	started chan struct{}
	stopped chan struct{}
}

func (t *osThread) run(f *OSThreadFactory, entry func()) {
	runtime.LockOSThread()
	defer func() {
		f.live.Add(-1)
		close(t.stopped)
	}()
	t.tid.Store(int64(CurrentThreadID()))

	// Goroutine stacks grow on demand; StackSize is carried for reporting only.
	if t.attrs.Priority != 0 {
		if err := SetCurrentThreadPriority(t.attrs.Priority); err != nil {
			f.logger().Printf("[osthread] %s: priority %d not applied: %v", t.attrs.Name, t.attrs.Priority, err)
		}
	}
	if t.attrs.CPU >= 0 {
		if err := affinity.SetAffinity(t.attrs.CPU); err != nil {
			f.logger().Printf("[osthread] %s: pin to cpu %d failed: %v", t.attrs.Name, t.attrs.CPU, err)
		}
	}
	close(t.started)
	entry()
}

// ID returns the OS tid of the thread.
func (t *osThread) ID() int {
	return int(t.tid.Load())
}

// Join waits for the entry function to return.
func (t *osThread) Join() {
	<-t.stopped
}

// Attributes returns the attributes the thread was created with.
func (t *osThread) Attributes() api.ThreadAttributes {
	return t.attrs
}
