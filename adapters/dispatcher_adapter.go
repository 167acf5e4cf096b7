// File: adapters/dispatcher_adapter.go
// Package adapters provides glue between the dispatcher and the control plane.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ObservedDispatcher implements api.Dispatcher by delegating to a
// dispatcher.Dispatcher. It publishes pool gauges and per-dispatch records to
// a ControlAdapter and serializes pool resizes against task dispatch, so a
// configuration reload may resize the pool at any time.

package adapters

import (
	"log"
	"sync"

	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/control"
	"github.com/momentics/gcdispatch/core/dispatcher"
)

// ObservedDispatcher wraps a Dispatcher with metrics and safe resizing.
type ObservedDispatcher struct {
	// runMu orders Run, resizes and shutdown; the dispatcher asserts that
	// they never overlap.
	runMu  sync.Mutex
	closed bool

	d    *dispatcher.Dispatcher
	ctrl *ControlAdapter
	log  *log.Logger
}

var _ api.Dispatcher = (*ObservedDispatcher)(nil)

// NewObservedDispatcher attaches d to ctrl and registers the slot probe.
func NewObservedDispatcher(d *dispatcher.Dispatcher, ctrl *ControlAdapter, logger *log.Logger) *ObservedDispatcher {
	if logger == nil {
		logger = log.Default()
	}
	o := &ObservedDispatcher{d: d, ctrl: ctrl, log: logger}
	ctrl.RegisterDebugProbe("dispatcher.slots", func() any {
		snap := d.Snapshot()
		out := make([]string, len(snap.Slots))
		for i, s := range snap.Slots {
			out[i] = s.Status.String()
		}
		return out
	})
	o.publishGauges()
	return o
}

// Dispatcher returns the wrapped dispatcher.
func (o *ObservedDispatcher) Dispatcher() *dispatcher.Dispatcher { return o.d }

func (o *ObservedDispatcher) StartUpThreads() error {
	err := o.d.StartUpThreads()
	o.publishGauges()
	return err
}

// Run dispatches task and records the outcome.
func (o *ObservedDispatcher) Run(task api.Task, threadCount int) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.d.Run(task, threadCount)

	info := o.d.LastDispatch()
	m := o.ctrl.Metrics()
	m.Add(control.MetricDispatchRuns, 1)
	m.Set(control.MetricThreadsGranted, info.Granted)
	o.ctrl.History().Record(control.DispatchRecord{
		Seq:       info.Seq,
		Code:      info.Code,
		Requested: info.Requested,
		Granted:   info.Granted,
		Duration:  info.Duration,
	})
	o.publishGauges()
}

func (o *ObservedDispatcher) ShutDownThreads() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.closed = true
	o.d.ShutDownThreads()
	o.publishGauges()
}

func (o *ObservedDispatcher) ThreadCount() int       { return o.d.ThreadCount() }
func (o *ObservedDispatcher) Capacity() int          { return o.d.Capacity() }
func (o *ObservedDispatcher) ActiveThreadCount() int { return o.d.ActiveThreadCount() }

func (o *ObservedDispatcher) SignalHandler() (api.SignalHandler, any) {
	return o.d.SignalHandler()
}

// Resize brings the pool to target participants, growing the slot table
// when target exceeds it.
func (o *ObservedDispatcher) Resize(target int) error {
	return o.withResizer("resize", func(r api.Resizable) error {
		current := o.d.ThreadCount()
		switch {
		case target < 1:
			return api.NewError(api.ErrCodeInvalidArgument, "resize target must be positive").
				Wrap(api.ErrInvalidArgument).
				WithContext("target", target)
		case target < current:
			r.ContractThreadPool(target)
		case target > current:
			if target > o.d.Capacity() {
				if err := r.ReinitializeThreadPool(target); err != nil {
					return err
				}
			}
			if err := r.ExpandThreadPool(target); err != nil {
				return err
			}
		}
		o.log.Printf("[adapters] pool resized %d -> %d", current, o.d.ThreadCount())
		return nil
	})
}

// Checkpoint shrinks the pool to threadCount ahead of a checkpoint.
func (o *ObservedDispatcher) Checkpoint(threadCount int) error {
	return o.withResizer("checkpoint", func(r api.Resizable) error {
		r.PrepareForCheckpoint(threadCount)
		return nil
	})
}

// Restore regrows the pool after a restore.
func (o *ObservedDispatcher) Restore(threadCount int) error {
	return o.withResizer("restore", func(r api.Resizable) error {
		return r.ReinitializeForRestore(threadCount)
	})
}

// FollowConfig resizes the pool whenever a reload changes thread_count.
// A thread_count of 0 keeps the current size.
func (o *ObservedDispatcher) FollowConfig() {
	o.ctrl.Config().OnReload(func(old, updated control.Config) {
		if updated.ThreadCount == old.ThreadCount || updated.ThreadCount == 0 {
			return
		}
		if err := o.Resize(updated.ThreadCount); err != nil {
			o.log.Printf("[adapters] config reload: resize to %d failed: %v", updated.ThreadCount, err)
		}
	})
}

func (o *ObservedDispatcher) withResizer(op string, fn func(api.Resizable) error) error {
	r, ok := o.d.Resizer()
	if !ok {
		return api.NewError(api.ErrCodeNotSupported, op).Wrap(api.ErrNotSupported)
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.closed {
		return api.NewError(api.ErrCodeIllegalState, op).Wrap(api.ErrDispatcherShutdown)
	}
	err := fn(r)
	o.publishGauges()
	return err
}

func (o *ObservedDispatcher) publishGauges() {
	snap := o.d.Snapshot()
	m := o.ctrl.Metrics()
	m.Set(control.MetricPoolThreadCount, snap.ThreadCount)
	m.Set(control.MetricPoolCapacity, snap.Capacity)
	m.Set(control.MetricPoolActiveThreads, snap.ActiveThreadCount)
}
