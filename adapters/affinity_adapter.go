// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter implementing the api.Affinity interface on top of the affinity
//   package, for goroutines that want to act as a pinned helper thread.
//
// Package adapters provides glue code between the core API contracts
// and the internal implementation.

package adapters

import (
	"runtime"

	"github.com/momentics/gcdispatch/affinity"
	"github.com/momentics/gcdispatch/api"
)

// AffinityAdapter implements api.Affinity for the calling goroutine.
// It must be used from a single goroutine.
type AffinityAdapter struct {
	currentCPU int
	pinned     bool
}

// NewAffinityAdapter creates an unpinned adapter.
func NewAffinityAdapter() *AffinityAdapter {
	return &AffinityAdapter{currentCPU: -1}
}

var _ api.Affinity = (*AffinityAdapter)(nil)

// Pin wires the calling goroutine to its OS thread and binds the thread to cpuID.
func (a *AffinityAdapter) Pin(cpuID int) error {
	if !a.pinned {
		runtime.LockOSThread()
	}
	if err := affinity.SetAffinity(cpuID); err != nil {
		if !a.pinned {
			runtime.UnlockOSThread()
		}
		return err
	}
	a.currentCPU = cpuID
	a.pinned = true
	return nil
}

// Unpin clears the CPU binding and releases the OS thread lock.
func (a *AffinityAdapter) Unpin() error {
	if !a.pinned {
		return nil
	}
	if err := affinity.ClearAffinity(); err != nil {
		return err
	}
	runtime.UnlockOSThread()
	a.pinned = false
	a.currentCPU = -1
	return nil
}

// Get returns the CPU last pinned to, -1 when unpinned.
func (a *AffinityAdapter) Get() (int, error) {
	return a.currentCPU, nil
}
