// Package api
// Author: momentics@gmail.com
//
// CPU affinity and thread pinning definitions.

package api

// Affinity controls execution on particular CPUs.
type Affinity interface {
	// Pin locks the calling goroutine to its OS thread and binds that thread to cpuID.
	Pin(cpuID int) error
	// Unpin removes affinity and releases the OS thread lock.
	Unpin() error
	// Get returns the CPU the adapter last pinned to, -1 when unpinned.
	Get() (cpuID int, err error)
}
