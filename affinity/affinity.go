// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.
// Callers must hold runtime.LockOSThread for the binding to stay with their goroutine.

package affinity

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrNotSupported is returned on platforms without thread affinity control.
var ErrNotSupported = errors.New("affinity: not supported on this platform")

// SetAffinity pins current OS thread to a given logical CPU/core on supported platforms.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return fmt.Errorf("affinity: cpu %d out of range [0,%d)", cpuID, runtime.NumCPU())
	}
	return setAffinityPlatform(cpuID)
}

// ClearAffinity lets the current OS thread run on every logical CPU again.
func ClearAffinity() error {
	return clearAffinityPlatform(runtime.NumCPU())
}

// CPUFor spreads slot indexes over the available logical CPUs.
func CPUFor(slot int) int {
	n := runtime.NumCPU()
	if slot < 0 || n <= 0 {
		return -1
	}
	return slot % n
}
