//go:build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity.

package affinity

import (
	"golang.org/x/sys/windows"
)

var procSetThreadAffinityMask = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadAffinityMask")

func setThreadMask(mask uintptr) error {
	ret, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if ret == 0 {
		return err
	}
	return nil
}

// setAffinityPlatform sets thread affinity to a given CPU for Windows.
func setAffinityPlatform(cpuID int) error {
	if cpuID >= 64 {
		return ErrNotSupported
	}
	return setThreadMask(uintptr(1) << cpuID)
}

func clearAffinityPlatform(numCPU int) error {
	if numCPU >= 64 {
		return setThreadMask(^uintptr(0))
	}
	return setThreadMask(uintptr(1)<<numCPU - 1)
}
