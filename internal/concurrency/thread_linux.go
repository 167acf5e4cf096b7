//go:build linux

// File: internal/concurrency/thread_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux thread identity and scheduling priority.

package concurrency

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CurrentThreadID returns the kernel tid of the calling OS thread.
func CurrentThreadID() int {
	return unix.Gettid()
}

// SetCurrentThreadPriority applies a nice value to the calling OS thread only.
// Linux treats a tid passed to setpriority(PRIO_PROCESS) as a single thread.
func SetCurrentThreadPriority(prio int) error {
	if prio < -20 || prio > 19 {
		return fmt.Errorf("priority %d out of range [-20,19]", prio)
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), prio); err != nil {
		return fmt.Errorf("setpriority: %w", err)
	}
	return nil
}

// CurrentThreadPriority reads back the nice value of the calling OS thread.
func CurrentThreadPriority() (int, error) {
	// getpriority returns 20-nice to stay positive.
	v, err := unix.Getpriority(unix.PRIO_PROCESS, unix.Gettid())
	if err != nil {
		return 0, err
	}
	return 20 - v, nil
}
