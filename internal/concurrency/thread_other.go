//go:build !linux

// File: internal/concurrency/thread_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallbacks for platforms without per-thread identity or priority control.

package concurrency

// CurrentThreadID returns 0: no portable thread id.
func CurrentThreadID() int { return 0 }

// SetCurrentThreadPriority is not supported here.
func SetCurrentThreadPriority(prio int) error {
	if prio == 0 {
		return nil
	}
	return ErrPriorityNotSupported
}

// CurrentThreadPriority always reports the default priority.
func CurrentThreadPriority() (int, error) { return 0, nil }
