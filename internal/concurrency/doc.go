// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-level primitives for the gcdispatch worker pool: goroutines locked to
// dedicated OS threads with priority and CPU pinning, OS thread identity, and
// the generation-based barrier handed to every participant of a task.
//
// Platform-specific pieces are split by build tag (Linux uses golang.org/x/sys/unix;
// other platforms degrade to no-ops or ErrNotSupported).
package concurrency
