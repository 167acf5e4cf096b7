// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrThreadLimit indicates the factory reached its live thread limit.
	ErrThreadLimit = errors.New("os thread limit reached")

	// ErrPriorityNotSupported indicates thread priorities cannot be set on this platform.
	ErrPriorityNotSupported = errors.New("thread priority not supported")

	// ErrBarrierMismatch indicates participants synchronized on different ids.
	ErrBarrierMismatch = errors.New("barrier id mismatch")
)
