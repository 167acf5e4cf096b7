// File: core/dispatcher/fatal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protocol invariants are asserted, never returned: a dispatcher whose state
// is inconsistent cannot be continued, so the violation is logged and raised
// as a panic carrying an *api.Error that wraps api.ErrProtocolViolation.

package dispatcher

import (
	"fmt"
	"runtime/debug"

	"github.com/momentics/gcdispatch/api"
)

func (d *Dispatcher) fatal(cause error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.log.Printf("[dispatcher] FATAL: %s: %v", msg, cause)
	panic(api.NewError(api.ErrCodeIllegalState, msg).
		Wrap(fmt.Errorf("%w: %w", api.ErrProtocolViolation, cause)))
}

// fatalLocked releases the pool mutex before raising so a recovered panic
// does not leave every other thread blocked on it.
func (d *Dispatcher) fatalLocked(cause error, format string, args ...any) {
	d.mu.Unlock()
	d.fatal(cause, format, args...)
}

// execute runs a worker's share under the installed signal handler.
func (d *Dispatcher) execute(task api.Task, env *api.Env) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fault := &api.Fault{
			WorkerID: env.WorkerID,
			ThreadID: env.ThreadID,
			Value:    r,
			Stack:    debug.Stack(),
		}
		if d.handler != nil && d.handler(fault, d.handlerArg) == api.SignalReturn {
			d.log.Printf("[dispatcher] worker %d: fault handled, share abandoned: %v", env.WorkerID, r)
			return
		}
		d.log.Printf("[dispatcher] FATAL: worker %d: unhandled fault: %v\n%s", env.WorkerID, r, fault.Stack)
		panic(r)
	}()
	task.Run(env)
}
