// File: core/dispatcher/slot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatcher

import (
	"golang.org/x/sys/cpu"

	"github.com/momentics/gcdispatch/api"
)

// WorkerStatus is the state of one pool slot.
type WorkerStatus uint32

const (
	// StatusInactive must stay the zero value: a fresh or grown table starts inactive.
	StatusInactive WorkerStatus = iota
	StatusWaiting
	StatusReserved
	StatusActive
	StatusDying
)

func (s WorkerStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusWaiting:
		return "waiting"
	case StatusReserved:
		return "reserved"
	case StatusActive:
		return "active"
	case StatusDying:
		return "dying"
	default:
		return "unknown"
	}
}

// workerSlot keeps a thread, its status and its task together so the three
// can never drift out of index alignment. Guarded by Dispatcher.mu.
type workerSlot struct {
	thread api.Thread
	status WorkerStatus
	task   api.Task
	_      cpu.CacheLinePad
}

// SlotSnapshot is a copy of one slot taken under the pool mutex.
type SlotSnapshot struct {
	Index     int
	Status    WorkerStatus
	HasThread bool
	HasTask   bool
	ThreadID  int
}

// Snapshot is a consistent view of the dispatcher counters and slot table.
type Snapshot struct {
	Capacity          int
	ThreadCount       int
	ActiveThreadCount int
	ThreadsToReserve  int
	ShutdownCount     int
	Started           bool
	InShutdown        bool
	TaskInFlight      bool
	Slots             []SlotSnapshot
}

// CountStatus returns how many slots are in status s.
func (s Snapshot) CountStatus(status WorkerStatus) int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Status == status {
			n++
		}
	}
	return n
}
