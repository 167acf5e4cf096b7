// File: api/task.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task contract consumed by the parallel dispatcher.

package api

// Task is a unit of parallel work. Every participant reserved for the task
// calls Run exactly once with its own environment.
type Task interface {
	Run(env *Env)
}

// Env describes one participant's view of a dispatched task. It is built
// fresh for every dispatch cycle; the dispatcher never reads it back.
type Env struct {
	// WorkerID is the slot index of the participant. Slot 0 is the main participant.
	WorkerID int
	// ThreadCount is the number of participants granted to the task.
	ThreadCount int
	// ThreadID is the OS thread id of the participant, or 0 when unknown.
	ThreadID int
	// Barrier is shared by all participants of the task.
	Barrier Barrier
}

// IsMain reports whether the participant is worker 0.
func (e *Env) IsMain() bool {
	return e.WorkerID == 0
}

// Barrier is the synchronization primitive shared by all participants of a
// task. The dispatcher sizes it; only the task interprets it.
type Barrier interface {
	// Synchronize blocks until every participant has reached the same point.
	Synchronize(id string)
	// SynchronizeAndReleaseMain blocks every participant at the point; the
	// main participant returns true immediately after everyone arrived and
	// must call Release, everyone else returns false after Release.
	SynchronizeAndReleaseMain(env *Env, id string) bool
	// SynchronizeAndReleaseSingle is like SynchronizeAndReleaseMain but the
	// last participant to arrive is the one released.
	SynchronizeAndReleaseSingle(id string) bool
	// Release lets the participants held by a release-style synchronization go.
	Release()
}

// TaskSetup is implemented by tasks that need preparation and cleanup on
// the requesting thread around a dispatch.
type TaskSetup interface {
	MainSetup(env *Env)
	MainCleanup(env *Env)
}

// ThreadCountRecommender lets a task down-scope participation, e.g. when the
// workload is too small for contention to pay off. The result is clamped to
// [1, requested].
type ThreadCountRecommender interface {
	RecommendThreadCount(requested int) int
}

// CodedTask is implemented by tasks that carry a GC trigger code. The
// dispatcher records the code but never interprets it.
type CodedTask interface {
	GCCode() string
}
