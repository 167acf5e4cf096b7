// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package dispatcher

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/gccode"
)

// TestRun_EachWorkerOnce checks that run(task, n) executes exactly once on
// workers 0..n-1 and leaves the pool idle.
func TestRun_EachWorkerOnce(t *testing.T) {
	const threads = 4
	d := startDispatcher(t, Options{ThreadCount: threads})

	for n := 1; n <= threads; n++ {
		var hits [threads]atomic.Int32
		var badCount atomic.Int32
		task := api.TaskFunc(func(env *api.Env) {
			hits[env.WorkerID].Add(1)
			if env.ThreadCount != n {
				badCount.Add(1)
			}
		})
		within(t, 5*time.Second, "run", func() { d.Run(task, n) })

		for id := 0; id < threads; id++ {
			want := int32(0)
			if id < n {
				want = 1
			}
			if got := hits[id].Load(); got != want {
				t.Errorf("n=%d: worker %d ran %d times, want %d", n, id, got, want)
			}
		}
		if badCount.Load() != 0 {
			t.Errorf("n=%d: env.ThreadCount differed from granted count", n)
		}
		s := d.Snapshot()
		if s.ActiveThreadCount != 0 || s.TaskInFlight {
			t.Errorf("n=%d: pool not idle after run: %+v", n, s)
		}
		if got := s.CountStatus(StatusWaiting); got != threads {
			t.Errorf("n=%d: %d waiting slots, want %d", n, got, threads)
		}
		for _, slot := range s.Slots {
			if slot.HasTask {
				t.Errorf("n=%d: slot %d still holds a task", n, slot.Index)
			}
		}
	}
}

// TestRun_AllThreadsAndOverRequest clamps 0 and oversized requests to the pool.
func TestRun_AllThreadsAndOverRequest(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 3})
	for _, req := range []int{api.AllThreads, -1, 3, 99} {
		var ran atomic.Int32
		d.Run(api.TaskFunc(func(*api.Env) { ran.Add(1) }), req)
		if ran.Load() != 3 {
			t.Errorf("request %d: ran on %d workers, want 3", req, ran.Load())
		}
		if info := d.LastDispatch(); info.Granted != 3 || info.Requested != req {
			t.Errorf("request %d: LastDispatch = %+v", req, info)
		}
	}
}

// TestRun_PartialDispatchLeavesOthersWaiting covers run(A, 4) then run(B, 2):
// B only touches workers 0 and 1, slots 2 and 3 stay waiting throughout.
func TestRun_PartialDispatchLeavesOthersWaiting(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 4})

	var a atomic.Int32
	d.Run(api.TaskFunc(func(*api.Env) { a.Add(1) }), 4)
	if a.Load() != 4 {
		t.Fatalf("A ran on %d workers, want 4", a.Load())
	}

	var seen sync.Map
	var during Snapshot
	task := api.TaskFunc(func(env *api.Env) {
		seen.Store(env.WorkerID, true)
		env.Barrier.Synchronize("b-start")
		if env.IsMain() {
			during = d.Snapshot()
		}
		env.Barrier.Synchronize("b-end")
	})
	within(t, 5*time.Second, "run B", func() { d.Run(task, 2) })

	for id := 0; id < 4; id++ {
		_, ok := seen.Load(id)
		if ok != (id < 2) {
			t.Errorf("worker %d participated=%v", id, ok)
		}
	}
	for _, i := range []int{2, 3} {
		if st := during.Slots[i].Status; st != StatusWaiting {
			t.Errorf("slot %d during B is %s, want waiting", i, st)
		}
	}
	if during.ActiveThreadCount != 2 {
		t.Errorf("active during B = %d, want 2", during.ActiveThreadCount)
	}
}

// TestRun_DistinctOSThreads verifies that pooled participants run on their own
// OS threads and worker 0 runs on the caller's.
func TestRun_DistinctOSThreads(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread ids only on linux")
	}
	const threads = 4
	d := startDispatcher(t, Options{ThreadCount: threads})
	var tids [threads]atomic.Int64
	d.Run(api.TaskFunc(func(env *api.Env) { tids[env.WorkerID].Store(int64(env.ThreadID)) }), api.AllThreads)

	seen := map[int64]bool{}
	for i := range tids {
		seen[tids[i].Load()] = true
	}
	if len(seen) != threads {
		t.Errorf("expected %d distinct thread ids, got %v", threads, seen)
	}
	s := d.Snapshot()
	for i := 1; i < threads; i++ {
		if int64(s.Slots[i].ThreadID) != tids[i].Load() {
			t.Errorf("slot %d thread id %d, env reported %d", i, s.Slots[i].ThreadID, tids[i].Load())
		}
	}
}

// TestRun_InvariantsUnderLoad polls snapshots while tasks are dispatched and
// checks the counters stay consistent in every observed state.
func TestRun_InvariantsUnderLoad(t *testing.T) {
	const threads = 4
	d := startDispatcher(t, Options{ThreadCount: threads, Capacity: 6})

	stop := make(chan struct{})
	violations := make(chan string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := d.Snapshot()
			bound := s.CountStatus(StatusReserved) + s.CountStatus(StatusActive)
			var v string
			switch {
			case s.ThreadsToReserve != 0:
				v = "threadsToReserve observed non-zero"
			case s.ActiveThreadCount > s.ThreadCount || s.ThreadCount > s.Capacity:
				v = "active <= threadCount <= capacity broken"
			case bound != s.ActiveThreadCount:
				v = "reserved+active slots differ from activeThreadCount"
			}
			if v != "" {
				select {
				case violations <- v:
				default:
				}
			}
			runtime.Gosched()
		}
	}()

	within(t, 10*time.Second, "dispatch loop", func() {
		for i := 0; i < 200; i++ {
			n := i%threads + 1
			d.Run(api.TaskFunc(func(env *api.Env) {
				if env.WorkerID%2 == 0 {
					runtime.Gosched()
				}
			}), n)
		}
	})
	close(stop)
	wg.Wait()
	close(violations)
	for v := range violations {
		t.Error(v)
		break
	}
	if info := d.LastDispatch(); info.Seq != 200 {
		t.Errorf("Seq = %d, want 200", info.Seq)
	}
}

type recommendingTask struct {
	ran       atomic.Int32
	requested atomic.Int32
	limit     int
}

func (r *recommendingTask) Run(*api.Env) { r.ran.Add(1) }

func (r *recommendingTask) RecommendThreadCount(requested int) int {
	r.requested.Store(int32(requested))
	return r.limit
}

func TestRun_ThreadCountRecommender(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 4})

	task := &recommendingTask{limit: 2}
	d.Run(task, api.AllThreads)
	if task.ran.Load() != 2 || task.requested.Load() != 4 {
		t.Errorf("ran=%d requested=%d, want 2 and 4", task.ran.Load(), task.requested.Load())
	}
	if info := d.LastDispatch(); info.Granted != 2 {
		t.Errorf("Granted = %d, want 2", info.Granted)
	}

	// A recommendation above the clamp or below 1 is ignored.
	for _, limit := range []int{0, 9} {
		task := &recommendingTask{limit: limit}
		d.Run(task, 3)
		if task.ran.Load() != 3 {
			t.Errorf("limit %d: ran=%d, want 3", limit, task.ran.Load())
		}
	}
}

type setupTask struct {
	setups, cleanups atomic.Int32
	ranBeforeSetup   atomic.Bool
	ranAfterCleanup  atomic.Bool
	ran              atomic.Int32
}

func (s *setupTask) MainSetup(env *api.Env) {
	if s.ran.Load() != 0 {
		s.ranBeforeSetup.Store(true)
	}
	s.setups.Add(1)
}

func (s *setupTask) Run(*api.Env) {
	s.ran.Add(1)
}

func (s *setupTask) MainCleanup(env *api.Env) {
	if s.ran.Load() != int32(env.ThreadCount) {
		s.ranAfterCleanup.Store(true)
	}
	s.cleanups.Add(1)
}

func TestRun_MainSetupAndCleanup(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 3})
	task := &setupTask{}
	d.Run(task, api.AllThreads)
	if task.setups.Load() != 1 || task.cleanups.Load() != 1 {
		t.Errorf("setup=%d cleanup=%d, want 1 each", task.setups.Load(), task.cleanups.Load())
	}
	if task.ranBeforeSetup.Load() {
		t.Error("a worker ran before MainSetup")
	}
	if task.ranAfterCleanup.Load() {
		t.Error("MainCleanup ran before every worker finished")
	}
}

type codedTask struct{ code gccode.Code }

func (codedTask) Run(*api.Env) {}

func (c codedTask) GCCode() string { return c.code.String() }

func TestRun_RecordsTriggerCode(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 2})
	d.Run(codedTask{code: gccode.ExplicitSystemGC}, api.AllThreads)
	info := d.LastDispatch()
	if info.Code != "explicit-system-gc" {
		t.Errorf("Code = %q", info.Code)
	}
	if info.Seq != 1 || info.Duration < 0 {
		t.Errorf("unexpected record %+v", info)
	}
	d.Run(api.TaskFunc(func(*api.Env) {}), 1)
	if info := d.LastDispatch(); info.Code != "" || info.Seq != 2 {
		t.Errorf("uncoded task recorded %+v", info)
	}
}

// TestRun_BarrierPhases drives a mark/sweep style task: every participant
// contributes to phase one, worker 0 alone merges, then everyone reads it.
func TestRun_BarrierPhases(t *testing.T) {
	const threads = 4
	d := startDispatcher(t, Options{ThreadCount: threads})

	var partial [threads]int
	var total int
	var wrong atomic.Int32
	task := api.TaskFunc(func(env *api.Env) {
		partial[env.WorkerID] = env.WorkerID + 1
		if env.Barrier.SynchronizeAndReleaseMain(env, "merge") {
			for _, p := range partial[:env.ThreadCount] {
				total += p
			}
			env.Barrier.Release()
		}
		if total != 10 {
			wrong.Add(1)
		}
		if env.Barrier.SynchronizeAndReleaseSingle("single") {
			env.Barrier.Release()
		}
		env.Barrier.Synchronize("done")
	})
	within(t, 5*time.Second, "barrier task", func() { d.Run(task, api.AllThreads) })
	if wrong.Load() != 0 {
		t.Errorf("%d workers read total before the merge", wrong.Load())
	}
}

func TestRun_SeparateMainThread(t *testing.T) {
	const threads = 3
	d := startDispatcher(t, Options{ThreadCount: threads, SeparateMainThread: true})
	if !d.UseSeparateMainThread() {
		t.Fatal("UseSeparateMainThread() = false")
	}
	s := d.Snapshot()
	if s.ThreadCount != threads || !s.Slots[0].HasThread {
		t.Fatalf("slot 0 must own a pooled thread: %+v", s)
	}

	var hits [threads]atomic.Int32
	var mainSetups atomic.Int32
	task := &separateTask{hits: &hits, setups: &mainSetups}
	within(t, 5*time.Second, "separate main run", func() { d.Run(task, api.AllThreads) })
	for i := range hits {
		if hits[i].Load() != 1 {
			t.Errorf("worker %d ran %d times", i, hits[i].Load())
		}
	}
	if runtime.GOOS == "linux" && task.worker0TID.Load() == int64(task.callerTID.Load()) {
		t.Error("worker 0 ran on the requesting thread")
	}
	if mainSetups.Load() != 1 {
		t.Errorf("MainSetup ran %d times", mainSetups.Load())
	}
}

type separateTask struct {
	hits       *[3]atomic.Int32
	setups     *atomic.Int32
	callerTID  atomic.Int64
	worker0TID atomic.Int64
}

func (s *separateTask) MainSetup(env *api.Env) {
	s.setups.Add(1)
	s.callerTID.Store(int64(env.ThreadID))
}

func (s *separateTask) MainCleanup(*api.Env) {}

func (s *separateTask) Run(env *api.Env) {
	s.hits[env.WorkerID].Add(1)
	if env.WorkerID == 0 {
		s.worker0TID.Store(int64(env.ThreadID))
	}
}

func TestRun_SignalHandlerReturn(t *testing.T) {
	type marker struct{ name string }
	arg := &marker{name: "gc"}

	var faults atomic.Int32
	var gotArg atomic.Value
	var faultWorker atomic.Int32
	handler := func(f *api.Fault, a any) api.SignalAction {
		faults.Add(1)
		gotArg.Store(a)
		faultWorker.Store(int32(f.WorkerID))
		if f.Value != "boom" || len(f.Stack) == 0 {
			return api.SignalContinueSearch
		}
		return api.SignalReturn
	}
	d := startDispatcher(t, Options{ThreadCount: 3, SignalHandler: handler, SignalHandlerArg: arg})

	if h, a := d.SignalHandler(); h == nil || a != arg {
		t.Fatal("SignalHandler() does not report the installed handler")
	}

	var finished atomic.Int32
	task := api.TaskFunc(func(env *api.Env) {
		if env.WorkerID == 2 {
			panic("boom")
		}
		finished.Add(1)
	})
	within(t, 5*time.Second, "faulting run", func() { d.Run(task, api.AllThreads) })

	if faults.Load() != 1 || faultWorker.Load() != 2 {
		t.Errorf("faults=%d worker=%d", faults.Load(), faultWorker.Load())
	}
	if gotArg.Load() != arg {
		t.Error("handler did not receive the installed argument")
	}
	if finished.Load() != 2 {
		t.Errorf("finished = %d, want 2", finished.Load())
	}
	// The pool stays usable after an abandoned share.
	var again atomic.Int32
	d.Run(api.TaskFunc(func(*api.Env) { again.Add(1) }), api.AllThreads)
	if again.Load() != 3 {
		t.Errorf("rerun reached %d workers", again.Load())
	}
}

func TestRun_ConcurrentRunIsFatal(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 2})

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(api.TaskFunc(func(*api.Env) {
			entered <- struct{}{}
			<-release
		}), api.AllThreads)
	}()
	<-entered
	<-entered

	expectFatal(t, api.ErrTaskInFlight, func() {
		d.Run(api.TaskFunc(func(*api.Env) {}), 1)
	})
	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout: first run did not complete")
	}
	if d.Snapshot().TaskInFlight {
		t.Error("task still in flight after completion")
	}
}

func TestRun_NilTaskIsFatal(t *testing.T) {
	d := startDispatcher(t, Options{ThreadCount: 1})
	expectFatal(t, api.ErrInvalidArgument, func() { d.Run(nil, 1) })
}
