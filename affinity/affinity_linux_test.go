//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSetAffinityPinsCallingThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var before unix.CPUSet
	if err := unix.SchedGetaffinity(0, &before); err != nil {
		t.Skipf("sched_getaffinity unavailable: %v", err)
	}
	cpu := -1
	for i := 0; i < runtime.NumCPU(); i++ {
		if before.IsSet(i) {
			cpu = i
			break
		}
	}
	if cpu < 0 {
		t.Skip("no usable cpu in current mask")
	}
	defer unix.SchedSetaffinity(0, &before)

	if err := SetAffinity(cpu); err != nil {
		t.Fatalf("SetAffinity(%d): %v", cpu, err)
	}
	var after unix.CPUSet
	if err := unix.SchedGetaffinity(0, &after); err != nil {
		t.Fatal(err)
	}
	if after.Count() != 1 || !after.IsSet(cpu) {
		t.Errorf("expected mask {%d}, got count=%d", cpu, after.Count())
	}
}

func TestSetAffinityRejectsOutOfRange(t *testing.T) {
	if err := SetAffinity(-1); err == nil {
		t.Error("expected error for negative cpu")
	}
	if err := SetAffinity(runtime.NumCPU()); err == nil {
		t.Error("expected error for cpu beyond NumCPU")
	}
}

func TestCPUFor(t *testing.T) {
	n := runtime.NumCPU()
	if CPUFor(-1) != -1 {
		t.Error("negative slot must not map to a cpu")
	}
	if got := CPUFor(n + 1); got != 1%n {
		t.Errorf("CPUFor(%d) = %d, want %d", n+1, got, 1%n)
	}
}
