package kmain

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/hal"
	"github.com/gopheros/exo/kernel/lock"
	"github.com/gopheros/exo/kernel/memcheck"
	"github.com/gopheros/exo/kernel/sched"
	"github.com/gopheros/exo/kernel/syscall"
	"github.com/gopheros/exo/kernel/task"
	"github.com/gopheros/exo/kernel/trap"
)

// wireTrapHooks connects the trap package's no-op placeholder hooks to the
// real task/lock/syscall implementations. It runs once, after those
// packages are initialized, so trap itself never needs to import them
// directly and risk an import cycle (kernel/task embeds trap.Frame/Regs).
func wireTrapHooks() {
	trap.AcquireBigLockFn = lock.Big.Acquire
	trap.ReleaseBigLockFn = lock.Big.Release

	trap.ReapCurrentIfDyingFn = func() {
		if t := task.Current(); t != nil && t.Status == task.Dying {
			task.Destroy(t)
		}
	}

	trap.SaveCurrentFrameFn = func(f *trap.Frame, r *trap.Regs) {
		if t := task.Current(); t != nil {
			t.Frame = *f
			t.Regs = *r
		}
	}

	trap.CurrentIsRunningFn = func() bool {
		t := task.Current()
		return t != nil && t.Status == task.Running
	}

	// The trap-entry asm stub restores its registers from the current
	// task's saved Frame/Regs on return, so there is nothing further to
	// do here beyond having kept them up to date.
	trap.ResumeCurrentFn = func() {}

	trap.RunSchedulerFn = sched.Run

	trap.ReacquireBigLockIfHaltedFn = func() {
		if lock.CPU().Halted {
			lock.Big.Acquire()
			lock.CPU().Halted = false
		}
	}

	trap.DestroyCurrentFn = func() {
		if t := task.Current(); t != nil {
			task.Destroy(t)
		}
	}

	trap.CurrentPgFaultUpcallFn = func() uint32 {
		if t := task.Current(); t != nil {
			return t.PgFaultUpcall
		}
		return 0
	}

	trap.DestroyCurrentForFaultFn = trap.DestroyCurrentFn

	trap.CurrentTrapTimeESPFn = func() uint32 {
		if t := task.Current(); t != nil {
			return t.Frame.ESP
		}
		return 0
	}

	trap.CheckExceptionStackWritableFn = func(va, size uint32) bool {
		t := task.Current()
		return t != nil && memcheck.CheckRange(t, va, size, memcheck.Write)
	}

	trap.WriteUTrapFrameFn = func(va uint32, frame *trap.UTrapFrame) {
		t := task.Current()
		if t == nil {
			return
		}
		t.WriteBytes(va, (*[unsafe.Sizeof(trap.UTrapFrame{})]byte)(unsafe.Pointer(frame))[:])
	}

	trap.SetCurrentEntryFn = func(eip, esp uint32) {
		if t := task.Current(); t != nil {
			t.Frame.EIP = eip
			t.Frame.ESP = esp
		}
	}

	trap.SyscallFn = syscall.Dispatch

	syscall.SetConsole(
		func(s string) { hal.ActiveTerminal.Write([]byte(s)) },
		func() int32 { return -1 },
	)
}
