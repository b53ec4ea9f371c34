package trap

import "github.com/gopheros/exo/kernel/cpu"

// The hooks below let trap dispatch the big-lock/scheduler/task-lifecycle
// steps of the pipeline without importing kernel/lock, kernel/sched or
// kernel/task directly — those packages depend on the task's saved Frame and
// Regs types defined here, so a direct import would cycle. kmain wires these
// once, at boot, before trap.Init is called.
var (
	// AcquireBigLockFn and ReleaseBigLockFn serialize kernel-mode
	// execution across CPUs.
	AcquireBigLockFn = func() {}
	ReleaseBigLockFn = func() {}

	// ReapCurrentIfDyingFn destroys the current task if its status is
	// DYING, e.g. because another CPU destroyed it while it was running.
	ReapCurrentIfDyingFn = func() {}

	// SaveCurrentFrameFn copies frame/regs into the current task's saved
	// trap frame so rescheduling restarts at this exact point.
	SaveCurrentFrameFn = func(*Frame, *Regs) {}

	// CurrentIsRunningFn reports whether the current task is still
	// RUNNING after dispatch; if not, the scheduler is invoked instead
	// of resuming it.
	CurrentIsRunningFn = func() bool { return false }

	// ResumeCurrentFn runs just before Trap returns to the trap-entry
	// stub, which restores the current task's saved registers and returns
	// to user mode.
	ResumeCurrentFn = func() {}

	// RunSchedulerFn picks the next RUNNABLE task or halts; it does not
	// return.
	RunSchedulerFn = func() {}

	// ReacquireBigLockIfHaltedFn re-takes the big lock if this trap is the
	// interrupt that woke the CPU from the scheduler's halt loop, which
	// releases the lock before executing HLT. It is a no-op otherwise.
	ReacquireBigLockIfHaltedFn = func() {}

	// panicking is set by kernel.Panic so a nested trap during a panic
	// halts immediately instead of recursing.
	panicking = false
)

// SetPanicking marks that a kernel panic is in progress.
func SetPanicking() { panicking = true }

// eflagsIF is the bit position of EFLAGS.IF, the interrupt-enable flag.
const eflagsIF = 1 << 9

// Trap is the single Go entry point every IDT gate's assembly stub reaches
// once it has pushed Regs and Frame onto the kernel stack.
func Trap(frame *Frame, regs *Regs) {
	cpu.ClearDirectionFlag()

	if panicking {
		cpu.Halt()
	}

	// A gate is only ever entered with IF clear: either the CPU cleared it
	// taking the interrupt, or the kernel already held it disabled while
	// running with the big lock held. Either way it must never read set
	// here; if it does, some path re-enabled interrupts before an IDT gate
	// with the interrupt-gate bit was reached.
	if cpu.ReadEFlags()&eflagsIF != 0 {
		panic("trap: entered Trap with interrupts enabled")
	}

	ReacquireBigLockIfHaltedFn()

	if frame.UserMode() {
		AcquireBigLockFn()
		ReapCurrentIfDyingFn()
		SaveCurrentFrameFn(frame, regs)
	}

	dispatch(frame, regs)

	if CurrentIsRunningFn() {
		ResumeCurrentFn()
		return
	}
	RunSchedulerFn()
}

// unhandled is the default handler for vectors nothing registered: a fault
// taken from kernel mode is always fatal; one taken from user mode destroys
// the offending task and falls through to the scheduler.
func unhandled(frame *Frame, regs *Regs) {
	if !frame.UserMode() {
		frame.Print()
		regs.Print()
		panic(frame)
	}
	DestroyCurrentFn()
}

// DestroyCurrentFn is invoked for an unhandled user-mode trap; wired by
// kmain to kernel/task's Destroy on the current task.
var DestroyCurrentFn = func() {}
