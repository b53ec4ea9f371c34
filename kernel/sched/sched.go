// Package sched implements round-robin scheduling over the task table: pick
// the next runnable task after whichever one last ran and switch to it, or
// halt the CPU until an interrupt arrives if none are runnable.
package sched

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/cpu"
	"github.com/gopheros/exo/kernel/lock"
	"github.com/gopheros/exo/kernel/mem/vmm"
	"github.com/gopheros/exo/kernel/task"
)

// lastRun remembers, per CPU, the slot index most recently dispatched, so
// the search for the next runnable task starts after it instead of always
// from slot 0 — without this a CPU idling next to slot 0 would starve every
// other task whenever two CPUs raced to pick a victim.
var lastRun [config.NCPU]uint32

// Run never returns: it picks a runnable task, activates its address space
// and resumes it, or halts the CPU if none is runnable. The resume itself is
// an asm stub that loads Regs and Frame and executes iret.
func Run() {
	cpuID := lock.CurrentCPUFn()
	start := lastRun[cpuID]

	for i := uint32(0); i < config.NEnv; i++ {
		slot := (start + 1 + i) % config.NEnv
		t := task.TableEntry(slot)
		if t.Status != task.Runnable {
			continue
		}

		lastRun[cpuID] = slot
		dispatch(t)
		return
	}

	if cur := task.Current(); cur != nil && cur.Status == task.Running {
		dispatch(cur)
		return
	}

	task.SetCurrent(nil)
	pdt := vmm.PageDirectoryTable{}
	pdt.Adopt(vmm.KernelRoot())
	pdt.Activate()

	lock.CPU().Halted = true
	lock.Big.Release()
	cpu.EnableInterrupts()
	for {
		cpu.Halt()
	}
}

// dispatch makes t the running task on the calling CPU: its address space
// becomes active and its saved register state is about to be restored by
// the caller of Run once this function returns control to the resume stub.
func dispatch(t *task.Task) {
	lock.CPU().Halted = false

	if cur := task.Current(); cur != nil && cur.Status == task.Running && cur != t {
		cur.Status = task.Runnable
	}

	t.Status = task.Running
	t.RunCount++
	task.SetCurrent(t)

	pdt := vmm.PageDirectoryTable{}
	pdt.Adopt(t.Root)
	pdt.Activate()

	resume(t)
}

// resume is an asm stub: it loads t.Regs and t.Frame onto the stack and
// executes iret, never returning to Go code.
func resume(t *task.Task)
