// Package ipc implements the kernel's one synchronous message-passing
// primitive: a task blocks in Recv until some other task Sends to it,
// optionally sharing a single page of its address space into the
// receiver's as part of the handoff. There is no queueing — a sender whose
// target isn't already blocked in Recv fails immediately rather than
// waiting, which is what makes the primitive non-blocking on the send side
// and easy to reason about from user space.
package ipc

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
	"github.com/gopheros/exo/kernel/task"
)

// Recv blocks the current task waiting for a message, optionally offering
// dstVA as the page a sender's shared page should land at (an address at or
// above UTOP declines any page transfer). It returns immediately, leaving the task NotRunnable; the
// caller's syscall dispatcher is expected to then fall through to the
// scheduler.
func Recv(t *task.Task, dstVA uint32) {
	t.IPC.Recving = true
	t.IPC.DstVA = dstVA
	t.IPC.From = task.NoTask
	task.SetStatus(t, task.NotRunnable)
}

// TrySend delivers value (and, if srcVA is below UTOP, a shared mapping of the
// page at srcVA in the sender's address space) to the task named by toID.
// It succeeds only if that task is currently blocked in Recv; otherwise it
// returns IPCNotRecv without blocking the caller.
func TrySend(from *task.Task, toID task.ID, value uint32, srcVA uint32, perm vmm.PageTableEntryFlag) errno.Errno {
	to, kerr := task.Lookup(toID)
	if kerr != nil {
		return errno.BadEnv
	}
	if !to.IPC.Recving {
		return errno.IPCNotRecv
	}

	// Both sides use UTOP as "no page" (0 is a legal page address, so it
	// cannot be the sentinel): a transfer only happens when the sender
	// offered a page below UTOP and the receiver's Recv call did too.
	if uintptr(srcVA) < config.UTOP && uintptr(to.IPC.DstVA) < config.UTOP {
		frame, _, err := vmm.Lookup(from.Root, uintptr(srcVA))
		if err != nil {
			return errno.Fault
		}
		if ierr := vmm.Insert(to.Root, frame, uintptr(to.IPC.DstVA), perm, allocFrame); ierr != nil {
			return errno.NoMem
		}
		to.IPC.Perm = uint32(perm)
	} else {
		to.IPC.Perm = 0
	}

	to.IPC.Recving = false
	to.IPC.From = from.ID
	to.IPC.Value = value
	to.Regs.EAX = 0 // the receiver observes ipc_recv returning 0, not a stale register
	task.SetStatus(to, task.Runnable)
	return errno.Unspecified
}

// allocFrame backs the page tables Insert may need to create while wiring
// the sender's shared page into the receiver's address space.
func allocFrame() pmm.Frame { return pmm.Alloc(pmm.Zero) }
