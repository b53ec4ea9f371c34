// Package task owns the table of live tasks: allocation, destruction,
// status transitions and the per-CPU notion of "the task currently
// running". It does not schedule (kernel/sched walks this table to pick who
// runs next) and it does not implement system calls (kernel/syscall calls
// into this package to do so); it is purely the task record and its
// lifecycle.
package task

import (
	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/lock"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
	"github.com/gopheros/exo/kernel/trap"
)

// Status is a task's scheduling state.
type Status uint8

const (
	// Free marks an unused table slot.
	Free Status = iota
	// Runnable tasks are eligible to be picked by the scheduler.
	Runnable
	// Running is the status of whichever task is currently executing on
	// some CPU; at most one task per CPU carries this status.
	Running
	// NotRunnable tasks are blocked, most commonly in ipc_recv.
	NotRunnable
	// Dying tasks are destroyed the next time the kernel is entered on
	// their behalf, rather than from inside a fault handler itself.
	Dying
)

// IPCState tracks this task's half of a pending synchronous rendezvous.
type IPCState struct {
	Recving bool    // blocked in ipc_recv, waiting for a sender
	From    ID      // the task that last sent to this one
	Value   uint32  // the word payload of the last message received
	DstVA   uint32  // page to receive a shared mapping into, UTOP or above to decline
	Perm    uint32  // permission the sender offered
}

// Task is one entry in the task table.
type Task struct {
	ID       ID
	ParentID ID
	Status   Status

	Root pmm.Frame // this task's page directory

	Frame trap.Frame
	Regs  trap.Regs

	PgFaultUpcall uint32
	RunCount      uint32

	IPC IPCState
}

var (
	table  [config.NEnv]Task
	lastID [config.NEnv]ID
)

var (
	errNoFreeTask = &kernel.Error{Module: "task", Message: "no free task slot"}
	errBadTask    = &kernel.Error{Module: "task", Message: "bad task id"}
)

// current holds, per CPU, the task that CPU is currently running.
var current [config.NCPU]*Task

// Current returns the task running on the calling CPU, or nil if that CPU
// is idling in the scheduler.
func Current() *Task {
	return current[lock.CurrentCPUFn()]
}

// SetCurrent installs t as the task running on the calling CPU.
func SetCurrent(t *Task) {
	current[lock.CurrentCPUFn()] = t
}

// TableEntry returns the task occupying the given table slot, whatever its
// status. It exists for kernel/sched's round-robin scan, which walks every
// slot rather than looking tasks up by ID.
func TableEntry(slot uint32) *Task { return &table[slot] }

// Lookup finds a live task by ID, failing if the ID's generation is stale or
// its slot is free.
func Lookup(id ID) (*Task, *kernel.Error) {
	if id == NoTask {
		return nil, errBadTask
	}
	t := &table[id.slot()]
	if t.ID != id || t.Status == Free {
		return nil, errBadTask
	}
	return t, nil
}

// Alloc reserves a free slot, builds a fresh address space for it (cloning
// the kernel's high-half mappings) and returns it in the NotRunnable state
// with no code loaded. The caller is responsible for loading a program and
// calling SetStatus(Runnable).
func Alloc(parent ID) (*Task, *kernel.Error) {
	slot := -1
	for i := range table {
		if table[i].Status == Free {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, errNoFreeTask
	}

	t := &table[slot]
	id := nextID(uint32(slot), lastID[slot])
	lastID[slot] = id

	var pdt vmm.PageDirectoryTable
	if err := pdt.Init(vmm.KernelRoot(), allocFrame); err != nil {
		return nil, err
	}

	*t = Task{
		ID:       id,
		ParentID: parent,
		Status:   NotRunnable,
		Root:     pdt.Root(),
	}
	t.Frame.CS = userCS
	t.Frame.SS = userSS
	t.Frame.EFlags = userEFlags
	t.Frame.ESP = uint32(config.USTACKTOP)
	return t, nil
}

// SetStatus transitions t to status s.
func SetStatus(t *Task, s Status) { t.Status = s }

// SetPgFaultUpcall records the user entry point to redirect page faults to.
func SetPgFaultUpcall(t *Task, entry uint32) { t.PgFaultUpcall = entry }

// Destroy tears down a task's address space and returns its slot to the
// free list. A destroyed task's ID is never reused; the next Alloc into
// this slot bumps the generation instead.
func Destroy(t *Task) *kernel.Error {
	cpu := lock.CurrentCPUFn()
	if current[cpu] == t {
		current[cpu] = nil
	}
	freeAddressSpace(t.Root)
	t.Status = Free
	return nil
}

// IPCInfo returns the sender id, message value and permission bits last
// delivered to the task named by id via a successful ipc_try_send. It
// stands in for the UENVS read-only window user-space code consults after
// ipc_recv returns — this kernel does not map the task table itself into
// every address space, so the lookup is a function call rather than a
// dereference through a self-mapped page.
func IPCInfo(id uint32) (from uint32, value uint32, perm uint32) {
	t, err := Lookup(ID(id))
	if err != nil {
		return uint32(NoTask), 0, 0
	}
	return uint32(t.IPC.From), t.IPC.Value, t.IPC.Perm
}

// CurrentPTEFlags reports the flags of the page-table entry mapping va in
// the calling task's own address space, or ok=false if va is unmapped. It
// stands in for dereferencing the self-mapped page directory at UVPT from
// user space: this kernel does not separately enforce the user/kernel
// address-space boundary within a single compiled binary, so the lookup is
// a direct call rather than a pointer walk through the recursive mapping.
func CurrentPTEFlags(va uintptr) (flags vmm.PageTableEntryFlag, ok bool) {
	t := Current()
	if t == nil {
		return 0, false
	}
	_, pte, err := vmm.Lookup(t.Root, va)
	if err != nil {
		return 0, false
	}
	return pte.Flags(), true
}

// allocFrame wraps pmm.Alloc to match vmm.FrameAllocatorFn.
func allocFrame() pmm.Frame { return pmm.Alloc(pmm.Zero) }

// freeAddressSpace unmaps and decref's every user-half page still present
// in root, then decref's the directory itself. Kernel high-half mappings
// are shared with every task and are never freed here.
func freeAddressSpace(root pmm.Frame) {
	vmm.FreeUserSpace(root, config.UTOP)
	pmm.DecRef(root)
}

const (
	userCS     = 0x1B // ring-3 code selector, RPL 3
	userSS     = 0x23 // ring-3 data selector, RPL 3
	userEFlags = 0x202 // IF set, reserved bit 1 set
)
