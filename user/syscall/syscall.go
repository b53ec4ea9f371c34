// Package syscall is the user-space half of the system-call ABI that
// kernel/syscall implements: it packs arguments into the
// eax/edx/ecx/ebx/edi/esi convention §6 describes and traps into the
// kernel, the same division of labor as lib/syscall.c has in the reference
// implementation this kernel's ABI is modelled on (every wrapper here has a
// sys_* counterpart there). Every other user-space package — user/ipc,
// user/fork, user/fs — goes through this package rather than issuing a raw
// trap itself.
package syscall

import (
	"unsafe"

	"github.com/gopheros/exo/kernel/mem/vmm"
	ksyscall "github.com/gopheros/exo/kernel/syscall"
	"github.com/gopheros/exo/kernel/task"
)

// trapFn issues one system call and returns the raw eax result. In a booted
// image it is rawTrap, an asm trampoline that loads num/a1..a5 into
// eax/edx/ecx/ebx/edi/esi and executes `int 0x30`; tests substitute a fake
// that records the call and returns a canned result, the same package-level
// substitution idiom kernel/mem/vmm uses for its CPU-touching calls.
var trapFn = rawTrap

// SetTrapFn overrides the function used to issue system calls, returning a
// closure that restores the previous one. It exists so user/ipc and
// user/fork's tests can substitute a fake kernel without linking in the
// real trap path, the same seam kernel/syscall.SetConsole provides for
// kmain to wire in the real console.
func SetTrapFn(fn func(num, a1, a2, a3, a4, a5 uint32) uint32) (restore func()) {
	old := trapFn
	trapFn = fn
	return func() { trapFn = old }
}

// rawTrap is implemented in assembly: `int 0x30` with the call number and
// arguments loaded per the ABI, returning whatever the kernel left in eax.
func rawTrap(num, a1, a2, a3, a4, a5 uint32) uint32

func call(num ksyscall.Number, a1, a2, a3, a4, a5 uint32) int32 {
	return int32(trapFn(uint32(num), a1, a2, a3, a4, a5))
}

// Cputs prints s to the console via the cputs system call.
func Cputs(s string) {
	b := []byte(s)
	if len(b) == 0 {
		return
	}
	call(ksyscall.CPuts, uint32(uintptr(unsafe.Pointer(&b[0]))), uint32(len(b)), 0, 0, 0)
}

// Cgetc performs a non-blocking console read.
func Cgetc() int32 { return call(ksyscall.CGetc, 0, 0, 0, 0, 0) }

// GetEnvID returns the calling task's id.
func GetEnvID() uint32 { return uint32(call(ksyscall.GetEnvID, 0, 0, 0, 0, 0)) }

// EnvDestroy destroys the named task.
func EnvDestroy(id uint32) int32 { return call(ksyscall.EnvDestroy, id, 0, 0, 0, 0) }

// Yield invokes the scheduler.
func Yield() { call(ksyscall.Yield, 0, 0, 0, 0, 0) }

// Exofork allocates a new task as a copy of the caller's register state,
// returning the child's id to the parent and 0 to the child.
func Exofork() int32 { return call(ksyscall.Exofork, 0, 0, 0, 0, 0) }

// EnvSetStatus transitions the named task to s (Runnable or NotRunnable).
func EnvSetStatus(id, status uint32) int32 {
	return call(ksyscall.EnvSetStatus, id, status, 0, 0, 0)
}

// EnvSetPgfaultUpcall records entry as the named task's page-fault upcall.
func EnvSetPgfaultUpcall(id, entry uint32) int32 {
	return call(ksyscall.EnvSetPgfaultUpcall, id, entry, 0, 0, 0)
}

// PageAlloc allocates a zeroed frame and maps it at va in the named task
// with the given permission bits.
func PageAlloc(id, va, perm uint32) int32 {
	return call(ksyscall.PageAlloc, id, va, perm, 0, 0)
}

// PageMap shares the frame mapped at srcVA in srcID into dstID at dstVA
// with the given permission bits.
func PageMap(srcID, srcVA, dstID, dstVA, perm uint32) int32 {
	return call(ksyscall.PageMap, srcID, srcVA, dstID, dstVA, perm)
}

// PageUnmap removes any mapping at va in the named task. Idempotent.
func PageUnmap(id, va uint32) int32 { return call(ksyscall.PageUnmap, id, va, 0, 0, 0) }

// IPCTrySend attempts to deliver value (and, if srcVA is nonzero, a shared
// page) to the task named by id. Returns errno.IPCNotRecv if that task is
// not currently blocked in IPCRecv.
func IPCTrySend(id, value, srcVA, perm uint32) int32 {
	return call(ksyscall.IPCTrySend, id, value, srcVA, perm, 0)
}

// IPCRecv blocks the caller until another task sends it a message. The
// sender, value, and page permission of the delivered message are then
// available from IPCInfo.
func IPCRecv(dstVA uint32) int32 { return call(ksyscall.IPCRecv, dstVA, 0, 0, 0, 0) }

// IPCInfo returns the sender id, message value, and page permission of the
// last message delivered to the calling task. It reads the kernel's task
// table directly rather than trapping, the user-space equivalent of
// consulting the UENVS read-only window (the published task-table window
// this kernel does not separately map into every address space) instead of
// making another system call.
func IPCInfo() (from uint32, value uint32, perm uint32) {
	return task.IPCInfo(GetEnvID())
}

// PageFlags reports whether va is present, writable, copy-on-write, or
// marked for verbatim sharing in the calling task's own address space — the
// user-space equivalent of reading the self-mapped page directory at UVPT
// (inspecting another task's page table always goes through a real system
// call; a task's own mappings do not, on real hardware, because UVPT is
// already mapped read-only into every address space).
func PageFlags(va uint32) (present, writable, cow, share bool) {
	flags, ok := task.CurrentPTEFlags(uintptr(va))
	if !ok {
		return false, false, false, false
	}
	return flags&vmm.FlagPresent != 0,
		flags&vmm.FlagRW != 0,
		flags&vmm.FlagCopyOnWrite != 0,
		flags&vmm.FlagShare != 0
}

// PageDirty reports whether the page mapping va in the calling task's own
// address space has its hardware dirty bit set.
func PageDirty(va uint32) bool {
	flags, ok := task.CurrentPTEFlags(uintptr(va))
	return ok && flags&vmm.FlagDirty != 0
}
