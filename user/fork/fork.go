// Package fork implements the user-level copy-on-write fork built on top of
// exofork/page_map/page_alloc/env_set_pgfault_upcall, the same primitives
// lib/fork.c composes into fork() in the reference implementation this
// package is modelled on. The kernel itself has no notion of fork; every
// byte of COW policy lives here.
package fork

import (
	"github.com/gopheros/exo/kernel/config"
	"github.com/gopheros/exo/kernel/errno"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/trap"
	"github.com/gopheros/exo/user/syscall"
)

// pfTemp is a scratch page used to stage the private copy a COW fault
// produces before it is mapped over the faulting address, matching
// lib/pgfault.c's use of PFTEMP. It sits below the user stack and exception
// stack windows so it never collides with either.
const pfTemp = uint32(config.UTOP) - 4*uint32(config.PageSize)

// forkScanBase is the lowest address Fork considers when duplicating the
// parent's address space into the child, matching lib/fork.c's use of UTEXT
// as the scan's lower bound: the first page is left unmapped everywhere as a
// null-pointer guard, so there is nothing below it worth duplicating.
const forkScanBase = uint32(0x800000)

// handlerFn is the currently registered page-fault handler; nil until
// SetPgFaultHandler has been called at least once.
var handlerFn func(*trap.UTrapFrame)

// pageFlagsFn and upcallEntryAddrFn are swapped out by tests; in the real
// binary they are syscall.PageFlags and the asm-implemented
// upcallEntryAddr, the same substitution idiom kernel/mem/vmm uses for its
// CPU-touching calls.
var (
	pageFlagsFn       = syscall.PageFlags
	upcallEntryAddrFn = upcallEntryAddr
)

// SetPgFaultHandler installs handler as the task's page-fault handler. The
// first call allocates the user exception stack and registers upcallEntry
// with the kernel; later calls simply replace handlerFn, matching
// lib/pgfault.c's set_pgfault_handler.
func SetPgFaultHandler(handler func(*trap.UTrapFrame)) {
	if handlerFn == nil {
		id := syscall.GetEnvID()
		if r := syscall.PageAlloc(id, uint32(config.UXStackTop)-uint32(config.PageSize), permUserWrite); errno.IsError(r) {
			panic("fork: exception stack allocation failed")
		}
		if r := syscall.EnvSetPgfaultUpcall(id, upcallEntryAddrFn()); errno.IsError(r) {
			panic("fork: set pgfault upcall failed")
		}
	}
	handlerFn = handler
}

const (
	permUser      = 0x5 // present | user
	permUserWrite = 0x7 // present | writable | user
)

// pgfault is the default page-fault handler installed by Fork. It resolves
// a write fault against a copy-on-write page by giving the faulting task a
// private writable copy of the frame, the same two-step remap
// lib/pgfault.c's pgfault performs.
func pgfault(utf *trap.UTrapFrame) {
	const writeFault = 0x2 // FEC_WR, bit 1 of the page-fault error code

	faultVA := utf.FaultVA
	_, _, cow, _ := pageFlagsFn(faultVA)
	if utf.ErrorCode&writeFault == 0 || !cow {
		panic("fork: page fault on non-COW page")
	}

	id := syscall.GetEnvID()
	if r := syscall.PageAlloc(id, pfTemp, permUserWrite); errno.IsError(r) {
		panic("fork: pgfault page_alloc failed")
	}

	pageVA := faultVA &^ (uint32(config.PageSize) - 1)
	mem.Memcopy(uintptr(pfTemp), uintptr(pageVA), mem.Size(config.PageSize))

	if r := syscall.PageMap(id, pfTemp, id, pageVA, permUserWrite); errno.IsError(r) {
		panic("fork: pgfault page_map failed")
	}
	if r := syscall.PageUnmap(id, pfTemp); errno.IsError(r) {
		panic("fork: pgfault page_unmap failed")
	}
}

// duppage copies the mapping at va in the caller into childID: a page
// marked for verbatim sharing is mapped with its existing permissions
// unchanged, a writable or already-COW page is remapped copy-on-write in
// both the parent and the child, and a read-only page is mapped as is.
// Mirrors lib/fork.c's duppage.
func duppage(childID uint32, va uint32) {
	present, writable, cow, share := pageFlagsFn(va)
	if !present {
		return
	}

	switch {
	case share:
		const pteShare = 0x400 // kernel/vmm.FlagShare's value, 1<<10
		perm := uint32(permUser | pteShare)
		if writable {
			perm = permUserWrite | pteShare
		}
		if r := syscall.PageMap(0, va, childID, va, perm); errno.IsError(r) {
			panic("fork: duppage share failed")
		}
	case writable || cow:
		if r := syscall.PageMap(0, va, childID, va, permUser|pteCOW); errno.IsError(r) {
			panic("fork: duppage cow child failed")
		}
		if r := syscall.PageMap(0, va, 0, va, permUser|pteCOW); errno.IsError(r) {
			panic("fork: duppage cow self-remap failed")
		}
	default:
		if r := syscall.PageMap(0, va, childID, va, permUser); errno.IsError(r) {
			panic("fork: duppage read-only failed")
		}
	}
}

// pteCOW is the software copy-on-write bit, expressed as a permission flag
// for the page_map/page_alloc system call ABI (kernel/vmm.FlagCopyOnWrite's
// value, 1<<9).
const pteCOW = 0x200

// Fork creates a new task that is an exact copy of the calling task's
// address space at the moment of the call, using copy-on-write for every
// writable page rather than copying memory up front. The parent gets back
// the child's task id; the child gets back 0. Mirrors lib/fork.c's fork.
func Fork() int32 {
	SetPgFaultHandler(pgfault)

	childID := syscall.Exofork()
	if errno.IsError(childID) {
		panic("fork: exofork failed")
	}
	if childID == 0 {
		// Child: nothing further to fix up since this kernel does not
		// maintain a per-task "thisenv" pointer the way lib/fork.c
		// does; GetEnvID already reflects the child's own id.
		return 0
	}

	id := uint32(childID)
	for va := forkScanBase; va < uint32(config.USTACKTOP); va += uint32(config.PageSize) {
		duppage(id, va)
	}

	if r := syscall.PageAlloc(id, uint32(config.UXStackTop)-uint32(config.PageSize), permUserWrite); errno.IsError(r) {
		panic("fork: exception stack allocation failed")
	}
	if r := syscall.EnvSetPgfaultUpcall(id, upcallEntryAddrFn()); errno.IsError(r) {
		panic("fork: set upcall for child failed")
	}
	if r := syscall.EnvSetStatus(id, runnable); errno.IsError(r) {
		panic("fork: set child runnable failed")
	}

	return childID
}

// runnable is task.Runnable's value, duplicated here rather than imported
// to keep this package on the user-space side of the syscall ABI rather
// than reaching into the kernel's task package directly.
const runnable = 1
