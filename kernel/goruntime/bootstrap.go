// Package goruntime wires the Go runtime's own memory allocator into the
// kernel's address space: sysReserve/sysMap/sysAlloc are replaced so that
// runtime-internal allocations (goroutine stacks, the heap, GC bookkeeping)
// come from the kernel heap window instead of an mmap syscall that does not
// exist in a freestanding binary.
package goruntime

import (
	"unsafe"

	"github.com/gopheros/exo/kernel"
	"github.com/gopheros/exo/kernel/mem"
	"github.com/gopheros/exo/kernel/mem/pmm"
	"github.com/gopheros/exo/kernel/mem/vmm"
)

var (
	earlyReserveRegionFn = vmm.EarlyReserveRegion
	insertFn             = vmm.Insert
	allocFrameFn         = func() pmm.Frame { return pmm.Alloc(pmm.Zero) }
)

// Init is a no-op placeholder call site: every hook in this file is wired
// by its //go:redirect-from pragma at link time, not by anything this
// function does. It exists so kmain has something to call before the Go
// allocator takes its first allocation.
func Init() *kernel.Error {
	return nil
}

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

// sysReserve reserves address space without allocating any memory or
// establishing any page mappings.
//
// This function replaces runtime.sysReserve and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	regionSize := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)
	regionStartAddr, err := earlyReserveRegionFn(uintptr(regionSize))
	if err != nil {
		panic(err)
	}

	*reserved = true
	return unsafe.Pointer(regionStartAddr)
}

// sysMap establishes a mapping for a particular memory region that has been
// reserved previously via a call to sysReserve. It backs the region with
// freshly allocated, zeroed frames rather than deferring to copy-on-write,
// since the kernel heap is never forked into a second address space.
//
// This function replaces runtime.sysMap and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap should only be called with reserved=true")
	}

	regionStartAddr := (uintptr(virtAddr) + uintptr(mem.PageSize-1)) &^ uintptr(mem.PageSize-1)
	regionSize := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)
	pageCount := regionSize >> mem.PageShift

	root := vmm.KernelRoot()
	for page, i := regionStartAddr, mem.Size(0); i < pageCount; i, page = i+1, page+uintptr(mem.PageSize) {
		frame := allocFrameFn()
		if !frame.Valid() {
			return unsafe.Pointer(uintptr(0))
		}
		if err := insertFn(root, frame, page, vmm.FlagRW, allocFrameFn); err != nil {
			return unsafe.Pointer(uintptr(0))
		}
	}

	mSysStatInc(sysStat, uintptr(regionSize))
	return unsafe.Pointer(regionStartAddr)
}

// sysAlloc reserves enough address space to satisfy the allocation request
// and backs it with physical frames in one step.
//
// This function replaces runtime.sysAlloc and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	regionSize := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)
	regionStartAddr, err := earlyReserveRegionFn(uintptr(regionSize))
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	var reserved = true
	return sysMap(unsafe.Pointer(regionStartAddr), uintptr(regionSize), reserved, sysStat)
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)

	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
}
